// Package authenticode is a light wrapper around signing code under
// windows.
//
// See
//
// https://docs.microsoft.com/en-us/dotnet/framework/tools/signtool-exe
package authenticode

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/kolide/constructor/pkg/contexts/ctxlog"
	"github.com/pkg/errors"
)

// signtoolOptions are the options for how we call signtool.exe. These
// are *not* the tool options, but instead our own representation of
// the arguments.
type signtoolOptions struct {
	extraArgs      []string
	subjectName    string // If present, use this as the `/n` argument
	skipValidation bool
	signtoolPath   string
	rfc3161Server  string

	execCC func(context.Context, string, ...string) *exec.Cmd // Allows test overrides
}

type SigntoolOpt func(*signtoolOptions)

func SkipValidation() SigntoolOpt {
	return func(so *signtoolOptions) {
		so.skipValidation = true
	}
}

// WithExtraArgs set additional arguments for signtool. Common ones may be {`\n`, "subject name"}
func WithExtraArgs(args []string) SigntoolOpt {
	return func(so *signtoolOptions) {
		so.extraArgs = args
	}
}

func WithSigntoolPath(path string) SigntoolOpt {
	return func(so *signtoolOptions) {
		so.signtoolPath = path
	}
}

func WithSubjectName(name string) SigntoolOpt {
	return func(so *signtoolOptions) {
		so.subjectName = name
	}
}

func WithTimestampServer(url string) SigntoolOpt {
	return func(so *signtoolOptions) {
		so.rfc3161Server = url
	}
}

// Sign signs file in place, then verifies the signature. An msi holds
// a single signature, so unlike an exe, there is no sha1 signature
// appended before the sha256 one.
func Sign(ctx context.Context, file string, opts ...SigntoolOpt) error {
	so := &signtoolOptions{
		signtoolPath:  "signtool.exe",
		rfc3161Server: "http://timestamp.digicert.com",
		execCC:        exec.CommandContext,
	}

	for _, opt := range opts {
		opt(so)
	}

	return so.sign(ctx, file)
}

func (so *signtoolOptions) sign(ctx context.Context, file string) error {
	args := []string{
		"sign",
		"/fd", "sha256",
		"/tr", so.rfc3161Server,
		"/td", "sha256",
		"/v",
	}
	if so.subjectName != "" {
		args = append(args, "/n", so.subjectName)
	}
	args = append(args, so.extraArgs...)
	args = append(args, file)

	if _, _, err := so.execOut(ctx, so.signtoolPath, args...); err != nil {
		return errors.Wrap(err, "calling signtool")
	}

	if so.skipValidation {
		return nil
	}

	stdout, _, err := so.execOut(ctx, so.signtoolPath, "verify", "/pa", "/v", file)
	if err != nil {
		return errors.Wrap(err, "verifying signature")
	}
	if !strings.Contains(stdout, "Successfully verified") {
		return errors.Errorf("signtool did not verify %s: %s", file, stdout)
	}

	return nil
}

func (so *signtoolOptions) execOut(ctx context.Context, argv0 string, args ...string) (string, string, error) {
	logger := ctxlog.FromContext(ctx)

	cmd := so.execCC(ctx, argv0, args...)

	level.Debug(logger).Log(
		"msg", "execing",
		"cmd", strings.Join(cmd.Args, " "),
	)

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.Stdout, cmd.Stderr = stdout, stderr
	if err := cmd.Run(); err != nil {
		return strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()), errors.Wrapf(err, "run command %s %v, stderr=%s", argv0, args, stderr)
	}
	return strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()), nil
}
