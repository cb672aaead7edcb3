package wix

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/kolide/constructor/pkg/contexts/ctxlog"
	"github.com/pkg/errors"
)

// Cmd is a process to run.
type Cmd struct {
	Path string
	Args []string
	Dir  string
}

func (c Cmd) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

// Result is the outcome of a process that ran. Output is the combined
// stdout and stderr.
type Result struct {
	ExitCode int
	Output   string
}

// Runner runs processes. A non-zero exit is a Result, not an
// error. Errors are reserved for processes that could not be run.
type Runner interface {
	Run(ctx context.Context, c Cmd) (Result, error)
}

// execRunner runs processes locally, or under wine in docker.
type execRunner struct {
	dockerImage string
	mounts      []string

	execCC func(context.Context, string, ...string) *exec.Cmd // Allows test overrides
}

// NewExecRunner returns a Runner using os/exec. If dockerImage is set,
// commands run via wine inside it, with the mounts bound at the same
// path.
func NewExecRunner(dockerImage string, mounts ...string) Runner {
	return &execRunner{
		dockerImage: dockerImage,
		mounts:      mounts,
		execCC:      exec.CommandContext,
	}
}

func (r *execRunner) Run(ctx context.Context, c Cmd) (Result, error) {
	logger := ctxlog.FromContext(ctx)

	argv0, args := c.Path, c.Args
	if r.dockerImage != "" {
		dockerArgs := []string{
			"run",
			"--entrypoint", "",
		}
		for _, m := range r.mounts {
			dockerArgs = append(dockerArgs, "-v", fmt.Sprintf("%s:%s", m, m))
		}
		if c.Dir != "" {
			dockerArgs = append(dockerArgs, "-w", c.Dir)
		}
		dockerArgs = append(dockerArgs, r.dockerImage, "wine", argv0)

		argv0 = "docker"
		args = append(dockerArgs, args...)
	}

	cmd := r.execCC(ctx, argv0, args...)

	level.Debug(logger).Log(
		"msg", "execing",
		"cmd", strings.Join(cmd.Args, " "),
	)

	cmd.Dir = c.Dir
	output := new(bytes.Buffer)
	cmd.Stdout, cmd.Stderr = output, output

	err := cmd.Run()
	res := Result{Output: output.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	return res, errors.Wrapf(err, "run command %s %v", argv0, args)
}
