package wix

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/kolide/constructor/pkg/contexts/ctxlog"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

type wixTool struct {
	wixPath        string   // Where is wix installed
	buildDir       string   // The wix tools want to work in a build dir.
	msArch         string   // What's the microsoft archtecture name?
	extensions     []string // light extensions, eg: WixUIExtension
	dockerImage    string   // If in docker, what image?
	skipValidation bool     // Skip light validation. Seems to be needed for running in 32bit wine environments.
	mounts         []string // extra directories to mount into docker

	runner Runner
}

type WixOpt func(*wixTool)

func As64bit() WixOpt {
	return func(wo *wixTool) {
		wo.msArch = "x64"
	}
}

func As32bit() WixOpt {
	return func(wo *wixTool) {
		wo.msArch = "x86"
	}
}

// WithArch sets the microsoft architecture name directly.
func WithArch(msArch string) WixOpt {
	return func(wo *wixTool) {
		wo.msArch = msArch
	}
}

// If you're running this in a virtual win environment, you probably
// need to skip validation. LGHT0216 is a common error.
func SkipValidation() WixOpt {
	return func(wo *wixTool) {
		wo.skipValidation = true
	}
}

func WithWix(path string) WixOpt {
	return func(wo *wixTool) {
		wo.wixPath = path
	}
}

func WithExtension(ext string) WixOpt {
	return func(wo *wixTool) {
		wo.extensions = append(wo.extensions, ext)
	}
}

// WithDocker runs the wix tools under wine in the named image. The
// build dir, and anything passed to WithMount, are mounted in.
func WithDocker(image string) WixOpt {
	return func(wo *wixTool) {
		wo.dockerImage = image
	}
}

func WithMount(dir string) WixOpt {
	return func(wo *wixTool) {
		wo.mounts = append(wo.mounts, dir)
	}
}

// WithRunner replaces the process runner. Used by tests.
func WithRunner(r Runner) WixOpt {
	return func(wo *wixTool) {
		wo.runner = r
	}
}

// New returns a tool that runs the wix toolchain in buildDir. The
// build dir must exist, and belongs to the caller.
func New(buildDir string, wixOpts ...WixOpt) (*wixTool, error) {
	wo := &wixTool{
		wixPath:    `C:\wix311`,
		buildDir:   buildDir,
		extensions: []string{"WixUIExtension"},
	}

	for _, opt := range wixOpts {
		opt(wo)
	}

	if wo.buildDir == "" {
		return nil, errors.New("no build dir")
	}

	switch wo.msArch {
	case "x86", "x64":
	case "":
		return nil, errors.New("no architecture. Use As32bit or As64bit")
	default:
		return nil, errors.Errorf("unknown arch for windows %s", wo.msArch)
	}

	if wo.runner == nil {
		wo.runner = NewExecRunner(wo.dockerImage, append([]string{wo.buildDir}, wo.mounts...)...)
	}

	return wo, nil
}

func (wo *wixTool) BuildDir() string {
	return wo.buildDir
}

func (wo *wixTool) toolPath(name string) string {
	return filepath.Join(wo.wixPath, name+".exe")
}

// Verify checks that the named tools exist, without running them. In
// docker, the paths are inside the image, and are not checked.
func (wo *wixTool) Verify(ctx context.Context, tools ...string) error {
	logger := ctxlog.FromContext(ctx)

	if wo.dockerImage != "" {
		level.Debug(logger).Log("msg", "skipping wix verification in docker", "image", wo.dockerImage)
		return nil
	}

	for _, tool := range tools {
		p := wo.toolPath(tool)
		level.Debug(logger).Log("msg", "checking for wix tool", "path", p)
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			return &ToolchainMissingError{Tool: tool, Path: p}
		}
	}
	return nil
}

// Heat invokes wix's heat command. This examines a directory and
// "harvests" the files into an xml structure. See
// http://wixtoolset.org/documentation/manual/v3/overview/heat.html
//
// Components land in the `<id>FILES` group, under `<id>DIR`, with
// sources relative to `$(var.<id>Source)`. It returns the path of the
// generated wxs.
func (wo *wixTool) Heat(ctx context.Context, id, dir, transform string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "wix.Heat")
	defer span.End()

	out := filepath.Join(wo.buildDir, "harvest_"+id+".wxs")

	args := []string{
		"dir", dir,
		"-nologo",
		"-ag",
		"-srd",
		"-sfrag",
		"-sreg",
		"-scom",
	}
	if transform != "" {
		args = append(args, "-t", transform)
	}
	args = append(args,
		"-cg", id+"FILES",
		"-dr", id+"DIR",
		"-var", "var."+id+"Source",
		"-out", out,
	)

	if err := wo.execOut(ctx, "heat", args...); err != nil {
		return "", err
	}
	return out, nil
}

// Candle invokes wix's candle command. This is the wix compiler, It
// preprocesses and compiles WiX source files into object files
// (.wixobj). It returns the object paths, in source order.
func (wo *wixTool) Candle(ctx context.Context, sources []string, defines map[string]string) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "wix.Candle")
	defer span.End()

	args := []string{
		"-nologo",
		"-arch", wo.msArch,
		"-out", wo.buildDir + string(filepath.Separator),
	}
	for _, k := range sortedKeys(defines) {
		args = append(args, "-d"+k+"="+defines[k])
	}
	args = append(args, sources...)

	if err := wo.execOut(ctx, "candle", args...); err != nil {
		return nil, err
	}

	objects := make([]string, len(sources))
	for i, src := range sources {
		base := filepath.Base(src)
		objects[i] = filepath.Join(wo.buildDir, strings.TrimSuffix(base, filepath.Ext(base))+".wixobj")
	}
	return objects, nil
}

// Light invokes wix's light command. This links and binds one or more
// .wixobj files and creates a Windows Installer database (.msi or
// .msm). See http://wixtoolset.org/documentation/manual/v3/overview/light.html for options
//
// bindings become `-d` variables, eg: WixUILicenseRtf. It returns the
// path of the msi.
func (wo *wixTool) Light(ctx context.Context, objects []string, bindings map[string]string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "wix.Light")
	defer span.End()

	out := filepath.Join(wo.buildDir, "out.msi")

	args := []string{"-nologo"}
	for _, ext := range wo.extensions {
		args = append(args, "-ext", ext)
	}
	args = append(args,
		"-out", out,
		"-b", wo.buildDir,
	)
	for _, k := range sortedKeys(bindings) {
		args = append(args, "-d"+k+"="+bindings[k])
	}
	if wo.skipValidation {
		args = append(args, "-sval")
	}
	args = append(args, objects...)

	if err := wo.execOut(ctx, "light", args...); err != nil {
		return "", err
	}
	return out, nil
}

// Output copies the linked msi into the provided io.Writer,
// facilitating export to a file, buffer, or other storage backends.
func (wo *wixTool) Output(msiPath string, w io.Writer) error {
	msiFH, err := os.Open(msiPath)
	if err != nil {
		return errors.Wrap(err, "opening msi output file")
	}
	defer msiFH.Close()

	if _, err := io.Copy(w, msiFH); err != nil {
		return errors.Wrap(err, "copying output")
	}

	return nil
}

func (wo *wixTool) execOut(ctx context.Context, tool string, args ...string) error {
	logger := ctxlog.FromContext(ctx)

	c := Cmd{
		Path: wo.toolPath(tool),
		Args: args,
		Dir:  wo.buildDir,
	}

	level.Info(logger).Log("msg", "running wix", "tool", tool)

	res, err := wo.runner.Run(ctx, c)
	if err != nil {
		return errors.Wrapf(err, "running %s", tool)
	}

	if res.ExitCode != 0 {
		return &ExternalProcessError{
			Path:     c.Path,
			Args:     c.Args,
			ExitCode: res.ExitCode,
			Output:   res.Output,
		}
	}

	level.Debug(logger).Log("msg", "wix finished", "tool", tool, "output", strings.TrimSpace(res.Output))
	return nil
}
