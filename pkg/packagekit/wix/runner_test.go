package wix

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

// helperCommandContext mirrors exec.CommandContext, but re-execs the
// test binary as TestHelperProcess.
func helperCommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", name}
	cs = append(cs, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	return cmd
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}

	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "No command\n")
		os.Exit(2)
	}

	switch args[0] {
	case "candle.exe":
		fmt.Println("Windows Installer XML Toolset Compiler")
	case "light.exe":
		fmt.Fprintf(os.Stderr, "light.exe : error LGHT0216 : An unexpected Win32 exception\n")
		os.Exit(216)
	case "docker":
		fmt.Println(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", args[0])
		os.Exit(2)
	}
}

func TestExecRunner(t *testing.T) {
	t.Parallel()

	r := &execRunner{execCC: helperCommandContext}

	res, err := r.Run(context.TODO(), Cmd{Path: "candle.exe", Args: []string{"-nologo"}, Dir: t.TempDir()})
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.Contains(t, res.Output, "Compiler")

	res, err = r.Run(context.TODO(), Cmd{Path: "light.exe", Dir: t.TempDir()})
	require.NoError(t, err)
	require.Equal(t, 216, res.ExitCode)
	require.Contains(t, res.Output, "LGHT0216")
}

func TestExecRunnerDocker(t *testing.T) {
	t.Parallel()

	buildDir := t.TempDir()
	r := &execRunner{
		dockerImage: "felfert/wix",
		mounts:      []string{buildDir},
		execCC:      helperCommandContext,
	}

	res, err := r.Run(context.TODO(), Cmd{Path: "/opt/wix/bin/candle.exe", Args: []string{"-nologo"}, Dir: buildDir})
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.Contains(t, res.Output, "wine /opt/wix/bin/candle.exe -nologo")
	require.Contains(t, res.Output, fmt.Sprintf("-v %s:%s", buildDir, buildDir))
	require.Contains(t, res.Output, "-w "+buildDir)
}

func TestExecRunnerMissing(t *testing.T) {
	t.Parallel()

	r := NewExecRunner("")
	_, err := r.Run(context.TODO(), Cmd{Path: "/nonexistent/candle.exe", Dir: t.TempDir()})
	require.Error(t, err)
}
