package wix

import (
	"fmt"
	"strings"
)

// ConfigurationError is returned when the build inputs are
// inconsistent, eg: a missing or duplicated runtime archive, or a
// requested pre-install hook.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// ToolchainMissingError is returned when a wix executable is not
// where we expect it.
type ToolchainMissingError struct {
	Tool string
	Path string
}

func (e *ToolchainMissingError) Error() string {
	return fmt.Sprintf(`no %s found at %s
    please make sure WiX v3 is installed, and point --wix at its bin directory.
    See https://wixtoolset.org/releases/`, e.Tool, e.Path)
}

// ExternalProcessError is returned when a child process exits non-zero.
type ExternalProcessError struct {
	Path     string
	Args     []string
	ExitCode int
	Output   string
}

func (e *ExternalProcessError) Error() string {
	return fmt.Sprintf("command %s %s exited %d\n%s",
		e.Path,
		strings.Join(e.Args, " "),
		e.ExitCode,
		strings.TrimSpace(e.Output),
	)
}

// MalformedArchiveNameError is returned for archive filenames that do
// not parse as `name-version-build.tar.bz2`.
type MalformedArchiveNameError struct {
	Filename string
	Reason   string
}

func (e *MalformedArchiveNameError) Error() string {
	return fmt.Sprintf("malformed archive name '%s': %s", e.Filename, e.Reason)
}
