package packaging

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Platform is the conda platform being targetted by the build, eg:
// `win-64`. As "platform" has two axis, we use a struct to convey
// them.
type Platform struct {
	OS   OSFlavor
	Arch ArchFlavor
}

type OSFlavor string

const (
	Windows OSFlavor = "win"
	Linux   OSFlavor = "linux"
	Darwin  OSFlavor = "osx"
)

type ArchFlavor string

const (
	X86     ArchFlavor = "32"
	X86_64  ArchFlavor = "64"
	Armv7l  ArchFlavor = "armv7l"
	Ppc64le ArchFlavor = "ppc64le"
)

func KnownOSFlavors() []string {
	return []string{string(Windows), string(Linux), string(Darwin)}
}

func KnownArchFlavors() []string {
	return []string{string(X86), string(X86_64), string(Armv7l), string(Ppc64le)}
}

// ParsePlatform parses a conda platform string like `win-64`.
func ParsePlatform(s string) (Platform, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Platform{}, errors.Errorf("invalid platform string '%s'", s)
	}

	p := Platform{}
	if err := p.OSFromString(parts[0]); err != nil {
		return Platform{}, err
	}
	if err := p.ArchFromString(parts[1]); err != nil {
		return Platform{}, err
	}
	return p, nil
}

func (p *Platform) OSFromString(s string) error {
	for _, f := range KnownOSFlavors() {
		if f == s {
			p.OS = OSFlavor(s)
			return nil
		}
	}
	return errors.Errorf("invalid OS name '%s'", s)
}

func (p *Platform) ArchFromString(s string) error {
	for _, f := range KnownArchFlavors() {
		if f == s {
			p.Arch = ArchFlavor(s)
			return nil
		}
	}
	return errors.Errorf("unknown architecture '%s'", s)
}

func (p Platform) String() string {
	return fmt.Sprintf("%s-%s", p.OS, p.Arch)
}

// MsArch returns the microsoft architecture name, as the wix tools
// want it.
func (p Platform) MsArch() (string, error) {
	if p.OS != Windows {
		return "", errors.Errorf("no microsoft architecture for %s", p.String())
	}
	switch p.Arch {
	case X86:
		return "x86", nil
	case X86_64:
		return "x64", nil
	}
	return "", errors.Errorf("unknown arch for windows %s", p.Arch)
}

// OSName is the human name used in installer filenames.
func (p Platform) OSName() string {
	switch p.OS {
	case Windows:
		return "Windows"
	case Linux:
		return "Linux"
	case Darwin:
		return "MacOSX"
	}
	return string(p.OS)
}

// ArchName is the human architecture name used in installer filenames.
func (p Platform) ArchName() string {
	switch p.Arch {
	case X86:
		return "x86"
	case X86_64:
		return "x86_64"
	}
	return string(p.Arch)
}

// Namespace returns the set of facts used by template conditionals
// and construct.yaml selectors.
func (p Platform) Namespace() Namespace {
	s := p.String()
	return Namespace{
		"linux":   p.OS == Linux,
		"linux32": s == "linux-32" || s == "linux-armv7l",
		"linux64": s == "linux-64" || s == "linux-ppc64le",
		"armv7l":  s == "linux-armv7l",
		"ppc64le": s == "linux-ppc64le",
		"x86":     p.Arch == X86 || p.Arch == X86_64,
		"x86_64":  p.Arch == X86_64,
		"osx":     p.OS == Darwin,
		"unix":    p.OS == Linux || p.OS == Darwin,
		"win":     p.OS == Windows,
		"win32":   s == "win-32",
		"win64":   s == "win-64",
	}
}
