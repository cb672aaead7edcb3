package packagekit

import (
	"github.com/google/uuid"
	"github.com/kolide/constructor/pkg/packagekit/wix"
	"github.com/kolide/constructor/pkg/packaging"
)

// PackageOptions describes one installer build. It is passed by value,
// and not modified once built.
type PackageOptions struct {
	Name        string   // product name (eg: Miniconda3)
	Version     string   // product version, free form
	Company     string   // manufacturer. Defaults to DefaultCompany
	LicenseFile string   // path to the license. A placeholder is used if empty
	Dists       []string // package archive filenames, in install order
	PackageURLs []string // the urls (with optional #md5) the dists came from
	DownloadDir string   // where the dists are
	Platform    packaging.Platform

	PostInstall    string // path to a .bat run after install
	PreInstall     string // not supported on windows. Rejected if set
	WebEnvironment string // path to an environment.yml applied after install
	MenuPackages   []string

	Images ImageOptions

	ComponentStrategy wix.ComponentStrategy
	RuntimeRule       wix.RuntimeRule // nil means wix.DefaultRuntimeRule
	Namespace         uuid.UUID       // zero means wix.DefaultNamespace
	TemplatePath      string          // wxs template on disk. Empty means the embedded one

	WindowsUseSigntool  bool     // whether to use signtool.exe on windows
	WindowsSigntoolArgs []string // Extra args for signtool. May be needed for finding a key

	WixPath           string // path to wix installation
	WixDockerImage    string // run wix via wine in this image
	WixSkipValidation bool   // pass -sval to light
	WixSkipCleanup    bool   // keep the temp dirs
	BuildRoot         string // parent of the scratch dir. Defaults to the system temp dir
}

// DefaultCompany is used when no company is given.
const DefaultCompany = "Unknown, Inc."

func (po PackageOptions) company() string {
	if po.Company == "" {
		return DefaultCompany
	}
	return po.Company
}
