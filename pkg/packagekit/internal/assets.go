package internal

import (
	"embed"
	"io/fs"

	"github.com/pkg/errors"
)

//go:embed assets
var embedded embed.FS

const (
	TemplateWXS        = "template.wxs"
	HarvestXSLT        = "harvest.xslt"
	InstallPy          = "install.py"
	PlaceholderLicense = "placeholder_license.txt"
)

// Assets returns the embedded assets, rooted at the assets directory.
func Assets() fs.FS {
	sub, err := fs.Sub(embedded, "assets")
	if err != nil {
		// Only possible if the embed directive above is broken.
		panic(err)
	}
	return sub
}

// Asset returns a single embedded asset.
func Asset(name string) ([]byte, error) {
	data, err := fs.ReadFile(Assets(), name)
	if err != nil {
		return nil, errors.Wrapf(err, "getting embedded %s", name)
	}
	return data, nil
}
