package construct

import (
	"fmt"
	"strings"
)

// Kind is the yaml type a key accepts.
type Kind string

const (
	KindString Kind = "string"
	KindList   Kind = "list"
	KindBool   Kind = "bool"
)

// Key describes one `construct.yaml` key.
type Key struct {
	Name     string
	Required bool
	Kinds    []Kind
	Doc      string
}

func (k Key) accepts(kind Kind) bool {
	for _, a := range k.Kinds {
		if a == kind {
			return true
		}
	}
	return false
}

// Keys is every key `construct.yaml` may contain. Keys with no Doc
// are accepted, but left out of the documentation.
var Keys = []Key{
	{Name: "name", Required: true, Kinds: []Kind{KindString}, Doc: `
Name of the installer. May also contain uppercase letter. The installer
name is independent of the names of any of the conda packages the installer
is composed of.
`},
	{Name: "company", Kinds: []Kind{KindString}, Doc: `
Name of the organization/owner of the installer. The installer will show
this string as the manufacturer. Defaults to 'Unknown, Inc.'.
`},
	{Name: "version", Required: true, Kinds: []Kind{KindString}, Doc: `
Version of the installer. Just like the installer name, this version
is independent of any conda package versions contained in the installer.
Quote it, as yaml reads ` + "`1.10`" + ` as the number 1.1.
`},
	{Name: "channels", Kinds: []Kind{KindList}, Doc: `
The conda channels from which packages are retrieved, when using the ` + "`packages`" + `
key without full URLs.
`},
	{Name: "specs", Kinds: []Kind{KindList, KindString}, Doc: `
List of package specifications, e.g. ` + "`python 2.7*`" + `. Specs are not resolved by
this builder. An explicit ` + "`packages`" + ` list is required.
`},
	{Name: "exclude", Kinds: []Kind{KindList}, Doc: `
List of package names to be excluded, after the ` + "`specs`" + ` have been resolved.
`},
	{Name: "packages", Kinds: []Kind{KindList, KindString}, Doc: `
A list of explicit conda packages to be included, e.g. ` + "`yaml-0.1.6-0.tar.bz2`" + `.
The packages may also be specified by their entire URL,
e.g. ` + "`https://repo.continuum.io/pkgs/free/win-64/openssl-1.0.1k-1.tar.bz2`" + `.
Optionally, the MD5 hash sum of the package, may be added after an immediate
` + "`#`" + ` character, e.g. ` + "`readline-6.2-2.tar.bz2#0801e644bd0c1cd7f0923b56c52eb7f7`" + `.
The packages must already be in the download directory.
`},
	{Name: "menu_packages", Kinds: []Kind{KindList}, Doc: `
Packages for menu items will be installed (if the conda package contains the
necessary metadata in "Menu/<package name>.json"). By default, all menu items
will be installed.
`},
	{Name: "install_in_dependency_order", Kinds: []Kind{KindBool}, Doc: `
By default the conda packages included in the created installer are installed
in the order given, with the runtime and Python first for technical reasons.
`},
	{Name: "conda_default_channels", Kinds: []Kind{KindList}, Doc: `
You can list conda channels here which will be the default conda channels
of the created installer (if it includes conda).
`},
	{Name: "installer_filename", Kinds: []Kind{KindString}, Doc: `
The filename of the installer being created. A reasonable default filename
will determined by the ` + "`name`" + `, ` + "`version`" + ` and platform.
`},
	{Name: "web_environment", Kinds: []Kind{KindString}, Doc: `
Path to a conda environment file to install into the installation. Note that
this file is used on the installation side, allowing for packages to be
fetched over the network.
`},
	{Name: "license_file", Kinds: []Kind{KindString}, Doc: `
Path to the license file being displayed by the installer during the install
process. Plain text is converted to rtf.
`},
	{Name: "keep_pkgs", Kinds: []Kind{KindBool}, Doc: `
By default, no conda packages are preserved after running the created
installer in the ` + "`pkgs`" + ` directory. Using this option changes the default
behavior.
`},
	{Name: "pre_install", Kinds: []Kind{KindString}, Doc: `
Path to a pre install script. Not supported for Windows installers, and
rejected.
`},
	{Name: "post_install", Kinds: []Kind{KindString}, Doc: `
Path to a post install (.bat for Windows) script.
`},
	{Name: "default_prefix", Kinds: []Kind{KindString}},
	{Name: "welcome_image", Kinds: []Kind{KindString}, Doc: `
Path to an image (in any common image format ` + "`.png`, `.jpg`, `.tif`, `.ico`" + `, etc.)
which is used as the welcome image for the Windows installer.
The image is re-sized to 164 x 314 pixels.
By default, an image is automatically generated.
`},
	{Name: "header_image", Kinds: []Kind{KindString}, Doc: `
Like ` + "`welcome_image`" + `, re-sized to 150 x 57 pixels.
`},
	{Name: "icon_image", Kinds: []Kind{KindString}, Doc: `
Like ` + "`welcome_image`" + `, re-sized to 256 x 256 pixels.
`},
	{Name: "welcome_image_text", Kinds: []Kind{KindString}, Doc: `
Text drawn on the generated welcome image. Defaults to the name.
`},
	{Name: "header_image_text", Kinds: []Kind{KindString}, Doc: `
Text drawn on the generated header image. Defaults to the name.
`},
	{Name: "default_image_color", Kinds: []Kind{KindString}, Doc: `
The color of the default images (when not providing explicit image files).
Possible values are ` + "`red`, `green`, `blue`, `yellow`" + `.
The default is ` + "`blue`" + `.
`},
}

func keysByName() map[string]Key {
	m := make(map[string]Key, len(Keys))
	for _, k := range Keys {
		m[k.Name] = k
	}
	return m
}

const docPreamble = `
Keys in ` + "`construct.yaml`" + ` file:
==============================

This document describes each of they keys in the ` + "`construct.yaml`" + ` file,
which is the main configuration file of a constructor configuration
directory.

All keys are optional, except otherwise noted. Also, the keys ` + "`specs`" + `
and ` + "`packages`" + ` take either a list of items, or a path to a file,
which contains one item per line (excluding lines starting with ` + "`#`" + `).

Also note, that any line in ` + "`construct.yaml`" + ` may contain a selector at the
end, in order to allow customization for selected platforms.
`

// KeysDoc returns the markdown documentation of Keys.
func KeysDoc() string {
	var b strings.Builder
	b.WriteString(docPreamble)

	for _, k := range Keys {
		doc := strings.TrimSpace(k.Doc)
		if doc == "" {
			continue
		}
		required := ""
		if k.Required {
			required = " required"
		}
		fmt.Fprintf(&b, "\n`%s`:%s\n----------------\n%s\n", k.Name, required, doc)
	}

	return b.String()
}
