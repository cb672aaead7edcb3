// Package construct reads `construct.yaml`, the configuration of an
// installer build.
package construct

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/kolide/constructor/pkg/packaging"
	"github.com/pkg/errors"
)

// Filename is the configuration file in a construct directory.
const Filename = "construct.yaml"

// Info is a parsed and verified `construct.yaml`. Paths are absolute.
type Info struct {
	Name                     string       `json:"name"`
	Company                  string       `json:"company,omitempty"`
	Version                  string       `json:"version"`
	Channels                 []string     `json:"channels,omitempty"`
	Specs                    StringOrList `json:"specs,omitempty"`
	Exclude                  []string     `json:"exclude,omitempty"`
	Packages                 StringOrList `json:"packages,omitempty"`
	MenuPackages             []string     `json:"menu_packages,omitempty"`
	InstallInDependencyOrder bool         `json:"install_in_dependency_order,omitempty"`
	CondaDefaultChannels     []string     `json:"conda_default_channels,omitempty"`
	InstallerFilename        string       `json:"installer_filename,omitempty"`
	WebEnvironment           string       `json:"web_environment,omitempty"`
	LicenseFile              string       `json:"license_file,omitempty"`
	KeepPkgs                 bool         `json:"keep_pkgs,omitempty"`
	PreInstall               string       `json:"pre_install,omitempty"`
	PostInstall              string       `json:"post_install,omitempty"`
	DefaultPrefix            string       `json:"default_prefix,omitempty"`
	WelcomeImage             string       `json:"welcome_image,omitempty"`
	HeaderImage              string       `json:"header_image,omitempty"`
	IconImage                string       `json:"icon_image,omitempty"`
	WelcomeImageText         string       `json:"welcome_image_text,omitempty"`
	HeaderImageText          string       `json:"header_image_text,omitempty"`
	DefaultImageColor        string       `json:"default_image_color,omitempty"`
}

// StringOrList is a list of items, or the path of a file listing them.
// After Parse, the file has been read into Items.
type StringOrList struct {
	Path  string
	Items []string
}

func (s *StringOrList) UnmarshalJSON(b []byte) error {
	var p string
	if err := json.Unmarshal(b, &p); err == nil {
		s.Path = p
		return nil
	}
	return json.Unmarshal(b, &s.Items)
}

func (s StringOrList) MarshalJSON() ([]byte, error) {
	if s.Path != "" {
		return json.Marshal(s.Path)
	}
	return json.Marshal(s.Items)
}

var selectorRegex = regexp.MustCompile(`^(.+?)\s*\[(.+)\]$`)

// SelectLines applies line selectors. A line ending in `[selector]` is
// kept, without the selector, if the selector is true in ns, and
// dropped otherwise.
func SelectLines(data string, ns packaging.Namespace) (string, error) {
	var lines []string
	for i, line := range strings.Split(strings.Replace(data, "\r\n", "\n", -1), "\n") {
		line = strings.TrimRight(line, " \t")
		m := selectorRegex.FindStringSubmatch(line)
		if m == nil {
			lines = append(lines, line)
			continue
		}

		keep, err := ns.Eval(m[2])
		if err != nil {
			return "", errors.Wrapf(err, "line %d", i+1)
		}
		if keep {
			lines = append(lines, m[1])
		}
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// Parse reads and verifies the `construct.yaml` at configPath, for
// platform. Relative paths are resolved against its directory.
func Parse(configPath string, platform packaging.Platform) (*Info, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open '%s' for reading", configPath)
	}

	selected, err := SelectLines(string(data), platform.Namespace())
	if err != nil {
		return nil, errors.Wrapf(err, "selectors in %s", configPath)
	}

	raw, err := decode([]byte(selected))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", configPath)
	}

	if err := verify(raw); err != nil {
		return nil, err
	}

	info, err := fromRaw(raw)
	if err != nil {
		return nil, err
	}

	if err := info.resolve(filepath.Dir(configPath)); err != nil {
		return nil, err
	}

	return info, nil
}

// decode turns the yaml into a map. Null keys are dropped, and the
// version is always a string.
func decode(data []byte) (map[string]interface{}, error) {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]interface{})
	if bytes.Equal(bytes.TrimSpace(jsonData), []byte("null")) {
		return raw, nil
	}

	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "construct.yaml must be a mapping")
	}

	for k, v := range raw {
		if v == nil {
			delete(raw, k)
		}
	}

	switch v := raw["version"].(type) {
	case json.Number:
		raw["version"] = v.String()
	case bool:
		raw["version"] = fmt.Sprintf("%t", v)
	}

	return raw, nil
}

func kindOf(v interface{}) (Kind, bool) {
	switch vv := v.(type) {
	case string:
		return KindString, true
	case bool:
		return KindBool, true
	case []interface{}:
		for _, item := range vv {
			if _, ok := item.(string); !ok {
				return KindList, false
			}
		}
		return KindList, true
	}
	return "", false
}

func verify(raw map[string]interface{}) error {
	keys := keysByName()

	for name, v := range raw {
		key, ok := keys[name]
		if !ok {
			return errors.Errorf("unknown key '%s' in %s", name, Filename)
		}

		kind, ok := kindOf(v)
		if !ok || !key.accepts(kind) {
			return errors.Errorf("key '%s' points to %T, expected %v", name, v, key.Kinds)
		}
	}

	for _, key := range Keys {
		if _, ok := raw[key.Name]; key.Required && !ok {
			return errors.Errorf("required key '%s' not found in %s", key.Name, Filename)
		}
	}

	return nil
}

func fromRaw(raw map[string]interface{}) (*Info, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "re-encoding construct.yaml")
	}

	info := &Info{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(info); err != nil {
		return nil, errors.Wrap(err, "decoding construct.yaml")
	}
	return info, nil
}

func (info *Info) resolve(dir string) error {
	for _, p := range []*string{
		&info.LicenseFile,
		&info.WelcomeImage,
		&info.HeaderImage,
		&info.IconImage,
		&info.PreInstall,
		&info.PostInstall,
		&info.WebEnvironment,
	} {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(dir, *p))
		if err != nil {
			return errors.Wrapf(err, "resolving %s", *p)
		}
		*p = abs
	}

	for _, l := range []*StringOrList{&info.Specs, &info.Packages} {
		if l.Path == "" {
			continue
		}
		items, err := readLines(filepath.Join(dir, l.Path))
		if err != nil {
			return err
		}
		l.Items = items
	}

	for _, l := range []struct {
		name  string
		items []string
	}{
		{"channels", info.Channels},
		{"specs", info.Specs.Items},
		{"exclude", info.Exclude},
		{"packages", info.Packages.Items},
		{"menu_packages", info.MenuPackages},
	} {
		for i := range l.items {
			l.items[i] = strings.TrimSpace(l.items[i])
			if l.items[i] == "" {
				return errors.Errorf("found empty element in '%s:'", l.name)
			}
		}
	}

	return nil
}

// readLines reads an item per line, skipping blanks and `#` comments.
func readLines(p string) ([]string, error) {
	fh, err := os.Open(p)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", p)
	}
	defer fh.Close()

	var lines []string
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", p)
	}
	return lines, nil
}

// Dists returns the package archive filenames. URLs and `#md5`
// suffixes are reduced to the filename. Specs can't be resolved, so
// they are an error without packages.
func (info *Info) Dists() ([]string, error) {
	if len(info.Packages.Items) == 0 {
		if len(info.Specs.Items) > 0 {
			return nil, errors.New("specs need to be resolved into an explicit packages list, which this builder does not do")
		}
		return nil, errors.New("no packages")
	}

	dists := make([]string, len(info.Packages.Items))
	for i, p := range info.Packages.Items {
		dists[i] = path.Base(strings.SplitN(p, "#", 2)[0])
	}
	return dists, nil
}

// OutputFilename is the installer filename, `installer_filename` or
// `<name>-<version>-<os>-<arch>.msi`.
func (info *Info) OutputFilename(platform packaging.Platform) string {
	if info.InstallerFilename != "" {
		return info.InstallerFilename
	}
	return fmt.Sprintf("%s-%s-%s-%s.msi", info.Name, info.Version, platform.OSName(), platform.ArchName())
}

// DefaultDownloadDir is where packages are expected,
// `~/.conda/constructor/<platform>`.
func DefaultDownloadDir(platform packaging.Platform) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "finding home directory")
	}
	return filepath.Join(home, ".conda", "constructor", platform.String()), nil
}
