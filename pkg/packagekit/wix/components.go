package wix

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/kolide/constructor/pkg/packaging"
	"github.com/pkg/errors"
)

const archiveExt = ".tar.bz2"

// Role is the part an archive plays in the installer.
type Role int

const (
	RolePackage Role = iota
	RoleRuntime
	RoleInterpreter
)

func (r Role) String() string {
	switch r {
	case RoleRuntime:
		return "runtime"
	case RoleInterpreter:
		return "interpreter"
	}
	return "package"
}

// InterpreterName is the package name of the interpreter archive.
const InterpreterName = "python"

// ComponentStrategy selects how archives become wix components.
type ComponentStrategy int

const (
	// PerArchive installs each package archive as a single file, with
	// a removal component for the folder it's extracted to. The
	// runtime and interpreter are always harvested, as the install
	// action needs python.exe before anything is extracted.
	PerArchive ComponentStrategy = iota
	// Harvested installs the unpacked files, as harvested by heat.
	Harvested
)

func (s ComponentStrategy) String() string {
	if s == Harvested {
		return "harvested"
	}
	return "per-archive"
}

func ParseComponentStrategy(s string) (ComponentStrategy, error) {
	switch s {
	case "per-archive", "":
		return PerArchive, nil
	case "harvested":
		return Harvested, nil
	}
	return PerArchive, errors.Errorf("unknown component strategy '%s'", s)
}

// Archive is a conda package archive, `name-version-build.tar.bz2`
type Archive struct {
	Filename string
	Name     string
	Version  string
	Build    string
	Role     Role
}

// ParseArchive splits a filename on its last two hyphens.
func ParseArchive(filename string) (Archive, error) {
	if filepath.Base(filename) != filename {
		return Archive{}, &MalformedArchiveNameError{Filename: filename, Reason: "must be a bare filename"}
	}
	if !strings.HasSuffix(filename, archiveExt) {
		return Archive{}, &MalformedArchiveNameError{Filename: filename, Reason: "not a " + archiveExt}
	}

	base := strings.TrimSuffix(filename, archiveExt)
	buildIdx := strings.LastIndex(base, "-")
	if buildIdx < 0 {
		return Archive{}, &MalformedArchiveNameError{Filename: filename, Reason: "expected name-version-build"}
	}
	versionIdx := strings.LastIndex(base[:buildIdx], "-")
	if versionIdx < 0 {
		return Archive{}, &MalformedArchiveNameError{Filename: filename, Reason: "expected name-version-build"}
	}

	a := Archive{
		Filename: filename,
		Name:     base[:versionIdx],
		Version:  base[versionIdx+1 : buildIdx],
		Build:    base[buildIdx+1:],
	}

	if a.Name == "" || a.Version == "" || a.Build == "" {
		return Archive{}, &MalformedArchiveNameError{Filename: filename, Reason: "empty name, version, or build"}
	}

	return a, nil
}

// Folder is the name of the directory the archive extracts to.
func (a Archive) Folder() string {
	return strings.TrimSuffix(a.Filename, archiveExt)
}

// ID is the wix identifier for the archive. Other identifiers are
// suffixed from it.
func (a Archive) ID() string {
	switch a.Role {
	case RoleRuntime:
		return "MSVC"
	case RoleInterpreter:
		return "Python"
	}
	id := strings.Replace(a.Name, "-", "", -1)
	if id != "" && id[0] >= '0' && id[0] <= '9' {
		id = "_" + id
	}
	return id
}

// RuntimeRule maps an interpreter `major.minor` to the names of the
// runtime packages it accepts.
type RuntimeRule map[string][]string

// AlwaysRuntime is accepted as the runtime for any interpreter.
const AlwaysRuntime = "msvc_runtime"

func DefaultRuntimeRule() RuntimeRule {
	return RuntimeRule{
		"2.7": {"vs2008_runtime"},
		"3.4": {"vs2010_runtime"},
		"3.5": {"vs2015_runtime"},
		"3.6": {"vs2015_runtime"},
		"3.7": {"vs2015_runtime"},
		"3.8": {"vs2015_runtime"},
	}
}

func (r RuntimeRule) accepts(interpreterMinor, name string) bool {
	if name == AlwaysRuntime {
		return true
	}
	for _, n := range r[interpreterMinor] {
		if n == name {
			return true
		}
	}
	return false
}

// Packages is the ordered, classified set of archives in a build. The
// runtime is first, the interpreter second.
type Packages struct {
	Archives    []Archive
	downloadDir string
	ids         Identifiers
}

// Enumerate parses and classifies the archive filenames. It does not
// touch the filesystem.
func Enumerate(filenames []string, rule RuntimeRule, downloadDir string, ids Identifiers) (*Packages, error) {
	if rule == nil {
		rule = DefaultRuntimeRule()
	}

	var archives []Archive
	seen := make(map[string]bool, len(filenames))
	interpreterIdx := -1
	for _, fn := range filenames {
		a, err := ParseArchive(fn)
		if err != nil {
			return nil, err
		}
		if seen[fn] {
			return nil, configErrorf("archive %s listed more than once", fn)
		}
		seen[fn] = true

		if a.Name == InterpreterName {
			if interpreterIdx >= 0 {
				return nil, configErrorf("more than one %s archive: %s and %s", InterpreterName, archives[interpreterIdx].Filename, fn)
			}
			interpreterIdx = len(archives)
		}
		archives = append(archives, a)
	}

	if interpreterIdx < 0 {
		return nil, configErrorf("no %s archive", InterpreterName)
	}
	interpreterMinor := packaging.MinorVersion(archives[interpreterIdx].Version)

	var runtimes, rest []Archive
	for _, a := range archives {
		if rule.accepts(interpreterMinor, a.Name) {
			a.Role = RoleRuntime
			runtimes = append(runtimes, a)
			continue
		}
		rest = append(rest, a)
	}

	if len(runtimes) != 1 {
		names := make([]string, len(runtimes))
		for i, a := range runtimes {
			names[i] = a.Filename
		}
		return nil, configErrorf("number of runtimes found for %s %s: %d %v", InterpreterName, interpreterMinor, len(runtimes), names)
	}

	if rest[0].Name != InterpreterName {
		return nil, configErrorf("%s must be the first non-runtime archive, found %s", InterpreterName, rest[0].Filename)
	}
	rest[0].Role = RoleInterpreter

	p := &Packages{
		Archives:    append(runtimes, rest...),
		downloadDir: downloadDir,
		ids:         ids,
	}

	if err := p.checkIDs(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Packages) checkIDs() error {
	byID := make(map[string]string, len(p.Archives))
	for _, a := range p.Archives {
		if other, ok := byID[a.ID()]; ok {
			return configErrorf("archives %s and %s both map to component id %s", other, a.Filename, a.ID())
		}
		byID[a.ID()] = a.Filename
	}
	return nil
}

func (p *Packages) Runtime() Archive {
	return p.Archives[0]
}

func (p *Packages) Interpreter() Archive {
	return p.Archives[1]
}

// Filenames returns the archive filenames, in install order.
func (p *Packages) Filenames() []string {
	fns := make([]string, len(p.Archives))
	for i, a := range p.Archives {
		fns[i] = a.Filename
	}
	return fns
}

func (s ComponentStrategy) harvests(a Archive) bool {
	return s == Harvested || a.Role != RolePackage
}

// Harvests returns the archives that are unpacked and harvested by
// heat at build time, in install order.
func (p *Packages) Harvests(strategy ComponentStrategy) []Archive {
	var archives []Archive
	for _, a := range p.Archives {
		if strategy.harvests(a) {
			archives = append(archives, a)
		}
	}
	return archives
}

// Components returns the component declarations, one xml line per
// element, for `@PKG_COMPONENTS@`.
func (p *Packages) Components(strategy ComponentStrategy) ([]string, error) {
	if strategy != PerArchive && strategy != Harvested {
		return nil, errors.Errorf("unknown component strategy %d", strategy)
	}

	var lines []string
	for _, a := range p.Archives {
		id := a.ID()

		var elements []interface{}
		switch {
		case strategy.harvests(a):
			elements = []interface{}{
				Directory{Id: id + "DIR", Name: a.Folder()},
			}
		default:
			elements = []interface{}{
				Component{
					Id:   id,
					Guid: "*",
					Files: []File{{
						Id:      id + "ARCHIVE",
						Name:    a.Filename,
						Source:  filepath.Join(p.downloadDir, a.Filename),
						KeyPath: Yes,
					}},
				},
				Directory{
					Id:   id + "DIR",
					Name: a.Folder(),
					Components: []Component{{
						Id:   id + "FOLDER",
						Guid: p.ids.Deterministic(a.Name),
						RemoveFiles: []RemoveFile{{
							Id:   id + "PackageFiles",
							On:   InstallUninstallUninstall,
							Name: "*",
						}},
						RemoveFolders: []RemoveFolder{{
							Id: id + "FILES",
							On: InstallUninstallUninstall,
						}},
					}},
				},
			}
		}

		for _, e := range elements {
			l, err := xmlLines(e)
			if err != nil {
				return nil, errors.Wrapf(err, "encoding component for %s", a.Filename)
			}
			lines = append(lines, l...)
		}
	}

	return lines, nil
}

// ComponentRefs returns the feature tree references for
// `@PKG_COMPONENTS_REFS@`. The runtime and interpreter are wired into
// the template directly, and are skipped.
func (p *Packages) ComponentRefs(strategy ComponentStrategy) ([]string, error) {
	var lines []string
	for _, a := range p.Archives {
		if a.Role != RolePackage {
			continue
		}

		var elements []interface{}
		switch strategy {
		case PerArchive:
			elements = []interface{}{
				ComponentRef{Id: a.ID()},
				ComponentRef{Id: a.ID() + "FOLDER"},
			}
		case Harvested:
			elements = []interface{}{
				ComponentGroupRef{Id: a.ID() + "FILES"},
			}
		default:
			return nil, errors.Errorf("unknown component strategy %d", strategy)
		}

		for _, e := range elements {
			l, err := xmlLines(e)
			if err != nil {
				return nil, errors.Wrapf(err, "encoding component ref for %s", a.Filename)
			}
			lines = append(lines, l...)
		}
	}

	return lines, nil
}

// HarvestSourceDefines returns the candle `-d` defines that the heat
// output references, keyed `<id>Source`.
func (p *Packages) HarvestSourceDefines(strategy ComponentStrategy, unpackRoot string) map[string]string {
	defines := make(map[string]string, len(p.Archives))
	for _, a := range p.Harvests(strategy) {
		defines[a.ID()+"Source"] = filepath.Join(unpackRoot, a.Folder())
	}
	return defines
}

// sortedKeys is used wherever a map becomes an argument list.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
