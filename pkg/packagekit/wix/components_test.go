package wix

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestParseArchive(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		in      string
		name    string
		version string
		build   string
		folder  string
		id      string
	}{
		{in: "numpy-1.10-0.tar.bz2", name: "numpy", version: "1.10", build: "0", folder: "numpy-1.10-0", id: "numpy"},
		{in: "ca-certificates-2017.1.26-0.tar.bz2", name: "ca-certificates", version: "2017.1.26", build: "0", folder: "ca-certificates-2017.1.26-0", id: "cacertificates"},
		{in: "7za-9.20-0.tar.bz2", name: "7za", version: "9.20", build: "0", folder: "7za-9.20-0", id: "_7za"},
		{in: "pip-8.1.1-py35_1.tar.bz2", name: "pip", version: "8.1.1", build: "py35_1", folder: "pip-8.1.1-py35_1", id: "pip"},
	}

	for _, tt := range tests {
		a, err := ParseArchive(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.name, a.Name)
		require.Equal(t, tt.version, a.Version)
		require.Equal(t, tt.build, a.Build)
		require.Equal(t, tt.folder, a.Folder())
		require.Equal(t, tt.id, a.ID())
		require.Equal(t, RolePackage, a.Role)
	}
}

func TestParseArchiveMalformed(t *testing.T) {
	t.Parallel()

	var tests = []string{
		"numpy.tar.bz2",
		"numpy-1.10.tar.bz2",
		"-1.10-0.tar.bz2",
		"numpy--0.tar.bz2",
		"numpy-1.10-.tar.bz2",
		"numpy-1.10-0.zip",
		"pkgs/numpy-1.10-0.tar.bz2",
	}

	for _, in := range tests {
		_, err := ParseArchive(in)
		require.Error(t, err, in)

		var malformed *MalformedArchiveNameError
		require.True(t, errors.As(err, &malformed), in)
		require.Equal(t, in, malformed.Filename)
	}
}

func TestEnumerateOrder(t *testing.T) {
	t.Parallel()

	p, err := Enumerate(
		[]string{"python-3.5.1-0.tar.bz2", "vs2015_runtime-1.0-1.tar.bz2", "numpy-1.10-0.tar.bz2"},
		nil,
		`C:\pkgs`,
		NewIdentifiers(uuid.Nil),
	)
	require.NoError(t, err)

	require.Equal(t, []string{"vs2015_runtime-1.0-1.tar.bz2", "python-3.5.1-0.tar.bz2", "numpy-1.10-0.tar.bz2"}, p.Filenames())
	require.Equal(t, RoleRuntime, p.Runtime().Role)
	require.Equal(t, "MSVC", p.Runtime().ID())
	require.Equal(t, RoleInterpreter, p.Interpreter().Role)
	require.Equal(t, "Python", p.Interpreter().ID())
	require.Equal(t, RolePackage, p.Archives[2].Role)
}

func TestEnumerateRuntimeRule(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name    string
		in      []string
		runtime string
	}{
		{
			name:    "py27",
			in:      []string{"vs2008_runtime-9.0-1.tar.bz2", "python-2.7.13-0.tar.bz2"},
			runtime: "vs2008_runtime-9.0-1.tar.bz2",
		},
		{
			name:    "py34",
			in:      []string{"python-3.4.5-0.tar.bz2", "vs2010_runtime-10.0-0.tar.bz2"},
			runtime: "vs2010_runtime-10.0-0.tar.bz2",
		},
		{
			name:    "py38 msvc",
			in:      []string{"msvc_runtime-14.1-0.tar.bz2", "python-3.8.1-0.tar.bz2"},
			runtime: "msvc_runtime-14.1-0.tar.bz2",
		},
		{
			name:    "py310 msvc",
			in:      []string{"python-3.10.4-0.tar.bz2", "msvc_runtime-14.1-0.tar.bz2", "vs2015_runtime-14.0-0.tar.bz2"},
			runtime: "msvc_runtime-14.1-0.tar.bz2",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := Enumerate(tt.in, DefaultRuntimeRule(), "pkgs", NewIdentifiers(uuid.Nil))
			require.NoError(t, err)
			require.Equal(t, tt.runtime, p.Runtime().Filename)
		})
	}
}

func TestEnumerateConfigurationErrors(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name string
		in   []string
	}{
		{name: "no runtime", in: []string{"python-3.5.1-0.tar.bz2", "numpy-1.10-0.tar.bz2"}},
		{name: "two runtimes", in: []string{"python-3.5.1-0.tar.bz2", "vs2015_runtime-1.0-1.tar.bz2", "vs2015_runtime-1.0-2.tar.bz2"}},
		{name: "runtime and msvc", in: []string{"python-3.5.1-0.tar.bz2", "vs2015_runtime-1.0-1.tar.bz2", "msvc_runtime-14.1-0.tar.bz2"}},
		{name: "wrong runtime", in: []string{"python-3.5.1-0.tar.bz2", "vs2008_runtime-9.0-1.tar.bz2"}},
		{name: "no interpreter", in: []string{"vs2015_runtime-1.0-1.tar.bz2", "numpy-1.10-0.tar.bz2"}},
		{name: "two interpreters", in: []string{"python-3.5.1-0.tar.bz2", "vs2015_runtime-1.0-1.tar.bz2", "python-3.5.2-0.tar.bz2"}},
		{name: "interpreter not first", in: []string{"numpy-1.10-0.tar.bz2", "python-3.5.1-0.tar.bz2", "vs2015_runtime-1.0-1.tar.bz2"}},
		{name: "duplicate filename", in: []string{"python-3.5.1-0.tar.bz2", "vs2015_runtime-1.0-1.tar.bz2", "numpy-1.10-0.tar.bz2", "numpy-1.10-0.tar.bz2"}},
		{name: "colliding ids", in: []string{"python-3.5.1-0.tar.bz2", "vs2015_runtime-1.0-1.tar.bz2", "numpy-base-1.10-0.tar.bz2", "numpybase-1.10-0.tar.bz2"}},
	}

	for _, tt := range tests {
		_, err := Enumerate(tt.in, nil, "pkgs", NewIdentifiers(uuid.Nil))
		require.Error(t, err, tt.name)

		var configErr *ConfigurationError
		require.True(t, errors.As(err, &configErr), "%s: %v", tt.name, err)
	}
}

func TestComponentsPerArchive(t *testing.T) {
	t.Parallel()

	p, err := Enumerate(
		[]string{"python-3.5.1-0.tar.bz2", "vs2015_runtime-1.0-1.tar.bz2", "numpy-1.10-0.tar.bz2"},
		nil,
		"pkgs",
		NewIdentifiers(uuid.Nil),
	)
	require.NoError(t, err)

	lines, err := p.Components(PerArchive)
	require.NoError(t, err)
	text := strings.Join(lines, "\n")

	// the runtime and interpreter are harvested, so python.exe is
	// installed before the install action runs
	require.Equal(t, 1, strings.Count(text, `<Directory Id="MSVCDIR" Name="vs2015_runtime-1.0-1"></Directory>`))
	require.Equal(t, 1, strings.Count(text, `<Directory Id="PythonDIR" Name="python-3.5.1-0"></Directory>`))
	require.NotContains(t, text, `Id="MSVCARCHIVE"`)
	require.NotContains(t, text, `Id="PythonARCHIVE"`)
	require.Equal(t, 1, strings.Count(text, `<Component Id="numpy" Guid="*">`))
	require.Less(t, strings.Index(text, `Id="MSVCDIR"`), strings.Index(text, `Id="PythonDIR"`))
	require.Less(t, strings.Index(text, `Id="PythonDIR"`), strings.Index(text, `Id="numpy"`))

	require.Contains(t, text, `<File Id="numpyARCHIVE" Name="numpy-1.10-0.tar.bz2" Source="pkgs/numpy-1.10-0.tar.bz2" KeyPath="yes"></File>`)
	require.Contains(t, text, `<Directory Id="numpyDIR" Name="numpy-1.10-0">`)
	require.Contains(t, text, `<Component Id="numpyFOLDER" Guid="904FC199-3908-5A35-8DDA-E4717D64C735">`)
	require.Contains(t, text, `<RemoveFile Id="numpyPackageFiles" On="uninstall" Name="*"></RemoveFile>`)
	require.Contains(t, text, `<RemoveFolder Id="numpyFILES" On="uninstall"></RemoveFolder>`)

	require.Equal(t, map[string]string{
		"MSVCSource":   "unpack/vs2015_runtime-1.0-1",
		"PythonSource": "unpack/python-3.5.1-0",
	}, p.HarvestSourceDefines(PerArchive, "unpack"))

	require.NoError(t, CheckWellFormed("<Wix>"+text+"</Wix>"))
}

func TestComponentsHarvested(t *testing.T) {
	t.Parallel()

	p, err := Enumerate(
		[]string{"python-3.5.1-0.tar.bz2", "vs2015_runtime-1.0-1.tar.bz2", "numpy-1.10-0.tar.bz2"},
		nil,
		"pkgs",
		NewIdentifiers(uuid.Nil),
	)
	require.NoError(t, err)

	lines, err := p.Components(Harvested)
	require.NoError(t, err)
	require.Equal(t, []string{
		`<Directory Id="MSVCDIR" Name="vs2015_runtime-1.0-1"></Directory>`,
		`<Directory Id="PythonDIR" Name="python-3.5.1-0"></Directory>`,
		`<Directory Id="numpyDIR" Name="numpy-1.10-0"></Directory>`,
	}, lines)

	require.Equal(t, map[string]string{
		"MSVCSource":   "unpack/vs2015_runtime-1.0-1",
		"PythonSource": "unpack/python-3.5.1-0",
		"numpySource":  "unpack/numpy-1.10-0",
	}, p.HarvestSourceDefines(Harvested, "unpack"))
}

func TestHarvests(t *testing.T) {
	t.Parallel()

	p, err := Enumerate(
		[]string{"python-3.5.1-0.tar.bz2", "vs2015_runtime-1.0-1.tar.bz2", "numpy-1.10-0.tar.bz2"},
		nil,
		"pkgs",
		NewIdentifiers(uuid.Nil),
	)
	require.NoError(t, err)

	var tests = []struct {
		strategy ComponentStrategy
		out      []string
	}{
		{strategy: PerArchive, out: []string{"vs2015_runtime-1.0-1.tar.bz2", "python-3.5.1-0.tar.bz2"}},
		{strategy: Harvested, out: []string{"vs2015_runtime-1.0-1.tar.bz2", "python-3.5.1-0.tar.bz2", "numpy-1.10-0.tar.bz2"}},
	}

	for _, tt := range tests {
		var fns []string
		for _, a := range p.Harvests(tt.strategy) {
			fns = append(fns, a.Filename)
		}
		require.Equal(t, tt.out, fns, tt.strategy.String())
	}
}

func TestComponentRefs(t *testing.T) {
	t.Parallel()

	p, err := Enumerate(
		[]string{"python-3.5.1-0.tar.bz2", "vs2015_runtime-1.0-1.tar.bz2", "numpy-1.10-0.tar.bz2", "ca-certificates-2017.1.26-0.tar.bz2"},
		nil,
		"pkgs",
		NewIdentifiers(uuid.Nil),
	)
	require.NoError(t, err)

	var tests = []struct {
		strategy ComponentStrategy
		out      []string
	}{
		{
			strategy: PerArchive,
			out: []string{
				`<ComponentRef Id="numpy"></ComponentRef>`,
				`<ComponentRef Id="numpyFOLDER"></ComponentRef>`,
				`<ComponentRef Id="cacertificates"></ComponentRef>`,
				`<ComponentRef Id="cacertificatesFOLDER"></ComponentRef>`,
			},
		},
		{
			strategy: Harvested,
			out: []string{
				`<ComponentGroupRef Id="numpyFILES"></ComponentGroupRef>`,
				`<ComponentGroupRef Id="cacertificatesFILES"></ComponentGroupRef>`,
			},
		},
	}

	for _, tt := range tests {
		lines, err := p.ComponentRefs(tt.strategy)
		require.NoError(t, err)
		require.Equal(t, tt.out, lines, tt.strategy.String())
	}
}

func TestParseComponentStrategy(t *testing.T) {
	t.Parallel()

	for _, s := range []ComponentStrategy{PerArchive, Harvested} {
		parsed, err := ParseComponentStrategy(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}

	_, err := ParseComponentStrategy("bogus")
	require.Error(t, err)
}
