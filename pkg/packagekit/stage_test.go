package packagekit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/kolide/constructor/pkg/packagekit/wix"
	"github.com/stretchr/testify/require"
)

func TestPackageURLs(t *testing.T) {
	t.Parallel()

	dists := []string{"vs2015_runtime-1.0-1.tar.bz2", "python-3.5.1-0.tar.bz2", "numpy-1.10-0.tar.bz2"}
	urls := []string{
		"https://repo.anaconda.com/pkgs/free/win-64/python-3.5.1-0.tar.bz2#0123abcd",
		"https://repo.anaconda.com/pkgs/free/win-64/vs2015_runtime-1.0-1.tar.bz2",
	}

	actual := packageURLs(dists, urls)
	require.Equal(t, []string{
		"https://repo.anaconda.com/pkgs/free/win-64/vs2015_runtime-1.0-1.tar.bz2",
		"https://repo.anaconda.com/pkgs/free/win-64/python-3.5.1-0.tar.bz2#0123abcd",
		"numpy-1.10-0.tar.bz2",
	}, actual)

	require.Equal(t, []string{
		"https://repo.anaconda.com/pkgs/free/win-64/vs2015_runtime-1.0-1.tar.bz2",
		"https://repo.anaconda.com/pkgs/free/win-64/python-3.5.1-0.tar.bz2",
		"numpy-1.10-0.tar.bz2",
	}, stripMD5(actual))
}

func TestTextToRtf(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		in  string
		out string
	}{
		{in: "MIT", out: "MIT"},
		{in: "line one\nline two\n", out: "line one\\par\nline two"},
		{in: "a\r\nb", out: "a\\par\nb"},
		{in: `C:\{x}`, out: `C:\\\{x\}`},
		{in: "caf\u00e9", out: "caf\\u233?"},
		{in: "\ufffd", out: "\\u-3?"},
		{in: "ok \U0001F600!", out: "ok \\u-10179?\\u-8704?!"},
	}

	for _, tt := range tests {
		actual := textToRtf(tt.in)
		require.True(t, strings.HasPrefix(actual, `{\rtf1`), tt.in)
		require.True(t, strings.HasSuffix(actual, "\n}\n"), tt.in)
		require.Contains(t, actual, tt.out, tt.in)
	}
}

func TestStagePayload(t *testing.T) {
	t.Parallel()

	pkgs, err := wix.Enumerate(
		[]string{"python-3.5.1-0.tar.bz2", "vs2015_runtime-1.0-1.tar.bz2"},
		nil, "pkgs", wix.NewIdentifiers(uuid.Nil),
	)
	require.NoError(t, err)

	var tests = []struct {
		name   string
		modify func(t *testing.T, po *PackageOptions)
		check  func(t *testing.T, buildDir, license string)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, buildDir, license string) {
				require.Equal(t, filepath.Join(buildDir, placeholderLicense), license)
				requireFileContent(t, filepath.Join(buildDir, postInstallFile), emptyPostInstall)
				requireFileContent(t, filepath.Join(buildDir, urlsTxtFile), "vs2015_runtime-1.0-1.tar.bz2\npython-3.5.1-0.tar.bz2\n")
				require.NoFileExists(t, filepath.Join(buildDir, webEnvironmentFile))
			},
		},
		{
			name: "given",
			modify: func(t *testing.T, po *PackageOptions) {
				dir := t.TempDir()
				po.LicenseFile = filepath.Join(dir, "LICENSE.txt")
				po.PostInstall = filepath.Join(dir, "post.bat")
				po.WebEnvironment = filepath.Join(dir, "env.yml")
				require.NoError(t, os.WriteFile(po.LicenseFile, []byte("BSD {3}"), 0644))
				require.NoError(t, os.WriteFile(po.PostInstall, []byte("echo hi\n"), 0644))
				require.NoError(t, os.WriteFile(po.WebEnvironment, []byte("name: base\n"), 0644))
			},
			check: func(t *testing.T, buildDir, license string) {
				require.Equal(t, "LICENSE.txt", filepath.Base(license))
				requireFileContent(t, filepath.Join(buildDir, postInstallFile), "echo hi\n")
				requireFileContent(t, filepath.Join(buildDir, webEnvironmentFile), "name: base\n")

				rtf, err := os.ReadFile(filepath.Join(buildDir, licenseRtfFile))
				require.NoError(t, err)
				require.Contains(t, string(rtf), `BSD \{3\}`)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			po := PackageOptions{Name: "Miniconda3"}
			if tt.modify != nil {
				tt.modify(t, &po)
			}

			buildDir := t.TempDir()
			license, err := stagePayload(context.TODO(), buildDir, po, pkgs)
			require.NoError(t, err)

			for _, fn := range []string{installPyFile, harvestXSLTFile, urlsFile, urlsTxtFile, postInstallFile, licenseRtfFile, headerImageFile, welcomeImageFile, iconImageFile} {
				require.FileExists(t, filepath.Join(buildDir, fn))
			}
			tt.check(t, buildDir, license)
		})
	}
}

func requireFileContent(t *testing.T, path, content string) {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, content, string(data))
}
