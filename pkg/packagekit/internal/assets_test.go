package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssets(t *testing.T) {
	t.Parallel()

	for _, name := range []string{TemplateWXS, HarvestXSLT, InstallPy, PlaceholderLicense} {
		data, err := Asset(name)
		require.NoError(t, err, name)
		require.NotEmpty(t, data, name)
	}

	_, err := Asset("missing.wxs")
	require.Error(t, err)
}

func TestInstallPyMenus(t *testing.T) {
	t.Parallel()

	data, err := Asset(InstallPy)
	require.NoError(t, err)

	// --menu-pkgs shortcuts are made from each package's Menu/*.json
	require.Contains(t, string(data), "--menu-pkgs")
	require.Contains(t, string(data), "make_menus(prefix, pkgs_dir, fns, set(menu_pkgs))")
	require.Contains(t, string(data), "menuinst.install(")
}
