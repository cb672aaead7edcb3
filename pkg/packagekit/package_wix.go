package packagekit

import (
	"context"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/constructor/pkg/contexts/ctxlog"
	"github.com/kolide/constructor/pkg/packagekit/authenticode"
	"github.com/kolide/constructor/pkg/packagekit/internal"
	"github.com/kolide/constructor/pkg/packagekit/wix"
	"github.com/kolide/constructor/pkg/packaging"
	"github.com/kolide/kit/ulid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

const (
	mainWxsFile = "main.wxs"
	unpackDir   = "unpack"
)

// webEnvironmentCmd installs web_environment.yml, and applies it with
// conda once the packages are linked.
var webEnvironmentCmd = []string{
	`<Feature Id="WebEnvironment" Title="Environment" Level="1">`,
	`  <Component Id="WebEnvironmentFile" Directory="INSTALLDIR" Guid="*">`,
	`    <File Id="WebEnvironmentYml" Source="$(var.ResourcePath)\web_environment.yml" KeyPath="yes" />`,
	`  </Component>`,
	`</Feature>`,
	`<CustomAction Id="WebEnvironment" Directory="INSTALLDIR" Execute="deferred" Impersonate="no" Return="check"`,
	`              ExeCommand='"[INSTALLDIR]Scripts\conda.exe" env update --prefix "[INSTALLDIR]." --file "[INSTALLDIR]web_environment.yml"' />`,
	`<InstallExecuteSequence>`,
	`  <Custom Action="WebEnvironment" After="InstallPackages">NOT Installed</Custom>`,
	`</InstallExecuteSequence>`,
}

// PackageWixMSI builds an msi from the package archives described by
// po, and writes it to w.
//
// The scratch directory is removed after a successful build (unless
// WixSkipCleanup is set). On failure it is kept, and logged, for
// inspection.
func PackageWixMSI(ctx context.Context, w io.Writer, po PackageOptions, wixOpts ...wix.WixOpt) (err error) {
	ctx, span := trace.StartSpan(ctx, "packagekit.PackageWixMSI")
	defer span.End()

	logger := log.With(ctxlog.FromContext(ctx), "build_id", ulid.New())

	// Validate. Nothing here touches the filesystem, or runs anything.
	pkgs, msArch, err := validateWix(po)
	if err != nil {
		return err
	}

	if err := isDirectory(po.DownloadDir); err != nil {
		return &wix.ConfigurationError{Msg: "download dir: " + err.Error()}
	}

	buildDir, err := os.MkdirTemp(po.BuildRoot, "constructor-msi")
	if err != nil {
		return errors.Wrap(err, "making scratch dir")
	}
	level.Debug(logger).Log("msg", "created scratch dir", "builddir", buildDir)

	opts := []wix.WixOpt{wix.WithArch(msArch)}
	if po.WixPath != "" {
		opts = append(opts, wix.WithWix(po.WixPath))
	}
	if po.WixDockerImage != "" {
		opts = append(opts, wix.WithDocker(po.WixDockerImage), wix.WithMount(po.DownloadDir))
	}
	if po.WixSkipValidation {
		opts = append(opts, wix.SkipValidation())
	}
	opts = append(opts, wixOpts...)

	wixTool, err := wix.New(buildDir, opts...)
	if err != nil {
		os.RemoveAll(buildDir)
		return errors.Wrap(err, "creating wix tool")
	}

	if err := wixTool.Verify(ctx, "heat", "candle", "light"); err != nil {
		// Nothing has been staged yet, so there is nothing to inspect.
		os.RemoveAll(buildDir)
		return err
	}

	defer func() {
		if err != nil {
			level.Info(logger).Log("msg", "build failed, keeping scratch dir", "builddir", buildDir, "err", err)
			return
		}
		if po.WixSkipCleanup {
			level.Info(logger).Log("msg", "skipping cleanup", "builddir", buildDir)
			return
		}
		if rmErr := os.RemoveAll(buildDir); rmErr != nil {
			level.Info(logger).Log("msg", "removing scratch dir", "builddir", buildDir, "err", rmErr)
		}
	}()

	licenseFile, err := stagePayload(ctx, buildDir, po, pkgs)
	if err != nil {
		return errors.Wrap(err, "staging payload")
	}

	wxs, err := renderWixTemplate(ctx, po, pkgs, buildDir, licenseFile)
	if err != nil {
		return errors.Wrap(err, "rendering template")
	}

	mainWxs := filepath.Join(buildDir, mainWxsFile)
	if err := os.WriteFile(mainWxs, []byte(wxs), 0644); err != nil {
		return errors.Wrapf(err, "writing %s", mainWxs)
	}
	level.Debug(logger).Log("msg", "wrote wxs", "path", mainWxs)

	// The install action runs the interpreter out of pkgs, so the
	// runtime and interpreter are harvested under either strategy.
	harvests := pkgs.Harvests(po.ComponentStrategy)
	unpackRoot := filepath.Join(buildDir, unpackDir)
	if err := wix.Unpack(ctx, po.DownloadDir, unpackRoot, harvests); err != nil {
		return errors.Wrap(err, "unpacking archives")
	}

	sources := []string{mainWxs}
	for _, a := range harvests {
		harvest, err := wixTool.Heat(ctx, a.ID(), filepath.Join(unpackRoot, a.Folder()), filepath.Join(buildDir, harvestXSLTFile))
		if err != nil {
			return errors.Wrapf(err, "harvesting %s", a.Filename)
		}
		logHarvest(logger, a, harvest)
		sources = append(sources, harvest)
	}
	defines := pkgs.HarvestSourceDefines(po.ComponentStrategy, unpackRoot)

	objects, err := wixTool.Candle(ctx, sources, defines)
	if err != nil {
		return errors.Wrap(err, "running candle")
	}

	msi, err := wixTool.Light(ctx, objects, map[string]string{
		"WixUILicenseRtf": filepath.Join(buildDir, licenseRtfFile),
		"WixUIBannerBmp":  headerImageFile,
		"WixUIDialogBmp":  welcomeImageFile,
	})
	if err != nil {
		return errors.Wrap(err, "running light")
	}

	if po.WindowsUseSigntool {
		if err := authenticode.Sign(ctx, msi, authenticode.WithExtraArgs(po.WindowsSigntoolArgs)); err != nil {
			return errors.Wrap(err, "signing msi")
		}
	}

	if err := wixTool.Output(msi, w); err != nil {
		return err
	}

	level.Info(logger).Log("msg", "built msi", "name", po.Name, "version", po.Version, "platform", po.Platform.String())
	return nil
}

func validateWix(po PackageOptions) (*wix.Packages, string, error) {
	if po.PreInstall != "" {
		return nil, "", &wix.ConfigurationError{Msg: "cannot run pre install on Windows"}
	}
	if po.Name == "" || po.Version == "" {
		return nil, "", &wix.ConfigurationError{Msg: "name and version are required"}
	}

	msArch, err := po.Platform.MsArch()
	if err != nil {
		return nil, "", &wix.ConfigurationError{Msg: err.Error()}
	}

	if _, err := packaging.FormatVersion(po.Version); err != nil {
		return nil, "", &wix.ConfigurationError{Msg: err.Error()}
	}

	if _, err := imageColor(po.Images.Color); err != nil {
		return nil, "", &wix.ConfigurationError{Msg: err.Error()}
	}

	pkgs, err := wix.Enumerate(po.Dists, po.RuntimeRule, po.DownloadDir, wix.NewIdentifiers(po.Namespace))
	if err != nil {
		return nil, "", err
	}

	return pkgs, msArch, nil
}

// renderWixTemplate fills the template. The template may only use
// known placeholders, and the result is checked to be well formed xml.
func renderWixTemplate(ctx context.Context, po PackageOptions, pkgs *wix.Packages, buildDir, licenseFile string) (string, error) {
	_, span := trace.StartSpan(ctx, "packagekit.renderWixTemplate")
	defer span.End()

	ids := wix.NewIdentifiers(po.Namespace)

	templateFS, templateName := internal.Assets(), internal.TemplateWXS
	if po.TemplatePath != "" {
		templateFS = os.DirFS(filepath.Dir(po.TemplatePath))
		templateName = filepath.Base(po.TemplatePath)
	}

	text, err := wix.LoadTemplate(templateFS, templateName)
	if err != nil {
		return "", err
	}

	text, err = wix.Preprocess(text, po.Platform.Namespace())
	if err != nil {
		return "", errors.Wrap(err, "preprocessing template")
	}

	productVersion, err := packaging.FormatVersion(po.Version)
	if err != nil {
		return "", err
	}

	// All updates are major updates. A new upgrade code, and so a
	// distinct product, only comes with a new major version.
	tokens := map[string]string{
		"NAME":            po.Name,
		"VERSION":         po.Version,
		"PRODUCT_VERSION": productVersion,
		"COMPANY":         po.company(),
		"PRODUCT_GUID":    ids.Random(),
		"UPGRADE_GUID":    ids.Deterministic(po.Name + packaging.MajorVersion(po.Version)),
		"LICENSEFILE":     licenseFile,
	}

	components, err := pkgs.Components(po.ComponentStrategy)
	if err != nil {
		return "", err
	}
	refs, err := pkgs.ComponentRefs(po.ComponentStrategy)
	if err != nil {
		return "", err
	}

	var webEnvironment []string
	if po.WebEnvironment != "" {
		webEnvironment = webEnvironmentCmd
	}

	menuPkgs := make([]string, len(po.MenuPackages))
	for i, m := range po.MenuPackages {
		menuPkgs[i] = wix.EscapeXML(m)
	}

	fragments := []wix.Fragment{
		{Marker: "PROPERTIES", Lines: wixProperties(po, pkgs, buildDir, ids), Separator: "\n  "},
		{Marker: "PKG_COMPONENTS", Lines: components, Separator: "\n          "},
		{Marker: "PKG_COMPONENTS_REFS", Lines: refs, Separator: "\n        "},
		{Marker: "WEB_ENVIRONMENT", Lines: webEnvironment, Separator: "\n    "},
		{Marker: "MENU_PKGS", Lines: menuPkgs, Separator: " "},
	}

	// Checked before filling. Filled values are data, and may look
	// like placeholders.
	if unknown := wix.UnknownPlaceholders(text, tokens, fragments); len(unknown) > 0 {
		return "", &wix.ConfigurationError{Msg: "template has unknown placeholders: " + strings.Join(unknown, ", ")}
	}

	text = wix.Render(text, tokens, fragments)

	if err := wix.CheckWellFormed(text); err != nil {
		return "", err
	}

	return text, nil
}

// wixProperties returns the `<?define?>` lines for `@PROPERTIES@`,
// sorted by name.
func wixProperties(po PackageOptions, pkgs *wix.Packages, buildDir string, ids wix.Identifiers) []string {
	interpreter := pkgs.Interpreter()

	props := map[string]string{
		"PythonVersion":           packaging.MinorVersion(interpreter.Version),
		"PythonVersionJustDigits": packaging.VersionDigits(interpreter.Version),
		"PythonFolder":            interpreter.Folder(),
		"ResourcePath":            buildDir,
		"Name":                    po.Name,
		"EnvGUID":                 ids.Random(),
		"HeaderImage":             headerImageFile,
		"WelcomeImage":            welcomeImageFile,
		"IconFile":                iconImageFile,
		"InstallPy":               installPyFile,
		"UrlsFile":                urlsFile,
		"UrlsTxtFile":             urlsTxtFile,
		"PostInstall":             postInstallFile,
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = "<?define " + k + "='" + wix.EscapeXML(props[k]) + "'?>"
	}
	return lines
}

// logHarvest logs how many files heat found. An unreadable harvest is
// left for candle to report.
func logHarvest(logger log.Logger, a wix.Archive, harvestPath string) {
	data, err := os.ReadFile(harvestPath)
	if err != nil {
		level.Debug(logger).Log("msg", "reading harvest", "archive", a.Filename, "err", err)
		return
	}

	harvest := &wix.Wix{}
	if err := xml.Unmarshal(data, harvest); err != nil {
		level.Debug(logger).Log("msg", "parsing harvest", "archive", a.Filename, "err", err)
		return
	}

	level.Debug(logger).Log("msg", "harvested", "archive", a.Filename, "files", len(harvest.RetFiles()))
}
