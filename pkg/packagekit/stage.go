package packagekit

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf16"

	"github.com/go-kit/kit/log/level"
	"github.com/kolide/constructor/pkg/contexts/ctxlog"
	"github.com/kolide/constructor/pkg/packagekit/internal"
	"github.com/kolide/constructor/pkg/packagekit/wix"
	"github.com/kolide/kit/fsutil"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// Staged file names. The template refers to these through the
// properties block.
const (
	installPyFile      = ".install.py"
	urlsFile           = "urls"
	urlsTxtFile        = "urls.txt"
	postInstallFile    = "post_install.bat"
	webEnvironmentFile = "web_environment.yml"
	harvestXSLTFile    = "harvest.xslt"
	licenseRtfFile     = "license.rtf"
	placeholderLicense = "placeholder_license.txt"

	emptyPostInstall = ":: this is an empty post install .bat script\n"
)

// stagePayload writes the auxiliary installer files into buildDir. It
// returns the absolute path of the license, as given or as a staged
// placeholder.
func stagePayload(ctx context.Context, buildDir string, po PackageOptions, pkgs *wix.Packages) (string, error) {
	ctx, span := trace.StartSpan(ctx, "packagekit.stagePayload")
	defer span.End()

	logger := ctxlog.FromContext(ctx)

	for _, asset := range []struct {
		name string
		dest string
	}{
		{name: internal.InstallPy, dest: installPyFile},
		{name: internal.HarvestXSLT, dest: harvestXSLTFile},
	} {
		if err := writeAsset(asset.name, filepath.Join(buildDir, asset.dest)); err != nil {
			return "", err
		}
	}

	urls := packageURLs(pkgs.Filenames(), po.PackageURLs)
	if err := writeLines(filepath.Join(buildDir, urlsFile), urls); err != nil {
		return "", err
	}
	if err := writeLines(filepath.Join(buildDir, urlsTxtFile), stripMD5(urls)); err != nil {
		return "", err
	}

	postDst := filepath.Join(buildDir, postInstallFile)
	if po.PostInstall != "" {
		if err := fsutil.CopyFile(po.PostInstall, postDst); err != nil {
			return "", errors.Wrapf(err, "copying post install %s", po.PostInstall)
		}
	} else {
		if err := os.WriteFile(postDst, []byte(emptyPostInstall), 0644); err != nil {
			return "", errors.Wrapf(err, "writing %s", postDst)
		}
	}

	if po.WebEnvironment != "" {
		if err := fsutil.CopyFile(po.WebEnvironment, filepath.Join(buildDir, webEnvironmentFile)); err != nil {
			return "", errors.Wrapf(err, "copying web environment %s", po.WebEnvironment)
		}
	}

	if err := writeImages(buildDir, po.Name, po.Images); err != nil {
		return "", errors.Wrap(err, "writing images")
	}

	licenseFile := po.LicenseFile
	if licenseFile == "" {
		licenseFile = filepath.Join(buildDir, placeholderLicense)
		if err := writeAsset(internal.PlaceholderLicense, licenseFile); err != nil {
			return "", err
		}
	}
	licenseFile, err := filepath.Abs(licenseFile)
	if err != nil {
		return "", errors.Wrapf(err, "absolute path of %s", licenseFile)
	}

	if err := writeLicenseRtf(licenseFile, filepath.Join(buildDir, licenseRtfFile)); err != nil {
		return "", err
	}

	level.Debug(logger).Log("msg", "staged payload", "dir", buildDir, "license", licenseFile)
	return licenseFile, nil
}

func writeAsset(name, dest string) error {
	data, err := internal.Asset(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", dest)
	}
	return nil
}

func writeLines(dest string, lines []string) error {
	var content string
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(dest, []byte(content), 0644); err != nil {
		return errors.Wrapf(err, "writing %s", dest)
	}
	return nil
}

// packageURLs returns a url line per dist, in install order. A dist
// with no matching url is listed by filename.
func packageURLs(dists []string, urls []string) []string {
	byFilename := make(map[string]string, len(urls))
	for _, u := range urls {
		byFilename[path.Base(stripMD5([]string{u})[0])] = u
	}

	lines := make([]string, len(dists))
	for i, fn := range dists {
		if u, ok := byFilename[fn]; ok {
			lines[i] = u
			continue
		}
		lines[i] = fn
	}
	return lines
}

func stripMD5(urls []string) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = strings.SplitN(u, "#", 2)[0]
	}
	return out
}

// writeLicenseRtf stages the license for WixUI, which only displays
// rtf. Anything that isn't already rtf is treated as plain text.
func writeLicenseRtf(src, dest string) error {
	if strings.EqualFold(filepath.Ext(src), ".rtf") {
		if err := fsutil.CopyFile(src, dest); err != nil {
			return errors.Wrapf(err, "copying license %s", src)
		}
		return nil
	}

	text, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrapf(err, "reading license %s", src)
	}

	if err := os.WriteFile(dest, []byte(textToRtf(string(text))), 0644); err != nil {
		return errors.Wrapf(err, "writing %s", dest)
	}
	return nil
}

func textToRtf(text string) string {
	var b strings.Builder
	b.WriteString(`{\rtf1\ansi\deff0{\fonttbl{\f0 Courier New;}}\f0\fs18` + "\n")

	text = strings.Replace(text, "\r\n", "\n", -1)
	for _, r := range strings.TrimRight(text, "\n") {
		switch {
		case r == '\\' || r == '{' || r == '}':
			b.WriteRune('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString("\\par\n")
		case r > 0xffff:
			// outside the BMP, rtf wants the utf-16 surrogate pair
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&b, "\\u%d?\\u%d?", int16(r1), int16(r2))
		case r > 127:
			// rtf \u takes a signed 16 bit value, and a fallback character.
			fmt.Fprintf(&b, "\\u%d?", int16(r))
		default:
			b.WriteRune(r)
		}
	}

	b.WriteString("\n}\n")
	return b.String()
}
