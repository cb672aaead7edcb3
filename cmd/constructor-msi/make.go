package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/kolide/constructor/pkg/construct"
	"github.com/kolide/constructor/pkg/contexts/ctxlog"
	"github.com/kolide/constructor/pkg/packagekit"
	"github.com/kolide/constructor/pkg/packagekit/wix"
	"github.com/kolide/constructor/pkg/packaging"
	"github.com/kolide/kit/fsutil"
	"github.com/kolide/kit/logutil"
	"github.com/peterbourgon/ff/v3"
	"github.com/pkg/errors"
)

func runMake(args []string) error {
	flagset := flag.NewFlagSet("constructor-msi make", flag.ExitOnError)
	var (
		flDebug          = flagset.Bool("debug", false, "enable debug logging")
		flDir            = flagset.String("dir", ".", "directory containing construct.yaml")
		flOutputDir      = flagset.String("output-dir", "", "where to write the installer. Defaults to -dir")
		flPlatform       = flagset.String("platform", "win-64", "the platform to build for (win-32 or win-64)")
		flDownloadDir    = flagset.String("download-dir", "", "directory holding the package archives. Defaults to ~/.conda/constructor/<platform>")
		flWixPath        = flagset.String("wix", "", "path to the WiX toolset installation")
		flDockerImage    = flagset.String("wix-docker-image", "", "run the WiX tools under wine in this docker image")
		flStrategy       = flagset.String("strategy", wix.PerArchive.String(), "component strategy: per-archive or harvested")
		flTemplate       = flagset.String("template", "", "path to a wxs template. Defaults to the built in one")
		flBuildRoot      = flagset.String("build-root", "", "parent directory for the scratch dir. Defaults to the system temp dir")
		flSkipCleanup    = flagset.Bool("skip-cleanup", false, "keep the scratch dir after a successful build")
		flSkipValidation = flagset.Bool("skip-validation", false, "skip msi validation in light")
		flSigntool       = flagset.Bool("signtool", false, "sign the msi with signtool.exe")
		flSigntoolArgs   = flagset.String("signtool-args", "", "space separated extra arguments for signtool.exe")
		_                = flagset.String("config", "", "config file (optional)")
	)

	flagset.Usage = usageFor(flagset, "constructor-msi make [flags]")

	ffOpts := []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("CONSTRUCTOR"),
	}

	if err := ff.Parse(flagset, args, ffOpts...); err != nil {
		return errors.Wrap(err, "parsing flags")
	}

	logger := logutil.NewCLILogger(*flDebug)
	ctx := ctxlog.NewContext(context.Background(), logger)

	platform, err := packaging.ParsePlatform(*flPlatform)
	if err != nil {
		logutil.Fatal(logger, "msg", "bad platform", "err", err)
	}
	if platform.OS != packaging.Windows {
		logutil.Fatal(logger, "msg", "only win-32 and win-64 are supported", "platform", platform.String())
	}

	strategy, err := wix.ParseComponentStrategy(*flStrategy)
	if err != nil {
		logutil.Fatal(logger, "msg", "bad strategy", "err", err)
	}

	info, err := construct.Parse(filepath.Join(*flDir, construct.Filename), platform)
	if err != nil {
		logutil.Fatal(logger, "msg", "reading construct.yaml", "err", err)
	}

	dists, err := info.Dists()
	if err != nil {
		logutil.Fatal(logger, "msg", "listing packages", "err", err)
	}

	downloadDir := *flDownloadDir
	if downloadDir == "" {
		if downloadDir, err = construct.DefaultDownloadDir(platform); err != nil {
			logutil.Fatal(logger, "msg", "finding download dir", "err", err)
		}
	}

	po := packagekit.PackageOptions{
		Name:           info.Name,
		Version:        info.Version,
		Company:        info.Company,
		LicenseFile:    info.LicenseFile,
		Dists:          dists,
		PackageURLs:    info.Packages.Items,
		DownloadDir:    downloadDir,
		Platform:       platform,
		PostInstall:    info.PostInstall,
		PreInstall:     info.PreInstall,
		WebEnvironment: info.WebEnvironment,
		MenuPackages:   info.MenuPackages,
		Images: packagekit.ImageOptions{
			WelcomeImage:     info.WelcomeImage,
			HeaderImage:      info.HeaderImage,
			IconImage:        info.IconImage,
			WelcomeImageText: info.WelcomeImageText,
			HeaderImageText:  info.HeaderImageText,
			Color:            info.DefaultImageColor,
		},
		ComponentStrategy:  strategy,
		TemplatePath:       *flTemplate,
		WindowsUseSigntool: *flSigntool,
		WixPath:            *flWixPath,
		WixDockerImage:     *flDockerImage,
		WixSkipValidation:  *flSkipValidation,
		WixSkipCleanup:     *flSkipCleanup,
		BuildRoot:          *flBuildRoot,
	}
	if *flSigntoolArgs != "" {
		po.WindowsSigntoolArgs = strings.Fields(*flSigntoolArgs)
	}

	outputDir := *flOutputDir
	if outputDir == "" {
		outputDir = *flDir
	}
	if err := os.MkdirAll(outputDir, fsutil.DirMode); err != nil {
		logutil.Fatal(logger, "msg", "making output dir", "err", err)
	}

	outputPath := filepath.Join(outputDir, info.OutputFilename(platform))
	outputFile, err := os.Create(outputPath)
	if err != nil {
		logutil.Fatal(logger, "msg", "creating output file", "err", err)
	}
	defer outputFile.Close()

	level.Debug(logger).Log(
		"msg", "building msi",
		"name", info.Name,
		"version", info.Version,
		"platform", platform.String(),
		"strategy", strategy.String(),
		"packages", len(dists),
	)

	if err := packagekit.PackageWixMSI(ctx, outputFile, po); err != nil {
		outputFile.Close()
		os.Remove(outputPath)
		logutil.Fatal(logger, "msg", "building msi", "err", err)
	}

	level.Info(logger).Log("msg", "wrote installer", "path", outputPath)
	return nil
}
