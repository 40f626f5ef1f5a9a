package cli

import (
	"fmt"

	"github.com/jmylchreest/gh-please/internal/compression"
	"github.com/jmylchreest/gh-please/internal/config"
	"github.com/jmylchreest/gh-please/internal/host"
	"github.com/jmylchreest/gh-please/internal/pathutil"
	"github.com/jmylchreest/gh-please/internal/pkgmanager"
	"github.com/jmylchreest/gh-please/internal/plugin/installer"
	"github.com/jmylchreest/gh-please/internal/plugin/loader"
	"github.com/jmylchreest/gh-please/internal/plugin/registry"
)

func (a *app) resolver() *pathutil.Resolver {
	return pathutil.NewResolver(a.cfg.Home)
}

// downloader returns the release backend selected by configuration. The api
// backend resolves its token on the first request, so a missing token fails
// the download stage rather than building the installer.
func (a *app) downloader() (host.ReleaseDownloader, error) {
	if a.cfg.Downloader != config.DownloaderAPI {
		return host.NewGHReleaseDownloader(a.runner, a.cfg.GHPath, a.logger.Named("download")), nil
	}

	ts := host.NewTokenSource(a.cfg.Token, a.runner, a.cfg.GHPath)
	dl, err := host.NewAPIReleaseDownloader(ts, host.WithAPILogger(a.logger.Named("download")))
	if err != nil {
		return nil, fmt.Errorf("failed to create API downloader: %w", err)
	}
	return dl, nil
}

func (a *app) installer() (*installer.Installer, error) {
	dl, err := a.downloader()
	if err != nil {
		return nil, err
	}
	return installer.NewBuilder().
		WithResolver(a.resolver()).
		WithArchiver(compression.NewService(compression.WithLogger(a.logger.Named("archive")))).
		WithAuthGate(host.NewGHAuthGate(a.runner, a.cfg.GHPath, a.logger.Named("auth"))).
		WithDownloader(dl).
		WithPackageManager(pkgmanager.NewNPM(a.runner, a.cfg.PackageManager, a.logger.Named("npm"))).
		WithTimeout(a.cfg.Timeout).
		WithLogger(a.logger.Named("installer")).
		Build(), nil
}

func (a *app) registry() *registry.Registry {
	r := registry.New(
		registry.WithPackagesDir(a.cfg.PackagesDir),
		registry.WithResolver(a.resolver()),
		registry.WithLogger(a.logger.Named("registry")),
	)
	r.LoadPlugins()
	return r
}

func (a *app) loader() *loader.Loader {
	return loader.New(loader.WithLogger(a.logger.Named("loader")))
}
