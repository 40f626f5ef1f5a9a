package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmylchreest/gh-please/internal/security"
	pluginapi "github.com/jmylchreest/gh-please/pkg/plugin"
)

// installPremium runs the premium pipeline. Each stage either passes or ends
// the install with a failed Result naming that stage. A failure after the
// plugin directory is created leaves whatever was written in place.
func (i *Installer) installPremium(ctx context.Context, name string) Result {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	logger := i.logger.With("plugin", name)

	logger.Debug("validating plugin name")
	if err := security.ValidatePluginName(name); err != nil {
		return failed(name, &StageError{Stage: StageValidate, Kind: KindValidation, Message: "Invalid plugin name", Err: err})
	}

	logger.Debug("checking GitHub CLI authentication")
	if !i.auth.IsAuthenticated(ctx) {
		return failed(name, &StageError{
			Stage:   StageAuth,
			Kind:    KindAuth,
			Message: "GitHub CLI authentication required",
			Detail:  AuthRemediation,
			Err:     ErrNotAuthenticated,
		})
	}

	repo, ok := i.sources[name]
	if !ok {
		return failed(name, &StageError{
			Stage:   StageResolve,
			Kind:    KindUnknownSource,
			Message: fmt.Sprintf("Unknown premium plugin: %s", name),
			Detail:  UnknownPluginMsg,
			Err:     ErrUnknownPlugin,
		})
	}
	logger.Debug("resolved premium source", "repo", repo)

	dir := i.PluginDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return failed(name, &StageError{Stage: StagePrepare, Kind: KindFileSystem, Message: "Failed to create plugin directory", Err: err})
	}

	logger.Debug("downloading release artifact", "repo", repo, "pattern", i.tarballPattern, "dir", dir)
	if err := i.downloader.Download(ctx, repo, i.tarballPattern, dir); err != nil {
		return failed(name, &StageError{
			Stage:   StageDownload,
			Kind:    KindDownload,
			Message: "Failed to download plugin",
			Detail:  fmt.Sprintf("Could not access repository %s: %v", repo, err),
			Err:     err,
		})
	}

	archive, err := i.locateArchive(dir)
	if err != nil {
		return failed(name, &StageError{
			Stage:   StageExtract,
			Kind:    KindDownload,
			Message: "No plugin archive found",
			Detail:  fmt.Sprintf("No file matching %s was downloaded to %s", i.tarballPattern, dir),
			Err:     err,
		})
	}

	logger.Debug("extracting archive", "archive", archive)
	if err := i.archives.ExtractTarball(archive, dir); err != nil {
		return failed(name, &StageError{Stage: StageExtract, Kind: KindFileSystem, Message: "Failed to extract plugin", Err: err})
	}
	if err := i.archives.CleanupArchive(archive); err != nil {
		logger.Warn("failed to remove downloaded archive", "archive", archive, "error", err)
	}

	logger.Debug("verifying plugin manifest")
	manifest := filepath.Join(dir, pluginapi.ManifestFile)
	if _, err := os.Stat(manifest); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = ErrNoManifest
		}
		return failed(name, &StageError{
			Stage:   StageVerify,
			Kind:    KindVerification,
			Message: "Plugin verification failed",
			Detail:  fmt.Sprintf("%s not found in %s", pluginapi.ManifestFile, dir),
			Err:     err,
		})
	}

	logger.Info("premium plugin installed", "path", dir)
	return succeeded(name, StageComplete, fmt.Sprintf("Plugin %s installed to %s", name, dir), dir)
}

// locateArchive returns the first regular file in dir matching the tarball
// pattern. ReadDir sorts by name, so the lexically first match wins.
func (i *Installer) locateArchive(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read plugin directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		ok, err := filepath.Match(i.tarballPattern, entry.Name())
		if err != nil {
			return "", fmt.Errorf("invalid tarball pattern %q: %w", i.tarballPattern, err)
		}
		if ok {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", ErrNoArtifact
	}
	return filepath.Join(dir, names[0]), nil
}
