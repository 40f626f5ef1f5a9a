// Package installer adds and removes gh-please plugins. Public plugins go
// through the package manager; premium plugins are downloaded as release
// tarballs from an authenticated repository.
package installer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/gh-please/internal/compression"
	"github.com/jmylchreest/gh-please/internal/host"
	"github.com/jmylchreest/gh-please/internal/pathutil"
	"github.com/jmylchreest/gh-please/internal/pkgmanager"
	"github.com/jmylchreest/gh-please/internal/process"
)

// DefaultTarballPattern selects the release asset of a premium plugin.
const DefaultTarballPattern = "*.tar.gz"

// Options controls Install.
type Options struct {
	Global  bool
	Premium bool
}

// UninstallOptions controls Uninstall.
type UninstallOptions struct {
	Global bool
}

// Archiver is the subset of the archive service the installer needs.
type Archiver interface {
	ExtractTarball(archivePath, targetDir string) error
	CleanupArchive(archivePath string) error
}

// Installer runs install and uninstall pipelines. Every exported method
// returns a Result and never panics.
type Installer struct {
	resolver       *pathutil.Resolver
	archives       Archiver
	auth           host.AuthGate
	downloader     host.ReleaseDownloader
	packages       pkgmanager.Manager
	sources        map[string]string
	installRoot    string
	tarballPattern string
	timeout        time.Duration
	logger         hclog.Logger
}

// Builder provides a fluent interface for constructing an Installer.
type Builder struct {
	installer Installer
	runner    process.Runner
	ghPath    string
}

// NewBuilder creates a new Installer builder with default settings.
func NewBuilder() *Builder {
	return &Builder{
		installer: Installer{
			installRoot:    pathutil.DefaultPluginsDir,
			tarballPattern: DefaultTarballPattern,
		},
	}
}

// WithResolver sets the path resolver used for the install root.
func (b *Builder) WithResolver(r *pathutil.Resolver) *Builder {
	b.installer.resolver = r
	return b
}

// WithArchiver sets the archive service.
func (b *Builder) WithArchiver(a Archiver) *Builder {
	b.installer.archives = a
	return b
}

// WithAuthGate sets the authentication check used by premium installs.
func (b *Builder) WithAuthGate(g host.AuthGate) *Builder {
	b.installer.auth = g
	return b
}

// WithDownloader sets the release downloader used by premium installs.
func (b *Builder) WithDownloader(d host.ReleaseDownloader) *Builder {
	b.installer.downloader = d
	return b
}

// WithPackageManager sets the package manager used by public installs.
func (b *Builder) WithPackageManager(m pkgmanager.Manager) *Builder {
	b.installer.packages = m
	return b
}

// WithRunner sets the process runner used for default gh and npm collaborators.
func (b *Builder) WithRunner(r process.Runner) *Builder {
	b.runner = r
	return b
}

// WithGHPath sets the gh binary used for default collaborators.
func (b *Builder) WithGHPath(path string) *Builder {
	b.ghPath = path
	return b
}

// WithSources replaces the premium source map (useful for testing).
func (b *Builder) WithSources(sources map[string]string) *Builder {
	b.installer.sources = sources
	return b
}

// WithInstallRoot sets the home-relative install root.
func (b *Builder) WithInstallRoot(root string) *Builder {
	b.installer.installRoot = root
	return b
}

// WithTarballPattern sets the release asset glob.
func (b *Builder) WithTarballPattern(pattern string) *Builder {
	b.installer.tarballPattern = pattern
	return b
}

// WithTimeout bounds a premium install. Zero waits indefinitely.
func (b *Builder) WithTimeout(d time.Duration) *Builder {
	b.installer.timeout = d
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(logger hclog.Logger) *Builder {
	b.installer.logger = logger
	return b
}

// Build constructs the Installer, filling unset collaborators with gh and npm
// backed defaults.
func (b *Builder) Build() *Installer {
	i := b.installer

	if i.logger == nil {
		i.logger = hclog.NewNullLogger()
	}
	runner := b.runner
	if runner == nil {
		runner = process.NewExecRunner()
	}
	if i.resolver == nil {
		i.resolver = pathutil.NewResolver("")
	}
	if i.archives == nil {
		i.archives = compression.NewService(compression.WithLogger(i.logger.Named("archive")))
	}
	if i.auth == nil {
		i.auth = host.NewGHAuthGate(runner, b.ghPath, i.logger.Named("auth"))
	}
	if i.downloader == nil {
		i.downloader = host.NewGHReleaseDownloader(runner, b.ghPath, i.logger.Named("download"))
	}
	if i.packages == nil {
		i.packages = pkgmanager.NewNPM(runner, "", i.logger.Named("npm"))
	}
	if i.sources == nil {
		i.sources = premiumSources
	}

	return &i
}

// PluginDir returns the absolute directory a premium plugin is installed into.
func (i *Installer) PluginDir(name string) string {
	return i.resolver.Join(i.installRoot, name)
}

// Install adds a plugin. Premium installs download a release tarball; all
// others go through the package manager.
func (i *Installer) Install(ctx context.Context, name string, opts Options) (result Result) {
	defer i.recoverInto(name, &result)

	if opts.Premium {
		return i.installPremium(ctx, name)
	}
	return i.installPublic(ctx, name, opts)
}

// Uninstall removes a public plugin through the package manager.
func (i *Installer) Uninstall(ctx context.Context, name string, opts UninstallOptions) (result Result) {
	defer i.recoverInto(name, &result)

	if err := validatePackageName(name); err != nil {
		return failed(name, &StageError{Stage: StageValidate, Kind: KindValidation, Message: "Invalid plugin name", Err: err})
	}

	pkg := pkgmanager.ResolvePackageName(name)
	i.logger.Debug("uninstalling plugin", "plugin", name, "package", pkg, "scope", pkgmanager.ScopeFor(opts.Global))

	res, err := i.packages.Uninstall(ctx, pkg, pkgmanager.ScopeFor(opts.Global))
	if err != nil {
		return failed(name, &StageError{Stage: StageUninstall, Kind: KindProcess, Message: fmt.Sprintf("Failed to uninstall plugin %s", name), Err: err})
	}
	if !res.Success() {
		return failed(name, &StageError{Stage: StageUninstall, Kind: KindProcess, Message: fmt.Sprintf("Failed to uninstall plugin %s", name), Detail: exitDetail(res), Err: exitError(res)})
	}

	return succeeded(name, StageComplete, fmt.Sprintf("Plugin %s uninstalled successfully", name), "")
}

func (i *Installer) installPublic(ctx context.Context, name string, opts Options) Result {
	if err := validatePackageName(name); err != nil {
		return failed(name, &StageError{Stage: StageValidate, Kind: KindValidation, Message: "Invalid plugin name", Err: err})
	}

	pkg := pkgmanager.ResolvePackageName(name)
	scope := pkgmanager.ScopeFor(opts.Global)
	i.logger.Debug("installing plugin package", "plugin", name, "package", pkg, "scope", scope)

	res, err := i.packages.Install(ctx, pkg, scope)
	if err != nil {
		return failed(name, &StageError{Stage: StageInstall, Kind: KindProcess, Message: fmt.Sprintf("Failed to install plugin %s", name), Err: err})
	}
	if !res.Success() {
		return failed(name, &StageError{Stage: StageInstall, Kind: KindProcess, Message: fmt.Sprintf("Failed to install plugin %s", name), Detail: exitDetail(res), Err: exitError(res)})
	}

	return succeeded(name, StageComplete, fmt.Sprintf("Plugin %s installed successfully", name), "")
}

func (i *Installer) recoverInto(name string, result *Result) {
	r := recover()
	if r == nil {
		return
	}
	i.logger.Error("unexpected panic in installer", "plugin", name, "panic", r)
	*result = failed(name, &StageError{
		Stage:   StageInternal,
		Kind:    KindInternal,
		Message: "Unexpected error during installation",
		Err:     fmt.Errorf("%v", r),
	})
}

// validatePackageName rejects names that would be read as package manager flags.
func validatePackageName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("plugin name is empty")
	case strings.HasPrefix(name, "-"):
		return fmt.Errorf("plugin name %q must not start with '-'", name)
	case strings.ContainsAny(name, " \t\r\n"):
		return fmt.Errorf("plugin name %q must not contain whitespace", name)
	}
	return nil
}

func exitDetail(res process.Result) string {
	if msg := res.StderrText(); msg != "" {
		return msg
	}
	return fmt.Sprintf("exit status %d", res.ExitCode)
}

func exitError(res process.Result) error {
	return fmt.Errorf("exit status %d", res.ExitCode)
}
