// Package config loads gh-please settings.
//
// Values are layered: built-in defaults, then the optional YAML file at
// ~/.gh-please/config.yaml (or GH_PLEASE_CONFIG), then environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/gh-please/internal/host"
	"github.com/jmylchreest/gh-please/internal/pathutil"
	"github.com/jmylchreest/gh-please/internal/pkgmanager"
	"github.com/jmylchreest/gh-please/internal/plugin/registry"
)

// DefaultFile is the home-relative configuration file.
const DefaultFile = "~/.gh-please/config.yaml"

// Environment variables read by Load.
const (
	EnvConfigFile     = "GH_PLEASE_CONFIG"
	EnvHome           = "GH_PLEASE_HOME"
	EnvGHBin          = "GH_PLEASE_GH_BIN"
	EnvPackageManager = "GH_PLEASE_PACKAGE_MANAGER"
	EnvPackagesDir    = "GH_PLEASE_PACKAGES_DIR"
	EnvDownloader     = "GH_PLEASE_DOWNLOADER"
	EnvTimeout        = "GH_PLEASE_TIMEOUT"
	EnvLogLevel       = "GH_PLEASE_LOG_LEVEL"
	EnvGHToken        = "GH_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
)

// Downloader backends.
const (
	DownloaderGH  = "gh"
	DownloaderAPI = "api"
)

// Config is the runtime configuration.
type Config struct {
	// Home overrides the user home directory. Empty uses the OS value.
	Home string

	GHPath         string
	PackageManager string
	PackagesDir    string

	// Downloader selects the premium release backend: "gh" or "api".
	Downloader string

	// Timeout bounds a premium install. Zero waits indefinitely.
	Timeout time.Duration

	LogLevel hclog.Level

	// Token is used by the api downloader. When empty it is taken from gh.
	Token string
}

// fileConfig is the YAML layout of the configuration file. Tokens are never
// read from it.
type fileConfig struct {
	GHPath         string `yaml:"gh_path"`
	PackageManager string `yaml:"package_manager"`
	PackagesDir    string `yaml:"packages_dir"`
	Downloader     string `yaml:"downloader"`
	Timeout        string `yaml:"timeout"`
	LogLevel       string `yaml:"log_level"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		GHPath:         host.DefaultGHPath,
		PackageManager: pkgmanager.DefaultBinary,
		PackagesDir:    registry.DefaultPackagesDir,
		Downloader:     DownloaderGH,
		LogLevel:       hclog.Warn,
	}
}

// Load reads the configuration file and the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with a custom environment lookup.
func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Default()
	cfg.Home = getenv(EnvHome)

	path := getenv(EnvConfigFile)
	explicit := path != ""
	if !explicit {
		path = pathutil.NewResolver(cfg.Home).ExpandHome(DefaultFile)
	}
	if err := applyFile(&cfg, path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 - user configuration file
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&cfg.GHPath, fc.GHPath)
	setString(&cfg.PackageManager, fc.PackageManager)
	setString(&cfg.PackagesDir, fc.PackagesDir)

	src := path + ": "
	if err := setDownloader(cfg, fc.Downloader, src+"downloader"); err != nil {
		return err
	}
	if err := setTimeout(cfg, fc.Timeout, src+"timeout"); err != nil {
		return err
	}
	return setLogLevel(cfg, fc.LogLevel, src+"log_level")
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	setString(&cfg.GHPath, getenv(EnvGHBin))
	setString(&cfg.PackageManager, getenv(EnvPackageManager))
	setString(&cfg.PackagesDir, getenv(EnvPackagesDir))

	if err := setDownloader(cfg, getenv(EnvDownloader), EnvDownloader); err != nil {
		return err
	}
	if err := setTimeout(cfg, getenv(EnvTimeout), EnvTimeout); err != nil {
		return err
	}
	if err := setLogLevel(cfg, getenv(EnvLogLevel), EnvLogLevel); err != nil {
		return err
	}

	cfg.Token = getenv(EnvGHToken)
	if cfg.Token == "" {
		cfg.Token = getenv(EnvGitHubToken)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDownloader(cfg *Config, v, source string) error {
	if v == "" {
		return nil
	}
	v = strings.ToLower(strings.TrimSpace(v))
	if v != DownloaderGH && v != DownloaderAPI {
		return fmt.Errorf("%s must be %q or %q, got %q", source, DownloaderGH, DownloaderAPI, v)
	}
	cfg.Downloader = v
	return nil
}

func setTimeout(cfg *Config, v, source string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", source, err)
	}
	if d < 0 {
		return fmt.Errorf("invalid %s: must not be negative", source)
	}
	cfg.Timeout = d
	return nil
}

func setLogLevel(cfg *Config, v, source string) error {
	if v == "" {
		return nil
	}
	level := hclog.LevelFromString(v)
	if level == hclog.NoLevel {
		return fmt.Errorf("invalid %s: unknown level %q", source, v)
	}
	cfg.LogLevel = level
	return nil
}
