// Package host wraps the GitHub CLI features gh-please relies on: the
// authentication check and authenticated release downloads.
package host

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/gh-please/internal/process"
)

// DefaultGHPath is the GitHub CLI binary looked up on PATH.
const DefaultGHPath = "gh"

// AuthGate reports whether the current user is authenticated with the host CLI.
type AuthGate interface {
	IsAuthenticated(ctx context.Context) bool
}

// ReleaseDownloader fetches release assets whose names match pattern from the
// latest release of repo into targetDir, overwriting existing files.
type ReleaseDownloader interface {
	Download(ctx context.Context, repo, pattern, targetDir string) error
}

// GHAuthGate checks authentication with `gh auth status`.
type GHAuthGate struct {
	runner process.Runner
	ghPath string
	logger hclog.Logger
}

// NewGHAuthGate creates an auth gate backed by the gh binary at ghPath.
func NewGHAuthGate(runner process.Runner, ghPath string, logger hclog.Logger) *GHAuthGate {
	if ghPath == "" {
		ghPath = DefaultGHPath
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &GHAuthGate{runner: runner, ghPath: ghPath, logger: logger}
}

// IsAuthenticated returns true when `gh auth status` exits zero.
func (g *GHAuthGate) IsAuthenticated(ctx context.Context) bool {
	res, err := g.runner.Run(ctx, g.ghPath, []string{"auth", "status"}, nil)
	if err != nil {
		g.logger.Debug("auth status check failed", "error", err)
		return false
	}
	if !res.Success() {
		g.logger.Debug("not authenticated", "exit_code", res.ExitCode, "stderr", res.StderrText())
		return false
	}
	return true
}

// GHReleaseDownloader downloads with `gh release download`.
type GHReleaseDownloader struct {
	runner process.Runner
	ghPath string
	logger hclog.Logger
}

// NewGHReleaseDownloader creates a downloader backed by the gh binary at ghPath.
func NewGHReleaseDownloader(runner process.Runner, ghPath string, logger hclog.Logger) *GHReleaseDownloader {
	if ghPath == "" {
		ghPath = DefaultGHPath
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &GHReleaseDownloader{runner: runner, ghPath: ghPath, logger: logger}
}

// Download runs gh release download for the latest release of repo.
func (d *GHReleaseDownloader) Download(ctx context.Context, repo, pattern, targetDir string) error {
	args := []string{
		"release", "download",
		"--repo", repo,
		"--pattern", pattern,
		"--dir", targetDir,
		"--clobber",
	}

	d.logger.Debug("downloading release asset", "repo", repo, "pattern", pattern, "dir", targetDir)

	res, err := d.runner.Run(ctx, d.ghPath, args, nil)
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", d.ghPath, err)
	}
	if !res.Success() {
		msg := res.StderrText()
		if msg == "" {
			msg = fmt.Sprintf("exit status %d", res.ExitCode)
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// TokenFromGH asks the GitHub CLI for the active token.
func TokenFromGH(ctx context.Context, runner process.Runner, ghPath string) (string, error) {
	if ghPath == "" {
		ghPath = DefaultGHPath
	}
	res, err := runner.Run(ctx, ghPath, []string{"auth", "token"}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to run %s: %w", ghPath, err)
	}
	if !res.Success() {
		return "", fmt.Errorf("gh auth token exited %d: %s", res.ExitCode, res.StderrText())
	}
	token := strings.TrimSpace(string(res.Stdout))
	if token == "" {
		return "", fmt.Errorf("gh auth token returned an empty token")
	}
	return token, nil
}

// splitRepo splits an "owner/name" repository identifier.
func splitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository %q (expected owner/name)", repo)
	}
	return owner, name, nil
}
