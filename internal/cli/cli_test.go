package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jmylchreest/gh-please/internal/config"
	"github.com/jmylchreest/gh-please/internal/plugin/registry"
	"github.com/jmylchreest/gh-please/internal/process"
)

// isolate points every configurable location at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvPackagesDir, filepath.Join(home, "node_modules"))
	for _, key := range []string{config.EnvConfigFile, config.EnvGHBin, config.EnvPackageManager, config.EnvDownloader, config.EnvTimeout, config.EnvLogLevel, config.EnvGHToken, config.EnvGitHubToken} {
		t.Setenv(key, "")
	}
	return home
}

func execute(t *testing.T, runner process.Runner, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := NewRootCommand(WithRunner(runner))
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestPluginInstallPublic(t *testing.T) {
	isolate(t)
	runner := process.NewMockRunner()

	stdout, _, err := execute(t, runner, "plugin", "install", "review", "-g")
	if err != nil {
		t.Fatalf("install error = %v", err)
	}
	if !strings.Contains(stdout, "Plugin review installed successfully") {
		t.Errorf("stdout = %q", stdout)
	}
	if got := strings.Join(runner.LastArgs(), " "); got != "install -g @pleaseai/gh-please-review" {
		t.Errorf("npm args = %q", got)
	}
}

func TestPluginInstallPremiumAuthFailure(t *testing.T) {
	isolate(t)
	runner := process.NewExitMockRunner(1, "You are not logged into any GitHub hosts.")

	_, stderr, err := execute(t, runner, "plugin", "install", "ai", "--premium")
	var ec *exitCodeError
	if !errors.As(err, &ec) || ec.code != 1 {
		t.Fatalf("install error = %v, want exit code 1", err)
	}
	if !strings.Contains(stderr, "GitHub CLI authentication required") || !strings.Contains(stderr, "gh auth login") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestPluginInstallJSON(t *testing.T) {
	isolate(t)
	runner := process.NewMockRunner()

	stdout, _, err := execute(t, runner, "plugin", "install", "ai", "--premium", "--json")
	if err == nil {
		t.Fatal("expected failure: the mock download writes no tarball")
	}

	var res struct {
		Success    bool   `json:"success"`
		PluginName string `json:"pluginName"`
		Stage      string `json:"stage"`
	}
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if res.Success || res.PluginName != "ai" || res.Stage != "extract" {
		t.Errorf("result = %+v", res)
	}
}

// ghRunner fails `gh auth token` and otherwise reports success, unless
// authStatus is non-zero, in which case `gh auth status` exits with it.
func ghRunner(authStatus int) *process.MockRunner {
	return &process.MockRunner{
		RunFunc: func(ctx context.Context, path string, args []string, stdin io.Reader) (process.Result, error) {
			switch strings.Join(args, " ") {
			case "auth token":
				return process.Result{ExitCode: 1, Stderr: []byte("no oauth token found")}, nil
			case "auth status":
				return process.Result{ExitCode: authStatus}, nil
			}
			return process.Result{}, nil
		},
	}
}

func TestAPIDownloaderDoesNotBlockPublicInstall(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvDownloader, config.DownloaderAPI)
	runner := ghRunner(0)

	for _, args := range [][]string{
		{"plugin", "install", "review"},
		{"plugin", "uninstall", "review"},
	} {
		stdout, _, err := execute(t, runner, args...)
		if err != nil {
			t.Fatalf("%v error = %v", args, err)
		}
		if !strings.Contains(stdout, "successfully") {
			t.Errorf("%v stdout = %q", args, stdout)
		}
	}

	for _, call := range runner.Calls() {
		if call[0] != "npm" {
			t.Errorf("unexpected call %v", call)
		}
	}
}

func TestAPIDownloaderPremiumChecksAuthFirst(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvDownloader, config.DownloaderAPI)
	runner := ghRunner(1)

	_, stderr, err := execute(t, runner, "plugin", "install", "ai", "--premium")
	var ec *exitCodeError
	if !errors.As(err, &ec) {
		t.Fatalf("install error = %v, want exit code error", err)
	}
	if !strings.Contains(stderr, "gh auth login") {
		t.Errorf("stderr = %q, want auth remediation", stderr)
	}
	if got := runner.Calls(); len(got) != 1 || strings.Join(got[0][1:], " ") != "auth status" {
		t.Errorf("calls = %v, want only gh auth status", got)
	}
}

func TestAPIDownloaderTokenFailureIsDownloadStage(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvDownloader, config.DownloaderAPI)

	stdout, _, err := execute(t, ghRunner(0), "plugin", "install", "ai", "--premium", "--json")
	if err == nil {
		t.Fatal("expected failure without a token")
	}

	var res struct {
		Stage string `json:"stage"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if res.Stage != "download" || !strings.Contains(res.Error, "no oauth token found") {
		t.Errorf("result = %+v, want download stage failure", res)
	}
}

func TestPluginUninstall(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvPackageManager, "pnpm")
	runner := process.NewMockRunner()

	stdout, _, err := execute(t, runner, "plugin", "uninstall", "review")
	if err != nil {
		t.Fatalf("uninstall error = %v", err)
	}
	if !strings.Contains(stdout, "Plugin review uninstalled successfully") {
		t.Errorf("stdout = %q", stdout)
	}
	if runner.LastPath() != "pnpm" {
		t.Errorf("binary = %q, want pnpm", runner.LastPath())
	}
}

func TestPluginListJSON(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".gh-please", "plugins", "ai")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"@pleaseai/gh-please-ai","version":"1.0.0","description":"AI helpers"}`
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := execute(t, process.NewMockRunner(), "plugin", "list", "--json")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}

	var got []registry.Info
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	want := []registry.Info{{
		Plugin: registry.Plugin{
			Name:     "ai",
			Version:  "1.0.0",
			Type:     "command-group",
			Metadata: registry.Metadata{Description: "AI helpers"},
		},
		Installed: true,
		Enabled:   true,
		Path:      dir,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}
}

func TestPluginListEmpty(t *testing.T) {
	isolate(t)

	stdout, _, err := execute(t, process.NewMockRunner(), "plugin", "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(stdout, "No plugins installed.") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestPluginSearch(t *testing.T) {
	home := isolate(t)
	for _, name := range []string{"ai", "issues"} {
		if err := os.MkdirAll(filepath.Join(home, ".gh-please", "plugins", name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	stdout, _, err := execute(t, process.NewMockRunner(), "plugin", "search", "iss")
	if err != nil {
		t.Fatalf("search error = %v", err)
	}
	if !strings.Contains(stdout, "issues") || strings.Contains(stdout, "\nai ") {
		t.Errorf("stdout = %q", stdout)
	}
	if !strings.Contains(stdout, "Found 1 plugin(s)") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestPluginRunUnknown(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, process.NewMockRunner(), "plugin", "run", "ghost")
	if err == nil || !strings.Contains(err.Error(), `plugin "ghost" is not installed`) {
		t.Errorf("run error = %v", err)
	}
}

func TestPluginValidate(t *testing.T) {
	isolate(t)
	bad := filepath.Join(t.TempDir(), "bad.tar.gz")
	if err := os.WriteFile(bad, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := execute(t, process.NewMockRunner(), "plugin", "validate", bad)
	var ec *exitCodeError
	if !errors.As(err, &ec) {
		t.Fatalf("validate error = %v, want exit code error", err)
	}
	if !strings.Contains(stderr, "is not a valid plugin tarball") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestInvalidEnvironmentFails(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvTimeout, "later")

	_, _, err := execute(t, process.NewMockRunner(), "plugin", "list")
	if err == nil || !strings.Contains(err.Error(), config.EnvTimeout) {
		t.Errorf("error = %v, want invalid timeout", err)
	}
}

func TestVersionCommand(t *testing.T) {
	isolate(t)

	stdout, _, err := execute(t, process.NewMockRunner(), "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(stdout, "gh-please ") {
		t.Errorf("stdout = %q", stdout)
	}
}
