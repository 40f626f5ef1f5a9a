package loader

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jmylchreest/gh-please/internal/plugin/registry"
	pluginapi "github.com/jmylchreest/gh-please/pkg/plugin"
)

type fakeGroup struct {
	info     pluginapi.Info
	infoErr  error
	commands []pluginapi.Command
	lastReq  pluginapi.RunRequest
}

func (f *fakeGroup) Info() (pluginapi.Info, error) { return f.info, f.infoErr }

func (f *fakeGroup) Commands() ([]pluginapi.Command, error) { return f.commands, nil }

func (f *fakeGroup) Run(_ context.Context, req pluginapi.RunRequest) (pluginapi.RunResponse, error) {
	f.lastReq = req
	return pluginapi.RunResponse{ExitCode: 0, Stdout: "ran " + req.Command}, nil
}

func writeExecutable(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestEntrypointPath(t *testing.T) {
	dir := t.TempDir()
	writeExecutable(t, filepath.Join(dir, "bin", "plugin"), "#!/bin/sh\n")
	if err := os.MkdirAll(filepath.Join(dir, "lib"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		entrypoint string
		wantErr    error
		errContain string
	}{
		{name: "valid", entrypoint: "bin/plugin"},
		{name: "no entrypoint", entrypoint: "", wantErr: ErrNoEntrypoint},
		{name: "missing file", entrypoint: "bin/absent", wantErr: ErrEntrypointMissing},
		{name: "directory", entrypoint: "lib", wantErr: ErrEntrypointMissing},
		{name: "traversal", entrypoint: "../outside", errContain: "path traversal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := registry.Plugin{Name: "ai", Entrypoint: tt.entrypoint}
			path, err := EntrypointPath(p, dir)

			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("EntrypointPath() error = %v, want %v", err, tt.wantErr)
				}
			case tt.errContain != "":
				if err == nil || !strings.Contains(err.Error(), tt.errContain) {
					t.Errorf("EntrypointPath() error = %v, want containing %q", err, tt.errContain)
				}
			default:
				if err != nil {
					t.Fatalf("EntrypointPath() unexpected error: %v", err)
				}
				if want := filepath.Join(dir, "bin", "plugin"); path != want {
					t.Errorf("EntrypointPath() = %q, want %q", path, want)
				}
			}
		})
	}
}

func TestActivateMissingEntrypoint(t *testing.T) {
	l := New()
	_, err := l.Activate(context.Background(), registry.Plugin{Name: "ai", Entrypoint: "bin/ai"}, t.TempDir())
	if !errors.Is(err, ErrEntrypointMissing) {
		t.Errorf("Activate() error = %v, want ErrEntrypointMissing", err)
	}
}

func TestActivateCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeExecutable(t, filepath.Join(dir, "plugin"), "#!/bin/sh\nexit 0\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Activate(ctx, registry.Plugin{Name: "ai", Entrypoint: "plugin"}, dir)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Activate() error = %v, want context.Canceled", err)
	}
}

func TestActivateNonPluginBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	dir := t.TempDir()
	writeExecutable(t, filepath.Join(dir, "plugin"), "#!/bin/sh\necho 'not a plugin'\nexit 1\n")

	l := New(WithStartTimeout(2 * time.Second))
	_, err := l.Activate(context.Background(), registry.Plugin{Name: "ai", Entrypoint: "plugin"}, dir)
	if err == nil {
		t.Fatal("Activate() should fail for a binary that does not speak the plugin protocol")
	}
	if !strings.Contains(err.Error(), "failed to start plugin ai") {
		t.Errorf("Activate() error = %v", err)
	}
}

func TestActivatedPlugin(t *testing.T) {
	group := &fakeGroup{
		info: pluginapi.Info{Name: "ai", Version: "1.0.0", ProtocolVersion: pluginapi.ProtocolVersion},
		commands: []pluginapi.Command{
			{Name: "review", Short: "Review a pull request"},
		},
	}
	kills := 0
	a, err := newActivated(registry.Plugin{Name: "ai"}, "/plugins/ai", group, func() { kills++ })
	if err != nil {
		t.Fatalf("newActivated() error = %v", err)
	}

	if a.Info().Name != "ai" {
		t.Errorf("Info().Name = %q", a.Info().Name)
	}

	cmds, err := a.Commands()
	if err != nil {
		t.Fatalf("Commands() error = %v", err)
	}
	if diff := cmp.Diff(group.commands, cmds); diff != "" {
		t.Errorf("Commands() mismatch (-want +got):\n%s", diff)
	}

	resp, err := a.Run(context.Background(), "review", []string{"--pr", "42"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.Stdout != "ran review" {
		t.Errorf("Run() stdout = %q", resp.Stdout)
	}
	if diff := cmp.Diff(pluginapi.RunRequest{Command: "review", Args: []string{"--pr", "42"}}, group.lastReq); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}

	a.Close()
	a.Close()
	if kills != 1 {
		t.Errorf("kill called %d times, want 1", kills)
	}
}

func TestActivatedPluginRejectsIncompatibleProtocol(t *testing.T) {
	group := &fakeGroup{info: pluginapi.Info{Name: "ai", ProtocolVersion: "2.0.0"}}
	_, err := newActivated(registry.Plugin{Name: "ai"}, "/plugins/ai", group, func() {})
	if err == nil || !strings.Contains(err.Error(), "incompatible plugin protocol") {
		t.Errorf("newActivated() error = %v", err)
	}
}

func TestActivatedPluginInfoError(t *testing.T) {
	group := &fakeGroup{infoErr: errors.New("connection reset")}
	_, err := newActivated(registry.Plugin{Name: "ai"}, "/plugins/ai", group, func() {})
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("newActivated() error = %v", err)
	}
}

func TestCheckProtocol(t *testing.T) {
	tests := []struct {
		version       string
		errorContains string
	}{
		{version: "1.0.0"},
		{version: "1.4.2"},
		{version: "v1.0.0"},
		{version: "0.9.0", errorContains: "incompatible"},
		{version: "2.0.0", errorContains: "incompatible"},
		{version: "1.0", errorContains: "expected MAJOR.MINOR.PATCH"},
		{version: "1.x.0", errorContains: "invalid protocol version"},
		{version: "", errorContains: "invalid protocol version"},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := checkProtocol(tt.version)
			if tt.errorContains == "" {
				if err != nil {
					t.Errorf("checkProtocol(%q) unexpected error: %v", tt.version, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("checkProtocol(%q) error = %v, want containing %q", tt.version, err, tt.errorContains)
			}
		})
	}
}
