package registry

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-hclog"
	"github.com/tidwall/sjson"

	"github.com/jmylchreest/gh-please/internal/pathutil"
)

// manifestJSON builds a package.json from path/value pairs.
func manifestJSON(t *testing.T, kv ...any) string {
	t.Helper()
	if len(kv)%2 != 0 {
		t.Fatal("manifestJSON needs path/value pairs")
	}
	doc := "{}"
	for i := 0; i < len(kv); i += 2 {
		var err error
		doc, err = sjson.Set(doc, kv[i].(string), kv[i+1])
		if err != nil {
			t.Fatalf("sjson.Set(%v) error = %v", kv[i], err)
		}
	}
	return doc
}

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

type fixture struct {
	home     string
	packages string
	plugins  string
	logs     *bytes.Buffer
	registry *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		home:     filepath.Join(root, "home"),
		packages: filepath.Join(root, "project", "node_modules"),
		logs:     &bytes.Buffer{},
	}
	f.plugins = filepath.Join(f.home, ".gh-please", "plugins")
	f.registry = New(
		WithPackagesDir(f.packages),
		WithResolver(pathutil.NewResolver(f.home)),
		WithLogger(hclog.New(&hclog.LoggerOptions{Output: f.logs, Level: hclog.Warn})),
	)
	return f
}

func TestLoadPluginsFromPackages(t *testing.T) {
	f := newFixture(t)

	writeManifest(t, filepath.Join(f.packages, "@pleaseai", "gh-please-ai"), manifestJSON(t,
		"name", "@pleaseai/gh-please-ai",
		"version", "1.2.0",
		"gh-please.name", "ai",
		"gh-please.description", "AI helpers",
		"gh-please.premium", true,
		"gh-please.entrypoint", "bin/gh-please-ai",
	))
	writeManifest(t, filepath.Join(f.packages, "gh-please-review"), manifestJSON(t,
		"name", "gh-please-review",
		"version", "0.3.1",
		"description", "Review helpers",
		"author.name", "Please Team",
		"gh-please.type", "utility",
	))
	writeManifest(t, filepath.Join(f.packages, "left-pad"), manifestJSON(t,
		"name", "left-pad",
		"version", "1.3.0",
	))
	writeManifest(t, filepath.Join(f.packages, "not-a-marker"), manifestJSON(t,
		"name", "not-a-marker",
		"gh-please", "yes",
	))
	if err := os.WriteFile(filepath.Join(f.packages, ".package-lock.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	f.registry.LoadPlugins()

	want := []Plugin{
		{
			Name:       "ai",
			Version:    "1.2.0",
			Type:       "command-group",
			Entrypoint: "bin/gh-please-ai",
			Metadata:   Metadata{Description: "AI helpers", Premium: true},
		},
		{
			Name:     "gh-please-review",
			Version:  "0.3.1",
			Type:     "utility",
			Metadata: Metadata{Description: "Review helpers", Author: "Please Team"},
		},
	}
	if diff := cmp.Diff(want, f.registry.GetAll()); diff != "" {
		t.Errorf("GetAll() mismatch (-want +got):\n%s", diff)
	}

	path, ok := f.registry.Path("ai")
	if !ok || path != filepath.Join(f.packages, "@pleaseai", "gh-please-ai") {
		t.Errorf("Path(ai) = %q, %v", path, ok)
	}
	if f.logs.Len() != 0 {
		t.Errorf("unexpected warnings: %s", f.logs.String())
	}
}

func TestLoadPluginsFromLocalDir(t *testing.T) {
	f := newFixture(t)

	writeManifest(t, filepath.Join(f.plugins, "ai"), manifestJSON(t,
		"name", "@pleaseai/gh-please-ai",
		"version", "2.0.0",
		"description", "AI helpers",
	))
	if err := os.MkdirAll(filepath.Join(f.plugins, "bare"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.plugins, "stray.tar.gz"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	f.registry.LoadPlugins()

	want := []Info{
		{
			Plugin: Plugin{
				Name:     "ai",
				Version:  "2.0.0",
				Type:     "command-group",
				Metadata: Metadata{Description: "AI helpers"},
			},
			Installed: true,
			Enabled:   true,
			Path:      filepath.Join(f.plugins, "ai"),
		},
		{
			Plugin:    Plugin{Name: "bare", Version: "unknown", Type: "command-group"},
			Installed: true,
			Enabled:   true,
			Path:      filepath.Join(f.plugins, "bare"),
		},
	}
	if diff := cmp.Diff(want, f.registry.ListAll()); diff != "" {
		t.Errorf("ListAll() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPluginsLocalOverridesPackage(t *testing.T) {
	f := newFixture(t)

	writeManifest(t, filepath.Join(f.packages, "gh-please-ai"), manifestJSON(t,
		"version", "1.0.0",
		"gh-please.name", "ai",
	))
	writeManifest(t, filepath.Join(f.plugins, "ai"), manifestJSON(t, "version", "2.0.0"))

	f.registry.LoadPlugins()

	p, ok := f.registry.Get("ai")
	if !ok {
		t.Fatal("ai should be registered")
	}
	if p.Version != "2.0.0" {
		t.Errorf("Version = %q, want local 2.0.0", p.Version)
	}
	if path, _ := f.registry.Path("ai"); path != filepath.Join(f.plugins, "ai") {
		t.Errorf("Path(ai) = %q, want local dir", path)
	}
}

func TestLoadPluginsMissingDirectories(t *testing.T) {
	f := newFixture(t)

	f.registry.LoadPlugins()

	if n := f.registry.Len(); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
	if f.logs.Len() != 0 {
		t.Errorf("missing directories should not warn, got: %s", f.logs.String())
	}
}

func TestLoadPluginsMalformedManifest(t *testing.T) {
	f := newFixture(t)

	writeManifest(t, filepath.Join(f.packages, "broken"), `{"name": "broken",`)
	writeManifest(t, filepath.Join(f.packages, "good"), manifestJSON(t, "gh-please.name", "good"))
	writeManifest(t, filepath.Join(f.plugins, "half"), `not json`)

	f.registry.LoadPlugins()

	if !f.registry.Has("good") {
		t.Error("discovery should continue past a malformed manifest")
	}
	if f.registry.Has("broken") {
		t.Error("malformed package manifest should not register")
	}
	if !f.registry.Has("half") {
		t.Error("local directory should register even with a malformed manifest")
	}
	if got := strings.Count(f.logs.String(), "failed to read plugin manifest"); got != 2 {
		t.Errorf("expected 2 manifest warnings, got %d:\n%s", got, f.logs.String())
	}
}

func TestLoadPluginsUnreadableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	f := newFixture(t)

	writeManifest(t, filepath.Join(f.packages, "gh-please-review"), manifestJSON(t,
		"name", "gh-please-review",
		"gh-please.name", "review",
	))
	if err := os.Chmod(f.packages, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(f.packages, 0o755) })

	writeManifest(t, filepath.Join(f.plugins, "ai"), manifestJSON(t, "version", "1.0.0"))
	locked := filepath.Join(f.plugins, "locked")
	writeManifest(t, locked, manifestJSON(t, "version", "2.0.0"))
	if err := os.Chmod(filepath.Join(locked, "package.json"), 0o000); err != nil {
		t.Fatal(err)
	}

	f.registry.LoadPlugins()

	if f.registry.Has("review") {
		t.Error("plugins in an unreadable packages directory should not be registered")
	}
	if p, ok := f.registry.Get("ai"); !ok || p.Version != "1.0.0" {
		t.Errorf("Get(ai) = %+v, %v; discovery should continue past the unreadable directory", p, ok)
	}
	if p, ok := f.registry.Get("locked"); !ok || p.Version != "unknown" {
		t.Errorf("Get(locked) = %+v, %v; want registered with unknown version", p, ok)
	}

	logs := f.logs.String()
	if !strings.Contains(logs, "failed to scan plugin directory") {
		t.Errorf("expected scan warning, logs = %q", logs)
	}
	if !strings.Contains(logs, "failed to read plugin manifest") {
		t.Errorf("expected manifest warning, logs = %q", logs)
	}
}

func TestLoadPluginsFollowsSymlinkedPackages(t *testing.T) {
	f := newFixture(t)

	target := filepath.Join(t.TempDir(), "linked")
	writeManifest(t, target, manifestJSON(t, "gh-please.name", "linked"))
	if err := os.MkdirAll(f.packages, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, filepath.Join(f.packages, "linked")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	f.registry.LoadPlugins()

	if !f.registry.Has("linked") {
		t.Error("symlinked package should be discovered")
	}
}

func TestRegistryOperations(t *testing.T) {
	r := New()

	r.Register(Plugin{Name: "b", Version: "1.0.0", Type: "utility"}, "/opt/b")
	r.Register(Plugin{Name: "a"}, "")

	if !r.Has("a") || !r.Has("b") {
		t.Fatal("expected a and b to be registered")
	}
	a, _ := r.Get("a")
	if a.Version != "unknown" || a.Type != "command-group" {
		t.Errorf("defaults not applied: %+v", a)
	}
	if _, ok := r.Path("a"); ok {
		t.Error("a should have no recorded path")
	}

	want := []Info{
		{Plugin: Plugin{Name: "a", Version: "unknown", Type: "command-group"}, Installed: true, Enabled: true},
		{Plugin: Plugin{Name: "b", Version: "1.0.0", Type: "utility"}, Installed: true, Enabled: true, Path: "/opt/b"},
	}
	if diff := cmp.Diff(want, r.ListAll()); diff != "" {
		t.Errorf("ListAll() mismatch (-want +got):\n%s", diff)
	}

	r.Register(Plugin{Name: "b", Version: "2.0.0"}, "")
	if b, _ := r.Get("b"); b.Version != "2.0.0" {
		t.Errorf("Register should overwrite, got version %q", b.Version)
	}
	if path, _ := r.Path("b"); path != "/opt/b" {
		t.Errorf("overwrite without path should keep %q, got %q", "/opt/b", path)
	}

	if !r.Unregister("b") {
		t.Error("Unregister(b) should report true")
	}
	if r.Unregister("b") {
		t.Error("second Unregister(b) should report false")
	}
	if _, ok := r.Path("b"); ok {
		t.Error("Unregister should drop the path")
	}

	r.Clear()
	if r.Len() != 0 || len(r.ListAll()) != 0 {
		t.Error("Clear should empty the registry")
	}
}

func TestSearch(t *testing.T) {
	r := New()
	r.Register(Plugin{Name: "ai", Metadata: Metadata{Description: "Code review with LLMs"}}, "")
	r.Register(Plugin{Name: "issues", Metadata: Metadata{Description: "Issue triage"}}, "")
	r.Register(Plugin{Name: "review-bot"}, "")

	tests := []struct {
		query string
		want  []string
	}{
		{query: "", want: []string{"ai", "issues", "review-bot"}},
		{query: "REVIEW", want: []string{"ai", "review-bot"}},
		{query: "triage", want: []string{"issues"}},
		{query: "nothing", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := []string{}
			for _, info := range r.Search(tt.query) {
				got = append(got, info.Name)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Search(%q) mismatch (-want +got):\n%s", tt.query, diff)
			}
		})
	}
}
