package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	pluginapi "github.com/jmylchreest/gh-please/pkg/plugin"
)

// LoadPlugins scans the packages directory and then the local plugins
// directory, registering everything found. A missing directory is skipped
// silently; other I/O problems are logged and discovery continues. Entries
// from the local directory replace same-named packages.
func (r *Registry) LoadPlugins() {
	r.loadPackages(r.packagesDir)
	r.loadLocal(r.resolver.ExpandHome(r.pluginsDir))
}

// loadPackages registers every package under dir, including members of
// @scope groups, whose manifest carries the plugin marker.
func (r *Registry) loadPackages(dir string) {
	entries, ok := r.readDir(dir)
	if !ok {
		return
	}

	for _, entry := range entries {
		if !isDirLike(dir, entry) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		if strings.HasPrefix(entry.Name(), "@") {
			members, ok := r.readDir(path)
			if !ok {
				continue
			}
			for _, member := range members {
				if isDirLike(path, member) {
					r.loadPackage(filepath.Join(path, member.Name()))
				}
			}
			continue
		}

		r.loadPackage(path)
	}
}

func (r *Registry) loadPackage(path string) {
	m, err := readManifest(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("failed to read plugin manifest", "path", path, "error", err)
		}
		return
	}
	if !m.marked {
		return
	}

	p := m.plugin()
	if p.Name == "" {
		p.Name = filepath.Base(path)
	}
	r.Register(p, path)
}

// loadLocal registers every subdirectory of dir under its directory name.
// The manifest is optional here; a directory without one still counts.
func (r *Registry) loadLocal(dir string) {
	entries, ok := r.readDir(dir)
	if !ok {
		return
	}

	for _, entry := range entries {
		if !isDirLike(dir, entry) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		p := Plugin{Name: entry.Name()}
		m, err := readManifest(path)
		switch {
		case err == nil:
			p = m.plugin()
			p.Name = entry.Name()
		case !errors.Is(err, fs.ErrNotExist):
			r.logger.Warn("failed to read plugin manifest", "path", path, "error", err)
		}
		r.Register(p, path)
	}
}

func (r *Registry) readDir(dir string) ([]os.DirEntry, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("failed to scan plugin directory", "dir", dir, "error", err)
		}
		return nil, false
	}
	return entries, true
}

// isDirLike reports whether entry is a directory or a symlink to one, which
// is how linked packages appear in node_modules.
func isDirLike(parent string, entry os.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(parent, entry.Name()))
	return err == nil && info.IsDir()
}

type manifest struct {
	name    string
	version string
	desc    string
	author  string
	marked  bool
	marker  pluginapi.Marker
}

// readManifest parses the manifest in dir. The marker is recognised only when
// it is a JSON object.
func readManifest(dir string) (manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, pluginapi.ManifestFile))
	if err != nil {
		return manifest{}, err
	}
	if !gjson.ValidBytes(data) {
		return manifest{}, fmt.Errorf("invalid JSON in %s", pluginapi.ManifestFile)
	}

	doc := gjson.ParseBytes(data)
	m := manifest{
		name:    doc.Get("name").String(),
		version: doc.Get("version").String(),
		desc:    doc.Get("description").String(),
		author:  authorString(doc.Get("author")),
	}

	marker := doc.Get(pluginapi.MarkerKey)
	if marker.IsObject() {
		m.marked = true
		m.marker = pluginapi.Marker{
			Name:        marker.Get("name").String(),
			Type:        marker.Get("type").String(),
			Description: marker.Get("description").String(),
			Author:      marker.Get("author").String(),
			Premium:     marker.Get("premium").Bool(),
			Entrypoint:  marker.Get("entrypoint").String(),
		}
	}
	return m, nil
}

// authorString accepts both the "Name <email>" string form and the
// {"name": ...} object form of the author field.
func authorString(v gjson.Result) string {
	if v.IsObject() {
		return v.Get("name").String()
	}
	return v.String()
}

// plugin converts a manifest into a descriptor. Marker fields take priority
// over the package-level ones.
func (m manifest) plugin() Plugin {
	return Plugin{
		Name:       firstNonEmpty(m.marker.Name, m.name),
		Version:    m.version,
		Type:       m.marker.Type,
		Entrypoint: m.marker.Entrypoint,
		Metadata: Metadata{
			Description: firstNonEmpty(m.marker.Description, m.desc),
			Author:      firstNonEmpty(m.marker.Author, m.author),
			Premium:     m.marker.Premium,
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
