// Package pathutil resolves home-relative paths used for plugin installation.
package pathutil

import (
	"os"
	"path/filepath"
)

const (
	// HomeToken is the leading path element that is replaced with the home directory.
	HomeToken = "~"

	// DefaultPluginsDir holds one subdirectory per locally installed plugin.
	DefaultPluginsDir = "~/.gh-please/plugins"
)

// Resolver expands home-relative paths against a fixed home directory.
type Resolver struct {
	home string
}

// NewResolver creates a Resolver. An empty home falls back to the current
// user's home directory at expansion time.
func NewResolver(home string) *Resolver {
	return &Resolver{home: home}
}

// Home returns the home directory the resolver expands against.
func (r *Resolver) Home() string {
	if r != nil && r.home != "" {
		return r.home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// ExpandHome replaces a leading "~" with the home directory. Only a "~" that is
// the whole path or is directly followed by a separator is expanded; anything
// else, including "~user" and a "~" in the middle of the path, is returned as-is.
func (r *Resolver) ExpandHome(path string) string {
	if !hasHomePrefix(path) {
		return path
	}
	home := r.Home()
	if home == "" {
		return path
	}
	return home + path[len(HomeToken):]
}

// Join expands the home token and joins the remaining elements.
func (r *Resolver) Join(path string, elem ...string) string {
	return filepath.Join(append([]string{r.ExpandHome(path)}, elem...)...)
}

// ExpandHome expands path against the current user's home directory.
func ExpandHome(path string) string {
	return NewResolver("").ExpandHome(path)
}

func hasHomePrefix(path string) bool {
	if len(path) < len(HomeToken) || path[:len(HomeToken)] != HomeToken {
		return false
	}
	if len(path) == len(HomeToken) {
		return true
	}
	next := path[len(HomeToken)]
	return next == '/' || next == filepath.Separator
}
