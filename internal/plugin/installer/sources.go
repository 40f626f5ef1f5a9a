package installer

import (
	"maps"
	"slices"
)

// premiumSources maps premium plugin names to the repository their signed
// release artifacts are published from.
var premiumSources = map[string]string{
	"ai": "pleaseai/gh-please-ai",
}

// PremiumSource returns the source repository for a premium plugin.
func PremiumSource(name string) (string, bool) {
	repo, ok := premiumSources[name]
	return repo, ok
}

// PremiumPlugins returns the names of all premium plugins, sorted.
func PremiumPlugins() []string {
	return slices.Sorted(maps.Keys(premiumSources))
}
