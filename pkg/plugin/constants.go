// Package plugin provides the public API for gh-please plugins.
package plugin

import (
	"github.com/hashicorp/go-plugin"
)

const (
	// ProtocolVersion defines the current plugin API version.
	// Format: MAJOR.MINOR.PATCH.
	// - Increment MAJOR for breaking changes (incompatible API changes).
	// - Increment MINOR for backward-compatible additions.
	// - Increment PATCH for backward-compatible bug fixes.
	ProtocolVersion = "1.0.0"

	// ManifestFile is the file at the root of a plugin directory whose
	// presence marks a complete installation.
	ManifestFile = "package.json"

	// MarkerKey is the manifest key holding the plugin marker object. A
	// package without it is an ordinary dependency, not a plugin.
	MarkerKey = "gh-please"

	// DispenseName is the go-plugin name command groups are served under.
	DispenseName = "commands"

	// DefaultType is the plugin type assumed when a manifest does not declare one.
	DefaultType = "command-group"
)

// Handshake is the handshake configuration for go-plugin protocol.
// This ensures that plugins using go-plugin can only connect to compatible hosts.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1, // Major version from ProtocolVersion
	MagicCookieKey:   "GH_PLEASE_PLUGIN",
	MagicCookieValue: "gh_please_command_group",
}

// PluginMap returns the go-plugin plugin set for a host (impl nil) or a plugin binary.
func PluginMap(impl CommandGroup) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		DispenseName: &CommandGroupRPC{Impl: impl},
	}
}

// Serve runs impl as a go-plugin server. It is called from a plugin's main
// function and blocks until the host disconnects.
func Serve(impl CommandGroup) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         PluginMap(impl),
	})
}
