// Package plugin provides the public API for gh-please plugins.
// External plugins should import this package instead of internal packages.
package plugin

// Marker is the object stored under MarkerKey in a plugin's manifest.
// Every field is optional.
type Marker struct {
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	Premium     bool   `json:"premium,omitempty"`

	// Entrypoint is the plugin executable, relative to the plugin directory.
	Entrypoint string `json:"entrypoint,omitempty"`
}

// Info contains metadata a running plugin reports about itself.
type Info struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	ProtocolVersion string `json:"protocol_version"`
	Description     string `json:"description"`
}

// Command describes one subcommand contributed by a command group.
type Command struct {
	Name  string `json:"name"`
	Short string `json:"short"`
	Usage string `json:"usage,omitempty"`
}

// RunRequest asks a plugin to execute one of its commands.
type RunRequest struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// RunResponse is the outcome of a command run inside a plugin.
type RunResponse struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}
