// Package plugin provides the public API for gh-please plugins.
package plugin

import (
	"context"
)

// CommandGroup is the interface plugins implement to contribute commands.
type CommandGroup interface {
	// Info returns plugin metadata.
	Info() Info

	// Commands lists the subcommands the plugin provides.
	Commands() []Command

	// Run executes a single command.
	Run(ctx context.Context, req RunRequest) (RunResponse, error)
}
