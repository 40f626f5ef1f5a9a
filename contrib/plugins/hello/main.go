// hello - example gh-please command-group plugin
//
// Demonstrates the plugin side of the go-plugin RPC protocol. The host only
// starts this binary through `gh please plugin run hello ...`; listing and
// searching read package.json and never execute it.
//
// Build and install locally:
//   go build -o bin/hello
//   mkdir -p ~/.gh-please/plugins/hello
//   cp -r bin package.json ~/.gh-please/plugins/hello/
//
// Usage:
//   gh please plugin run hello
//   gh please plugin run hello greet Octocat
//
// License: MIT

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmylchreest/gh-please/pkg/plugin"
)

// HelloPlugin implements plugin.CommandGroup.
type HelloPlugin struct{}

func (p *HelloPlugin) Info() plugin.Info {
	return plugin.Info{
		Name:            "hello",
		Version:         "0.1.0",
		ProtocolVersion: plugin.ProtocolVersion,
		Description:     "Example command group",
	}
}

func (p *HelloPlugin) Commands() []plugin.Command {
	return []plugin.Command{
		{Name: "greet", Short: "Print a greeting", Usage: "greet [name...]"},
		{Name: "shout", Short: "Print a greeting in capitals", Usage: "shout [name...]"},
	}
}

func (p *HelloPlugin) Run(_ context.Context, req plugin.RunRequest) (plugin.RunResponse, error) {
	name := "world"
	if len(req.Args) > 0 {
		name = strings.Join(req.Args, " ")
	}

	switch req.Command {
	case "greet":
		return plugin.RunResponse{Stdout: fmt.Sprintf("Hello, %s!\n", name)}, nil
	case "shout":
		return plugin.RunResponse{Stdout: strings.ToUpper(fmt.Sprintf("Hello, %s!\n", name))}, nil
	default:
		return plugin.RunResponse{
			ExitCode: 2,
			Stderr:   fmt.Sprintf("unknown command %q\n", req.Command),
		}, nil
	}
}

func main() {
	plugin.Serve(&HelloPlugin{})
}
