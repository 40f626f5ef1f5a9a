// gh-please - plugin-driven extension for the GitHub CLI
//
// gh-please installs, discovers and runs command plugins published either as
// public packages or as premium release artifacts.
//
// Licensed under the MIT License
package main

import "github.com/jmylchreest/gh-please/internal/cli"

func main() {
	cli.Execute()
}
