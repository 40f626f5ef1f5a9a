// Package pkgmanager installs and removes public plugin packages through a
// Node package manager.
package pkgmanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/gh-please/internal/process"
)

const (
	// DefaultBinary is the package manager invoked when none is configured.
	DefaultBinary = "npm"

	// PackageScope is the npm scope public plugins are published under.
	PackageScope = "@pleaseai"

	// PackagePrefix is prepended to bare plugin names.
	PackagePrefix = "gh-please-"
)

// Scope selects where a package is installed.
type Scope int

const (
	// ScopeLocal installs into the current project's packages directory.
	ScopeLocal Scope = iota
	// ScopeGlobal installs into the package manager's global prefix.
	ScopeGlobal
)

// String implements fmt.Stringer.
func (s Scope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "local"
}

// ScopeFor maps a global flag to a Scope.
func ScopeFor(global bool) Scope {
	if global {
		return ScopeGlobal
	}
	return ScopeLocal
}

// Manager installs and uninstalls packages. Implementations report the exit
// code of the underlying command; err is only set when the command could not run.
type Manager interface {
	Install(ctx context.Context, pkg string, scope Scope) (process.Result, error)
	Uninstall(ctx context.Context, pkg string, scope Scope) (process.Result, error)
}

// NPM drives npm (or a CLI-compatible binary such as pnpm or bun).
type NPM struct {
	runner process.Runner
	binary string
	logger hclog.Logger
}

// NewNPM creates an npm-compatible manager using binary.
func NewNPM(runner process.Runner, binary string, logger hclog.Logger) *NPM {
	if binary == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &NPM{runner: runner, binary: binary, logger: logger}
}

// Binary returns the package manager executable.
func (n *NPM) Binary() string {
	return n.binary
}

// Install runs `<binary> install [-g] <pkg>`.
func (n *NPM) Install(ctx context.Context, pkg string, scope Scope) (process.Result, error) {
	return n.run(ctx, "install", pkg, scope)
}

// Uninstall runs `<binary> uninstall [-g] <pkg>`.
func (n *NPM) Uninstall(ctx context.Context, pkg string, scope Scope) (process.Result, error) {
	return n.run(ctx, "uninstall", pkg, scope)
}

func (n *NPM) run(ctx context.Context, verb, pkg string, scope Scope) (process.Result, error) {
	args := []string{verb}
	if scope == ScopeGlobal {
		args = append(args, "-g")
	}
	args = append(args, pkg)

	n.logger.Debug("running package manager", "binary", n.binary, "args", strings.Join(args, " "))

	res, err := n.runner.Run(ctx, n.binary, args, nil)
	if err != nil {
		return res, fmt.Errorf("failed to run %s %s: %w", n.binary, verb, err)
	}
	return res, nil
}

// ResolvePackageName maps a plugin name to its published package name.
// Scoped names and names that already carry the prefix are returned unchanged.
func ResolvePackageName(name string) string {
	if strings.HasPrefix(name, "@") || strings.HasPrefix(name, PackagePrefix) {
		return name
	}
	return PackageScope + "/" + PackagePrefix + name
}
