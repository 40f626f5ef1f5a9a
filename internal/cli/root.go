// Package cli provides the command-line interface for gh-please.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/gh-please/internal/config"
	"github.com/jmylchreest/gh-please/internal/process"
	"github.com/jmylchreest/gh-please/internal/version"
)

// app holds what every command needs once flags are parsed.
type app struct {
	cfg    config.Config
	logger hclog.Logger
	runner process.Runner

	// flags
	verbose bool
	timeout time.Duration
}

// Option customises the root command.
type Option func(*app)

// WithRunner replaces the process runner used for gh and npm.
func WithRunner(r process.Runner) Option {
	return func(a *app) {
		a.runner = r
	}
}

// NewRootCommand builds the gh-please command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{}
	for _, opt := range opts {
		opt(a)
	}
	if a.runner == nil {
		a.runner = process.NewExecRunner()
	}

	root := &cobra.Command{
		Use:   "gh-please",
		Short: "GitHub CLI extension with installable command plugins",
		Long: `gh-please extends the GitHub CLI with plugins.

Public plugins are installed with the configured package manager (npm by
default). Premium plugins are downloaded from authenticated GitHub releases
into ~/.gh-please/plugins.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr(), cmd.Flags().Changed("timeout"))
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 0, "bound premium installs (e.g. 2m); 0 waits indefinitely")
	root.SetVersionTemplate(version.String() + "\n")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newPluginCmd(a))

	return root
}

// setup loads configuration and builds the logger. Flags override the environment.
func (a *app) setup(stderr io.Writer, timeoutSet bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.LogLevel = hclog.Debug
	}
	if timeoutSet {
		cfg.Timeout = a.timeout
	}
	a.cfg = cfg

	a.logger = hclog.New(&hclog.LoggerOptions{
		Name:   "gh-please",
		Output: stderr,
		Level:  cfg.LogLevel,
	})
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		code := 1
		var ec *exitCodeError
		if errors.As(err, &ec) {
			code = ec.code
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(code)
	}
}

// exitCodeError carries a plugin's exit status out of Execute without
// printing anything further.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
