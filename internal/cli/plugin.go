package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmylchreest/gh-please/internal/compression"
	"github.com/jmylchreest/gh-please/internal/plugin/installer"
	"github.com/jmylchreest/gh-please/internal/plugin/registry"
)

func newPluginCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plugin",
		Aliases: []string{"plugins"},
		Short:   "Manage gh-please plugins",
	}

	cmd.AddCommand(
		newPluginInstallCmd(a),
		newPluginUninstallCmd(a),
		newPluginListCmd(a),
		newPluginSearchCmd(a),
		newPluginRunCmd(a),
		newPluginValidateCmd(a),
	)
	return cmd
}

// addScopeFlags registers the install scope flag shared by install and uninstall.
func addScopeFlags(fs *pflag.FlagSet, global *bool) {
	fs.BoolVarP(global, "global", "g", false, "use the package manager's global scope")
}

func newPluginInstallCmd(a *app) *cobra.Command {
	var (
		opts   installer.Options
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "install <name>",
		Short: "Install a plugin",
		Long: `Install a plugin.

Public plugins are installed with the package manager; a short name such as
"review" resolves to @pleaseai/gh-please-review. Premium plugins (--premium)
are downloaded from an authenticated GitHub release and require 'gh auth login'.

Examples:
  gh please plugin install review
  gh please plugin install review --global
  gh please plugin install ai --premium`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			warnConcurrentRuns(a.logger)

			inst, err := a.installer()
			if err != nil {
				return err
			}
			res := inst.Install(cmd.Context(), args[0], opts)
			return reportResult(cmd, res, asJSON)
		},
	}

	addScopeFlags(cmd.Flags(), &opts.Global)
	cmd.Flags().BoolVar(&opts.Premium, "premium", false, "install a premium plugin from its release repository")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newPluginUninstallCmd(a *app) *cobra.Command {
	var (
		opts   installer.UninstallOptions
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "uninstall <name>",
		Aliases: []string{"remove"},
		Short:   "Uninstall a public plugin",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			warnConcurrentRuns(a.logger)

			inst, err := a.installer()
			if err != nil {
				return err
			}
			res := inst.Uninstall(cmd.Context(), args[0], opts)
			return reportResult(cmd, res, asJSON)
		},
	}

	addScopeFlags(cmd.Flags(), &opts.Global)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// reportResult prints an installer result and turns failure into an error.
func reportResult(cmd *cobra.Command, res installer.Result, asJSON bool) error {
	if asJSON {
		if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !res.Success {
			return &exitCodeError{code: 1}
		}
		return nil
	}

	if res.Success {
		fmt.Fprintln(cmd.OutOrStdout(), successText(res.Message))
		return nil
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "%s %s\n", errorLabel("Error:"), res.Message)
	if res.Error != "" && res.Error != res.Message {
		fmt.Fprintf(stderr, "  %s\n", res.Error)
	}
	return &exitCodeError{code: 1}
}

func newPluginListCmd(a *app) *cobra.Command {
	var (
		asJSON   bool
		showPath bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed plugins",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plugins := a.registry().ListAll()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), plugins)
			}
			if len(plugins) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No plugins installed.")
				fmt.Fprintln(cmd.OutOrStdout(), hintText("\nInstall one with: gh please plugin install <name>"))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), pluginTable(plugins, showPath, cmd.OutOrStdout()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print plugins as JSON")
	cmd.Flags().BoolVar(&showPath, "path", false, "show the install path of each plugin")
	return cmd
}

func newPluginSearchCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search installed plugins by name or description",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			results := a.registry().Search(query)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No plugins found matching your query.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), pluginTable(results, false, cmd.OutOrStdout()))
			fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d plugin(s)\n", len(results))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func newPluginRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <plugin> [command] [args...]",
		Short: "Run a command provided by a plugin",
		Long: `Run a command provided by a plugin.

Without a command, the plugin's commands are listed. This is the only
operation that starts plugin code.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := a.registry()
			p, ok := reg.Get(args[0])
			if !ok {
				return fmt.Errorf("plugin %q is not installed", args[0])
			}
			dir, ok := reg.Path(p.Name)
			if !ok {
				return fmt.Errorf("plugin %q has no install path", p.Name)
			}

			activated, err := a.loader().Activate(cmd.Context(), p, dir)
			if err != nil {
				return err
			}
			defer activated.Close()

			if len(args) == 1 {
				cmds, err := activated.Commands()
				if err != nil {
					return fmt.Errorf("failed to list commands: %w", err)
				}
				tbl := NewTable([]string{"COMMAND", "DESCRIPTION"})
				for _, c := range cmds {
					tbl.AddRow([]string{c.Name, c.Short})
				}
				fmt.Fprint(cmd.OutOrStdout(), tbl.Render())
				return nil
			}

			a.logger.Debug("running plugin command", "plugin", p.Name, "command", args[1], "args", args[2:])
			resp, err := activated.Run(cmd.Context(), args[1], args[2:])
			if err != nil {
				return fmt.Errorf("plugin %s failed: %w", p.Name, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), resp.Stdout)
			fmt.Fprint(cmd.ErrOrStderr(), resp.Stderr)
			if resp.ExitCode != 0 {
				return &exitCodeError{code: resp.ExitCode}
			}
			return nil
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newPluginValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <archive>",
		Short: "Check that a file is a readable plugin tarball",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := compression.NewService(compression.WithLogger(a.logger.Named("archive")))
			if !svc.ValidateTarball(args[0]) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s is not a valid plugin tarball\n", args[0])
				return &exitCodeError{code: 1}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is a valid plugin tarball\n", args[0])
			return nil
		},
	}
}

func pluginTable(plugins []registry.Info, showPath bool, out io.Writer) string {
	headers := []string{"NAME", "VERSION", "TYPE", "PREMIUM", "DESCRIPTION"}
	if showPath {
		headers = append(headers, "PATH")
	}

	tbl := NewTable(headers)
	tbl.EnableTerminalAwareWidth(out, 4, 40)
	for _, p := range plugins {
		row := []string{p.Name, p.Version, p.Type, strconv.FormatBool(p.Metadata.Premium), p.Metadata.Description}
		if showPath {
			row = append(row, p.Path)
		}
		tbl.AddRow(row)
	}
	return tbl.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
