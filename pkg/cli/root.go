// Package cli implements the semsql command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"semsql/internal/config"
	"semsql/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// exitError carries a process exit code for failures that were already reported.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// globalOptions holds the resolved persistent flags shared by all commands.
type globalOptions struct {
	output   string
	logLevel string
	profile  string
	prof     Profile
	logger   *slog.Logger
}

// Execute runs the CLI.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = PrintJSON(os.Stdout, map[string]interface{}{
				"error": err.Error(),
				"kind":  domain.ErrorKind(err),
			})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{logger: slog.New(slog.DiscardHandler)}

	rootCmd := &cobra.Command{
		Use:           "semsql",
		Short:         "Semantic layer SQL compiler",
		Long:          "Compile metric/dimension queries into SQL against a declared semantic layer, generate them from questions, and run them on DuckDB.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Config file is optional
			cfg, err := LoadUserConfig()
			if err != nil {
				return err
			}
			p, err := cfg.ActiveProfile(opts.profile)
			if err != nil {
				return err
			}
			opts.prof = p

			// Apply precedence: flag > env > profile > default
			flags := cmd.Root().PersistentFlags()
			if !flags.Changed("output") {
				switch {
				case os.Getenv("SEMSQL_OUTPUT") != "":
					opts.output = os.Getenv("SEMSQL_OUTPUT")
				case p.Output != "":
					opts.output = p.Output
				default:
					opts.output = defaultOutputFormat(os.Stdout)
				}
				_ = flags.Set("output", opts.output)
			}
			if err := validateOutputFormat(opts.output); err != nil {
				return err
			}
			if !flags.Changed("log-level") && p.LogLevel != "" {
				opts.logLevel = p.LogLevel
			}

			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: config.ParseLevel(opts.logLevel),
			}))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "", "Output format (table, json); defaults to table on a terminal")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&opts.profile, "profile", "p", "", "Config profile to use")

	rootCmd.AddCommand(newCompileCmd(opts))
	rootCmd.AddCommand(newExplainCmd(opts))
	rootCmd.AddCommand(newValidateCmd(opts))
	rootCmd.AddCommand(newGenerateCmd(opts))
	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())

	// Shell completions
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
