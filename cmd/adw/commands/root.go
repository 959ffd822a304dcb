package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/valksor/go-adw/internal/config"
	"github.com/valksor/go-adw/internal/display"
	"github.com/valksor/go-adw/internal/log"
)

var (
	cfg *config.Config

	// Global flags.
	verbose bool
	noColor bool
	jsonLog bool
)

var rootCmd = &cobra.Command{
	Use:   "adw",
	Short: "AI Developer Workflow",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Long: `adw turns issues into pull requests by driving an AI coding agent through
plan, build, test, review and document stages.

Each stage is its own command and shares state with the others through an
ADW ID. The first stage mints the ID; every later stage needs it.

Quick Start:
  adw plan 42                  Classify issue #42, branch and write a plan
  adw build 42 <adw-id>        Implement the plan
  adw review 42 <adw-id>       Review against the plan and fix blockers
  adw sdlc 42                  Run the full cycle`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env first so the files can supply everything below.
		if err := config.LoadDotEnvFromCwd(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
		}

		log.Configure(log.Options{
			Verbose: verbose,
			JSON:    jsonLog,
		})
		display.InitColors(noColor)

		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		cfg, err = config.Load(cwd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log.Debug("initialized", "verbose", verbose, "tracker", cfg.Tracker.Kind)

		return nil
	},
}

// Execute runs the root command with signal handling.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "log-json", false, "Log as JSON")

	rootCmd.AddGroup(&cobra.Group{
		ID:    "stages",
		Title: "Stage Commands:",
	}, &cobra.Group{
		ID:    "pipelines",
		Title: "Pipeline Commands:",
	}, &cobra.Group{
		ID:    "info",
		Title: "Information Commands:",
	})
}
