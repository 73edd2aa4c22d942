// Command gymctl runs one-off administrative tasks against the gymdesk
// database and job queue.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/gymdesk/gymdesk/internal/app"
)

const programName = "gymctl"

type configKey struct{}

func configFrom(cmd *cobra.Command) *app.Config {
	cfg, _ := cmd.Context().Value(configKey{}).(*app.Config)
	return cfg
}

func loggerFor(cfg *app.Config) *slog.Logger {
	logger := app.NewLogger(cfg).With("component", programName)
	slog.SetDefault(logger)
	return logger
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           programName,
		Short:         "Administrative tasks for gymdesk",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
	}
	root.AddCommand(bootstrapAdminCommand())
	root.AddCommand(sweepCommand())
	root.AddCommand(jobsCommand())
	return root
}

func main() {
	if _, err := maxprocs.Set(); err != nil {
		slog.Warn("set maxprocs", slog.Any("error", err))
	}
	if err := rootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
