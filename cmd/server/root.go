package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/dutchstory-backend/internal/app"
	"github.com/heartmarshall/dutchstory-backend/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Dutch language learning API",
	Long: `Generates five-sentence Dutch learning paragraphs with English translations
and key vocabulary. Configuration comes from CONFIG_PATH (default ./config.yaml)
and environment variables.`,
	Version:       app.BuildVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Reload every knowledge base source and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return app.Ingest(cmd.Context())
	},
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the supported environment variables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		desc, err := config.Describe()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), desc)
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, ingestCmd, envCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	return app.Run(cmd.Context())
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}
