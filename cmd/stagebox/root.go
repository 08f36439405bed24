package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "stagebox",
		Short:         "Stage, preview and upload files to a stagebox relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.server, "server", envOr("STAGEBOX_SERVER", defaultServer), "Relay base URL")
	flags.StringVar(&ctx.token, "token", os.Getenv("STAGEBOX_TOKEN"), "Bearer token for the upload API")
	flags.StringVar(&ctx.logLevel, "log-level", "", "Log level (debug, info, warn, error, none)")

	rootCmd.AddCommand(newUploadCommand(ctx))
	rootCmd.AddCommand(newPreviewCommand(ctx))
	rootCmd.AddCommand(newTokenCommand())

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
