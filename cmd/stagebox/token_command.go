package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stagebox/service/internal/auth"
)

func newTokenCommand() *cobra.Command {
	var secret string
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a relay that has JWT_SECRET set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			tok, err := auth.Issue(secret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (defaults to $JWT_SECRET)")
	cmd.Flags().StringVar(&subject, "subject", "stagebox-cli", "Client name recorded with each upload")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "Token lifetime")
	return cmd
}
