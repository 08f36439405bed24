package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stagebox/service/internal/preview"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var excludes []string
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "preview <path>...",
		Short: "Show what would be uploaded without uploading it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			positions, err := parsePositions(excludes)
			if err != nil {
				return err
			}

			st, err := stage(args, window, ctx.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer st.close()

			if len(positions) > 0 {
				if err := st.exclude(positions); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.view.Render())
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&excludes, "exclude", "x", nil, "1-based positions to remove (e.g. 2,4-5)")
	cmd.Flags().DurationVar(&window, "debounce", preview.DefaultWindow, "Preview render debounce window")
	return cmd
}
