package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/stagebox/service/internal/preview"
	"github.com/stagebox/service/internal/sink"
	"github.com/stagebox/service/internal/upload"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var excludes []string
	var window time.Duration
	var quiet bool

	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Stage files and upload them to the relay",
		Long: "Stage the given files (directories are walked), show the preview table, " +
			"drop any --exclude positions and upload the rest concurrently.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, err := ctx.uploadEndpoint()
			if err != nil {
				return err
			}
			positions, err := parsePositions(excludes)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			logger := ctx.logger(cmd.ErrOrStderr())

			st, err := stage(args, window, logger)
			if err != nil {
				return err
			}
			defer st.close()

			if len(positions) > 0 {
				if err := st.exclude(positions); err != nil {
					return err
				}
			}
			if !quiet {
				fmt.Fprintln(out, st.view.Render())
			}
			if !st.view.CommitEnabled() {
				return upload.ErrEmpty
			}

			reporter := newProgressReporter(cmd.ErrOrStderr(), logger, st.set.Size())
			coord := upload.NewCoordinator(
				upload.WithLogger(logger),
				upload.WithProgress(reporter.Report),
			)
			var opts []sink.HTTPOption
			if ctx.token != "" {
				opts = append(opts, sink.WithToken(ctx.token))
			}
			session := upload.NewSession(st.set, st.renderer, coord, sink.NewHTTPSink(endpoint, opts...))

			start := time.Now()
			outcome, err := session.Commit(cmd.Context())
			reporter.Close()
			if err != nil {
				return err
			}

			var sent int64
			for _, o := range outcome.Outcomes {
				if o.Succeeded {
					sent += o.Item.Size()
					fmt.Fprintf(out, "uploaded %s -> %s\n", o.Item.Name, o.TransferID)
				}
			}
			if outcome.Status == upload.PartialFailure {
				for _, o := range outcome.Failed() {
					fmt.Fprintf(out, "failed   %s: %v\n", o.Item.Name, o.Err)
				}
				return fmt.Errorf("%d of %d upload(s) failed, re-run to retry: %w",
					len(outcome.Failed()), len(outcome.Outcomes), outcome.Err())
			}
			fmt.Fprintf(out, "Successfully uploaded %d file(s), %s in %s\n",
				len(outcome.Outcomes), humanize.Bytes(uint64(sent)), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&excludes, "exclude", "x", nil, "1-based positions to remove before upload (e.g. 2,4-5)")
	cmd.Flags().DurationVar(&window, "debounce", preview.DefaultWindow, "Preview render debounce window")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the preview table")
	return cmd
}
