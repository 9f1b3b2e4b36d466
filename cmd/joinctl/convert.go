package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joinhub/console/internal/convert"
	"github.com/joinhub/console/internal/export"
	"github.com/joinhub/console/internal/models"
	"github.com/joinhub/console/internal/storage"
	"github.com/spf13/cobra"
)

func newConvertCmd(opts *options) *cobra.Command {
	var (
		format  string
		yes     bool
		outDir  string
		pause   time.Duration
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "convert FILE...",
		Short: "Convert documents to markdown and optionally export them",
		Long: "Converts the files one after another. With --format every converted file is " +
			"exported and saved as <name>_converted.<format>.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "" && !export.ValidFormat(format) {
				return fmt.Errorf("unknown format %q (want %s)", format, strings.Join(export.Formats, ", "))
			}

			files := make([]models.UploadedFile, 0, len(args))
			for _, path := range args {
				f, err := storage.Describe(path)
				if err != nil {
					return err
				}
				files = append(files, *f)
			}

			out := opts.printer(cmd)
			if err := convert.Check(files, yes); err != nil {
				var large *convert.LargeFilesError
				if errors.As(err, &large) {
					out.warn("Re-run with --yes to convert them anyway.")
				}
				return err
			}

			client, err := opts.client()
			if err != nil {
				return err
			}
			mgr := convert.NewManager(client, opts.log().Named("convert"))

			ctx := cmd.Context()
			job := mgr.StartJob(ctx, files)
			waitCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				waitCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			job, err = mgr.Wait(waitCtx, job.ID)
			if err != nil {
				return err
			}
			if job.Status == convert.StatusError {
				_ = out.job(job, nil)
				return errors.New("conversion failed")
			}
			out.success("Converted %d files", job.Converted)

			var saved []string
			if format != "" {
				downloads, err := storage.NewDownloads(outDir)
				if err != nil {
					return err
				}
				exporter := export.New(client,
					export.WithPause(pause),
					export.WithLogger(opts.log().Named("export")))
				saved, err = exporter.SaveAll(ctx, job.FileNames(), format, downloads)
				if err != nil {
					_ = out.job(job, saved)
					return err
				}
			}
			return out.job(job, saved)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Export format: "+strings.Join(export.Formats, ", "))
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Convert files larger than 1MB without asking")
	cmd.Flags().StringVarP(&outDir, "out", "d", ".", "Directory to save exports into")
	cmd.Flags().DurationVar(&pause, "pause", export.DefaultPause, "Pause between exported downloads")
	cmd.Flags().DurationVar(&timeout, "wait", 0, "Give up waiting for the conversion after this long (0 waits forever)")
	return cmd
}
