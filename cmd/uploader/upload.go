package main

import (
	"fmt"
	"log/slog"

	"github.com/adampresley/photogallery/cmd/uploader/internal/pipeline"
	"github.com/spf13/cobra"
)

func newUploadCmd() *cobra.Command {
	var (
		workers      int
		skipArchived bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				archiver pipeline.Archiver
			)

			ctx := cmd.Context()

			if err := options.validate(); err != nil {
				return err
			}

			s3Archiver, err := newArchiver()

			if err != nil {
				return err
			}

			paths := args

			if s3Archiver != nil {
				archiver = s3Archiver

				if skipArchived {
					if paths, err = withoutArchived(*s3Archiver, args); err != nil {
						return err
					}
				}
			}

			results := newPipelineUploader(workers, archiver).UploadAll(ctx, paths)
			failed := 0

			for _, result := range results {
				if result.Err != nil {
					failed++
					slog.Error("upload failed", "file", result.Path, "error", result.Err)
					continue
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", result.PhotoID, result.Path)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d uploads failed", failed, len(results))
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 3, "Number of files uploaded at the same time")
	cmd.Flags().BoolVar(&skipArchived, "skip-archived", false, "Skip files whose original is already in the archive bucket")
	return cmd
}

func withoutArchived(archiver pipeline.S3Archiver, paths []string) ([]string, error) {
	archived, err := archiver.ArchivedKeys()

	if err != nil {
		return nil, err
	}

	result := []string{}

	for _, p := range paths {
		if _, ok := archived[archiver.Key(p)]; ok {
			slog.Info("skipping file already in archive", "file", p)
			continue
		}

		result = append(result, p)
	}

	return result, nil
}
