package main

import (
	"github.com/adampresley/photogallery/cmd/uploader/internal/pipeline"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var (
		uploadedFolder string
	)

	cmd := &cobra.Command{
		Use:   "watch <folder>",
		Short: "Watch a folder and upload new exports as they appear",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				archiver pipeline.Archiver
			)

			if err := options.validate(); err != nil {
				return err
			}

			s3Archiver, err := newArchiver()

			if err != nil {
				return err
			}

			if s3Archiver != nil {
				archiver = s3Archiver
			}

			watcher := pipeline.NewWatcher(pipeline.WatcherConfig{
				Folder:         args[0],
				UploadedFolder: uploadedFolder,
				Uploader:       newPipelineUploader(1, archiver),
			})

			return watcher.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&uploadedFolder, "uploaded-folder", envOr("UPLOADED_FOLDER", "uploaded"), "Folder that uploaded files are moved into")
	return cmd
}
