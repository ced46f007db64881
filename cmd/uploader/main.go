package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/adampresley/adamgokit/awsconfig"
	"github.com/adampresley/adamgokit/retrier"
	"github.com/adampresley/adamgokit/s3"
	"github.com/adampresley/photogallery/cmd/uploader/internal/pipeline"
	"github.com/adampresley/photogallery/pkg/uploader"
	"github.com/spf13/cobra"
)

var (
	Version string = "development"

	options rootOptions
)

type rootOptions struct {
	apiBaseURL         string
	apiToken           string
	albumSlug          string
	alt                string
	draft              bool
	logLevel           string
	timeoutSeconds     int
	archiveBucket      string
	archivePrefix      string
	awsEndpointURL     string
	awsRegion          string
	awsAccessKeyID     string
	awsSecretAccessKey string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "uploader: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "uploader",
		Short:   "Upload photos to the gallery",
		Version: Version,
		Long: `uploader sends JPEG and HEIC files through the gallery upload pipeline:
request a one-time upload URL, send the bytes to the image provider, then
record the photo in an album.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(options.logLevel)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&options.apiBaseURL, "api-base-url", os.Getenv("API_BASE_URL"), "Base URL of the gallery API")
	flags.StringVar(&options.apiToken, "api-token", os.Getenv("API_TOKEN"), "Upload API token")
	flags.StringVarP(&options.albumSlug, "album", "a", os.Getenv("ALBUM_SLUG"), "Album slug to record photos in")
	flags.StringVar(&options.alt, "alt", "", "Alt text applied to every photo")
	flags.BoolVar(&options.draft, "draft", false, "Record photos unpublished")
	flags.StringVar(&options.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "Log level: debug, info, warn, or error")
	flags.IntVar(&options.timeoutSeconds, "timeout", 30, "Timeout in seconds for each network call")
	flags.StringVar(&options.archiveBucket, "archive-bucket", os.Getenv("ARCHIVE_BUCKET"), "Optional S3/R2 bucket that keeps a copy of each original")
	flags.StringVar(&options.archivePrefix, "archive-prefix", envOr("ARCHIVE_PREFIX", "originals"), "Key prefix inside the archive bucket")
	flags.StringVar(&options.awsEndpointURL, "aws-endpoint-url", os.Getenv("AWS_ENDPOINT_URL"), "S3 compatible endpoint URL")
	flags.StringVar(&options.awsRegion, "aws-region", envOr("AWS_REGION", "auto"), "S3 region")
	flags.StringVar(&options.awsAccessKeyID, "aws-access-key-id", os.Getenv("AWS_ACCESS_KEY_ID"), "S3 access key ID")
	flags.StringVar(&options.awsSecretAccessKey, "aws-secret-access-key", os.Getenv("AWS_SECRET_ACCESS_KEY"), "S3 secret access key")

	cmd.AddCommand(
		newUploadCmd(),
		newWatchCmd(),
	)

	return cmd
}

func (o rootOptions) validate() error {
	missing := []string{}

	if o.apiBaseURL == "" {
		missing = append(missing, "--api-base-url (API_BASE_URL)")
	}

	if o.apiToken == "" {
		missing = append(missing, "--api-token (API_TOKEN)")
	}

	if o.albumSlug == "" {
		missing = append(missing, "--album (ALBUM_SLUG)")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing settings: %s", strings.Join(missing, ", "))
	}

	return nil
}

func newPipelineUploader(workers int, archiver pipeline.Archiver) pipeline.Uploader {
	client := uploader.NewHTTPClient(uploader.HTTPClientConfig{
		BaseURL:    options.apiBaseURL,
		APIToken:   options.apiToken,
		MaxRetries: 2,
	})

	return pipeline.NewUploader(pipeline.UploaderConfig{
		Client:      client,
		AlbumSlug:   options.albumSlug,
		Alt:         options.alt,
		PublishNow:  !options.draft,
		CallTimeout: time.Duration(options.timeoutSeconds) * time.Second,
		Workers:     workers,
		Archiver:    archiver,
	})
}

/*
newArchiver returns nil when no archive bucket is configured. Loading the
AWS config is retried because the endpoint may still be starting.
*/
func newArchiver() (*pipeline.S3Archiver, error) {
	var (
		err      error
		s3Client s3.S3Client
	)

	if options.archiveBucket == "" {
		return nil, nil
	}

	awsConfig := &awsconfig.Config{
		Endpoint:        options.awsEndpointURL,
		Region:          options.awsRegion,
		AccessKeyID:     options.awsAccessKeyID,
		SecretAccessKey: options.awsSecretAccessKey,
	}

	retrier.Retry(func() error {
		if err = awsConfig.Load(); err != nil {
			slog.Error("failed to load AWS config. trying again", "error", err)
			return err
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	if s3Client, err = s3.NewClient(awsConfig); err != nil {
		return nil, fmt.Errorf("error creating S3 client: %w", err)
	}

	archiver := pipeline.NewS3Archiver(pipeline.S3ArchiverConfig{
		S3Client: s3Client,
		Bucket:   options.archiveBucket,
		Prefix:   options.archivePrefix,
		Region:   options.awsRegion,
	})

	if err = archiver.EnsureBucket(); err != nil {
		return nil, err
	}

	return &archiver, nil
}

func envOr(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}

	return fallback
}

func setupLogger(logLevel string) {
	level := slog.LevelInfo

	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
