package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adampresley/photogallery/pkg/uploader"
	"github.com/alitto/pond/v2"
)

type Archiver interface {
	Mirror(ctx context.Context, path string) error
}

type FileUploader interface {
	UploadFile(ctx context.Context, path string) Result
}

type Result struct {
	Path    string
	PhotoID string
	Err     error
}

type UploaderConfig struct {
	Client      uploader.APIClient
	AlbumSlug   string
	Alt         string
	PublishNow  bool
	CallTimeout time.Duration
	Workers     int
	Archiver    Archiver
}

/*
Uploader runs one upload Session per file. Sessions are independent, so a
batch runs them side by side on a worker pool.
*/
type Uploader struct {
	client      uploader.APIClient
	form        uploader.FormValues
	callTimeout time.Duration
	workers     int
	archiver    Archiver
}

func NewUploader(config UploaderConfig) Uploader {
	result := Uploader{
		client: config.Client,
		form: uploader.FormValues{
			AlbumSlug:  config.AlbumSlug,
			Alt:        config.Alt,
			PublishNow: config.PublishNow,
		},
		callTimeout: config.CallTimeout,
		workers:     config.Workers,
		archiver:    config.Archiver,
	}

	if result.workers <= 0 {
		result.workers = 1
	}

	return result
}

func (u Uploader) UploadFile(ctx context.Context, path string) Result {
	var (
		err     error
		file    uploader.SelectedFile
		photoID string
	)

	result := Result{Path: path}
	logger := slog.With("file", path)

	if file, err = uploader.FileFromPath(path); err != nil {
		result.Err = err
		return result
	}

	session := uploader.NewSession(uploader.SessionConfig{
		Client:      u.client,
		CallTimeout: u.callTimeout,
		Logger:      logger,
		OnTransition: func(t uploader.Transition) {
			if t.Message != "" && t.Err == nil {
				logger.Info(t.Message, "phase", t.To.String())
			}
		},
	})

	if err = session.Select(file); err != nil {
		result.Err = fmt.Errorf("error selecting '%s': %w", file.Name, err)
		return result
	}

	if photoID, err = session.Submit(ctx, u.form); err != nil {
		result.Err = fmt.Errorf("error uploading '%s': %w", file.Name, err)
		return result
	}

	result.PhotoID = photoID

	if u.archiver != nil {
		if err = u.archiver.Mirror(ctx, path); err != nil {
			logger.Warn("photo uploaded but archive copy failed", "photoID", photoID, "error", err)
		}
	}

	return result
}

// UploadAll uploads every path and returns one Result per path, in input order.
func (u Uploader) UploadAll(ctx context.Context, paths []string) []Result {
	var (
		mu sync.Mutex
	)

	results := make([]Result, len(paths))
	pool := pond.NewPool(u.workers, pond.WithContext(ctx))

	for index, path := range paths {
		pool.Submit(func() {
			r := u.UploadFile(ctx, path)

			mu.Lock()
			results[index] = r
			mu.Unlock()
		})
	}

	_ = pool.Stop().Wait()

	for index, r := range results {
		if r.Path == "" {
			results[index] = Result{Path: paths[index], Err: ctx.Err()}
		}
	}

	return results
}
