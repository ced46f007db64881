package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adampresley/photogallery/pkg/uploader"
	"github.com/fsnotify/fsnotify"
)

const (
	DefaultStableInterval = 500 * time.Millisecond
	DefaultStableTimeout  = 30 * time.Second
)

var (
	ErrNotStable = errors.New("file did not stop growing in time")
)

type WatcherConfig struct {
	Folder         string
	UploadedFolder string
	Uploader       FileUploader
	StableInterval time.Duration
	StableTimeout  time.Duration
}

/*
Watcher uploads files as they appear in a folder. Export tools write files
in several steps, so a file is only picked up once its size stops changing.
Uploaded files are moved to UploadedFolder. Failed files stay where they are.
*/
type Watcher struct {
	folder         string
	uploadedFolder string
	uploader       FileUploader
	stableInterval time.Duration
	stableTimeout  time.Duration

	inFlight sync.Map
	wg       sync.WaitGroup
}

func NewWatcher(config WatcherConfig) *Watcher {
	result := &Watcher{
		folder:         config.Folder,
		uploadedFolder: config.UploadedFolder,
		uploader:       config.Uploader,
		stableInterval: config.StableInterval,
		stableTimeout:  config.StableTimeout,
	}

	if result.stableInterval <= 0 {
		result.stableInterval = DefaultStableInterval
	}

	if result.stableTimeout <= 0 {
		result.stableTimeout = DefaultStableTimeout
	}

	return result
}

// Run blocks until ctx is cancelled, then waits for uploads already started.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		err     error
		info    os.FileInfo
		watcher *fsnotify.Watcher
	)

	if info, err = os.Stat(w.folder); err != nil {
		return fmt.Errorf("error reading watch folder '%s': %w", w.folder, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("watch folder '%s' is not a directory", w.folder)
	}

	if watcher, err = fsnotify.NewWatcher(); err != nil {
		return fmt.Errorf("error creating file watcher: %w", err)
	}

	defer watcher.Close()

	if err = watcher.Add(w.folder); err != nil {
		return fmt.Errorf("error watching '%s': %w", w.folder, err)
	}

	slog.Info("watching for new files", "folder", w.folder, "uploadedFolder", w.uploadedFolder)

	defer w.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping watcher...")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !event.Has(fsnotify.Create) {
				continue
			}

			w.dispatch(ctx, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			slog.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, path string) {
	if _, loaded := w.inFlight.LoadOrStore(path, struct{}{}); loaded {
		return
	}

	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		defer w.inFlight.Delete(path)

		w.handle(ctx, path)
	}()
}

func (w *Watcher) handle(ctx context.Context, path string) {
	info, err := os.Stat(path)

	if err != nil || info.IsDir() {
		return
	}

	if err = WaitUntilStable(ctx, path, w.stableInterval, w.stableTimeout); err != nil {
		slog.Error("file never settled", "file", path, "error", err)
		return
	}

	if !uploader.IsSupportedExtension(path) {
		slog.Warn("skipping unsupported format", "file", filepath.Base(path))
		return
	}

	result := w.uploader.UploadFile(ctx, path)

	if result.Err != nil {
		slog.Error("upload failed", "file", filepath.Base(path), "error", result.Err)
		return
	}

	destination, err := MoveToFolder(path, w.uploadedFolder)

	if err != nil {
		slog.Error("uploaded file could not be moved", "file", path, "photoID", result.PhotoID, "error", err)
		return
	}

	slog.Info("upload completed", "photoID", result.PhotoID, "movedTo", destination)
}

/*
WaitUntilStable polls the file size until two reads in a row agree. A file
that does not exist yet is polled again until timeout.
*/
func WaitUntilStable(ctx context.Context, path string, interval, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastSize := int64(-1)

	for {
		if info, err := os.Stat(path); err == nil {
			if info.Size() == lastSize {
				return nil
			}

			lastSize = info.Size()
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrNotStable, path)
		case <-ticker.C:
		}
	}
}

/*
MoveToFolder moves a file into folder, creating it when needed, and returns
the new path. A rename across filesystems falls back to copy and delete.
*/
func MoveToFolder(path, folder string) (string, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("error creating folder '%s': %w", folder, err)
	}

	destination := filepath.Join(folder, filepath.Base(path))

	if err := os.Rename(path, destination); err == nil {
		return destination, nil
	}

	if err := copyFile(path, destination); err != nil {
		return "", err
	}

	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("error removing '%s' after copy: %w", path, err)
	}

	return destination, nil
}

func copyFile(source, destination string) error {
	var (
		err error
		in  *os.File
		out *os.File
	)

	if in, err = os.Open(source); err != nil {
		return fmt.Errorf("error opening '%s': %w", source, err)
	}

	defer in.Close()

	if out, err = os.Create(destination); err != nil {
		return fmt.Errorf("error creating '%s': %w", destination, err)
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("error copying '%s': %w", source, err)
	}

	return out.Close()
}
