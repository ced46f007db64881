package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/adampresley/photogallery/pkg/models"
	"github.com/goccy/go-json"
)

const (
	albumsFileName = "albums.json"
	photosFileName = "photos.json"
)

type JSONCatalogStoreConfig struct {
	DataDir string
}

/*
JSONCatalogStore keeps the catalog in two JSON files. Records are loaded
once and served from memory. Appends rewrite photos.json through a temp
file and a rename, so a reader of the file never sees a partial record.
*/
type JSONCatalogStore struct {
	mu      sync.RWMutex
	dataDir string
	albums  []models.Album
	photos  []models.Photo
}

func NewJSONCatalogStore(config JSONCatalogStoreConfig) (*JSONCatalogStore, error) {
	var (
		err error
	)

	result := &JSONCatalogStore{
		dataDir: config.DataDir,
		albums:  []models.Album{},
		photos:  []models.Photo{},
	}

	if err = readJSONFile(filepath.Join(config.DataDir, albumsFileName), &result.albums); err != nil {
		return nil, err
	}

	if err = readJSONFile(filepath.Join(config.DataDir, photosFileName), &result.photos); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *JSONCatalogStore) Albums(ctx context.Context) ([]models.Album, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.albums), nil
}

func (s *JSONCatalogStore) Photos(ctx context.Context) ([]models.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.photos), nil
}

func (s *JSONCatalogStore) AppendPhoto(ctx context.Context, photo models.Photo) error {
	var (
		err error
		b   []byte
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := append(slices.Clone(s.photos), photo)

	if b, err = json.MarshalIndent(updated, "", "  "); err != nil {
		return fmt.Errorf("error encoding photos: %w", err)
	}

	if err = writeFileAtomic(filepath.Join(s.dataDir, photosFileName), b); err != nil {
		return err
	}

	s.photos = updated
	return nil
}

func readJSONFile(path string, dest any) error {
	var (
		err error
		b   []byte
	)

	if b, err = os.ReadFile(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("error reading '%s': %w", path, err)
	}

	if err = json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("error decoding '%s': %w", path, err)
	}

	return nil
}

func writeFileAtomic(path string, b []byte) error {
	var (
		err error
		tmp *os.File
	)

	if tmp, err = os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp"); err != nil {
		return fmt.Errorf("error creating temp file for '%s': %w", path, err)
	}

	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("error writing temp file for '%s': %w", path, err)
	}

	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("error syncing temp file for '%s': %w", path, err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("error closing temp file for '%s': %w", path, err)
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error replacing '%s': %w", path, err)
	}

	return nil
}
