package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/adampresley/photogallery/pkg/models"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type PhotoRecorderServicer interface {
	RecordPhoto(ctx context.Context, payload models.PhotoPayload, idempotencyKey string) (RecordResult, error)
}

type PhotoRecorderServiceConfig struct {
	Catalog              CatalogServicer
	Notifier             RevalidationNotifier
	IdempotencyCacheSize int
	IdempotencyTTL       time.Duration
	Now                  func() time.Time
	NewID                func() string
}

/*
RecordResult is the outcome of RecordPhoto. Replayed is true when an
idempotency key matched an earlier submission and no new record was written.
*/
type RecordResult struct {
	PhotoID  string
	Replayed bool
}

/*
PhotoRecorderService validates and stores photo metadata once the binary
upload has reached the image provider. Every call without an idempotency
key creates a new record, even for an image ID that was recorded before.
*/
type PhotoRecorderService struct {
	catalog     CatalogServicer
	notifier    RevalidationNotifier
	idempotency *expirable.LRU[string, string]
	keyLock     *sync.Mutex
	now         func() time.Time
	newID       func() string
}

func NewPhotoRecorderService(config PhotoRecorderServiceConfig) PhotoRecorderService {
	if config.IdempotencyCacheSize <= 0 {
		config.IdempotencyCacheSize = 1024
	}

	if config.IdempotencyTTL <= 0 {
		config.IdempotencyTTL = 24 * time.Hour
	}

	if config.Now == nil {
		config.Now = time.Now
	}

	if config.NewID == nil {
		config.NewID = uuid.NewString
	}

	return PhotoRecorderService{
		catalog:     config.Catalog,
		notifier:    config.Notifier,
		idempotency: expirable.NewLRU[string, string](config.IdempotencyCacheSize, nil, config.IdempotencyTTL),
		keyLock:     &sync.Mutex{},
		now:         config.Now,
		newID:       config.NewID,
	}
}

func (s PhotoRecorderService) RecordPhoto(ctx context.Context, payload models.PhotoPayload, idempotencyKey string) (RecordResult, error) {
	var (
		err error
	)

	if err = s.validate(ctx, payload); err != nil {
		photosRecordedTotal.WithLabelValues("invalid").Inc()
		return RecordResult{}, err
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)

	if idempotencyKey != "" {
		s.keyLock.Lock()
		defer s.keyLock.Unlock()

		if photoID, ok := s.idempotency.Get(idempotencyKey); ok {
			slog.Info("replaying recorded photo for idempotency key", "photoID", photoID, "albumSlug", payload.AlbumSlug)
			photosRecordedTotal.WithLabelValues("replayed").Inc()
			return RecordResult{PhotoID: photoID, Replayed: true}, nil
		}
	}

	photo := s.newPhoto(payload)

	if err = s.catalog.AppendPhoto(ctx, photo); err != nil {
		photosRecordedTotal.WithLabelValues("error").Inc()
		return RecordResult{}, fmt.Errorf("error recording photo for image %s: %w", payload.CFImageID, err)
	}

	if idempotencyKey != "" {
		s.idempotency.Add(idempotencyKey, photo.ID)
	}

	photosRecordedTotal.WithLabelValues("created").Inc()
	slog.Info("photo metadata recorded", "photoID", photo.ID, "albumSlug", photo.AlbumSlug, "imageID", photo.CFImageID, "published", photo.Published)

	s.notifyRevalidation(ctx, photo.AlbumSlug)

	return RecordResult{PhotoID: photo.ID}, nil
}

func (s PhotoRecorderService) validate(ctx context.Context, payload models.PhotoPayload) error {
	validationErr := models.NewValidationError()

	if strings.TrimSpace(payload.AlbumSlug) == "" {
		validationErr.Add("album_slug", "Please choose an album")
	} else {
		exists, err := s.catalog.AlbumExists(ctx, payload.AlbumSlug)

		if err != nil {
			return fmt.Errorf("error checking album '%s': %w", payload.AlbumSlug, err)
		}

		if !exists {
			validationErr.Add("album_slug", "Unknown album")
		}
	}

	if strings.TrimSpace(payload.CFImageID) == "" {
		validationErr.Add("cf_image_id", "Required")
	}

	if payload.Alt != nil && utf8.RuneCountInString(*payload.Alt) > models.MaxAltLength {
		validationErr.Add("alt", fmt.Sprintf("String must contain at most %d character(s)", models.MaxAltLength))
	}

	if payload.Width != nil && *payload.Width <= 0 {
		validationErr.Add("width", "Must be a positive integer")
	}

	if payload.Height != nil && *payload.Height <= 0 {
		validationErr.Add("height", "Must be a positive integer")
	}

	return validationErr.OrNil()
}

func (s PhotoRecorderService) newPhoto(payload models.PhotoPayload) models.Photo {
	result := models.Photo{
		ID:        s.newID(),
		AlbumSlug: payload.AlbumSlug,
		CFImageID: payload.CFImageID,
		Alt:       payload.Alt,
		Exif:      payload.Exif,
		Tags:      payload.Tags,
		CreatedAt: s.now().UTC(),
		Published: payload.IsPublished(),
	}

	if result.Tags == nil {
		result.Tags = []string{}
	}

	if payload.FilenameOriginal != nil {
		result.FilenameOriginal = *payload.FilenameOriginal
	}

	if payload.Width != nil {
		result.Width = *payload.Width
	}

	if payload.Height != nil {
		result.Height = *payload.Height
	}

	return result
}

/*
notifyRevalidation is best effort. The record is already committed, so a
failure here is only logged.
*/
func (s PhotoRecorderService) notifyRevalidation(ctx context.Context, albumSlug string) {
	if s.notifier == nil {
		return
	}

	albumPath := models.Album{Slug: albumSlug}.Path()

	if err := s.notifier.Notify(ctx, albumPath); err != nil {
		revalidationFailuresTotal.Inc()
		slog.Warn("revalidate request failed", "path", albumPath, "error", err)
	}
}
