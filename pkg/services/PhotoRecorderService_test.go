package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/adampresley/photogallery/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (n *recordingNotifier) Notify(ctx context.Context, sitePath string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, sitePath)
	return n.err
}

func newTestRecorder(store *memoryCatalogStore, notifier RevalidationNotifier) PhotoRecorderService {
	counter := 0

	return NewPhotoRecorderService(PhotoRecorderServiceConfig{
		Catalog:  NewCatalogService(CatalogServiceConfig{Store: store}),
		Notifier: notifier,
		NewID: func() string {
			counter++
			return fmt.Sprintf("photo-%d", counter)
		},
	})
}

func TestRecordPhoto(t *testing.T) {
	store := testCatalogStore()
	notifier := &recordingNotifier{}
	recorder := newTestRecorder(store, notifier)

	result, err := recorder.RecordPhoto(context.Background(), models.PhotoPayload{
		AlbumSlug: "trips",
		CFImageID: "img_new",
	}, "")

	require.NoError(t, err)
	assert.Equal(t, "photo-1", result.PhotoID)
	assert.False(t, result.Replayed)

	last := store.photos[len(store.photos)-1]
	assert.Equal(t, "img_new", last.CFImageID)
	assert.True(t, last.Published)
	assert.NotNil(t, last.Tags)
	assert.False(t, last.CreatedAt.IsZero())
	assert.Equal(t, []string{"/trips"}, notifier.paths)
}

func TestRecordPhotoSameImageTwiceCreatesTwoRecords(t *testing.T) {
	store := testCatalogStore()
	recorder := newTestRecorder(store, nil)
	payload := models.PhotoPayload{AlbumSlug: "trips", CFImageID: "img_new"}

	first, err := recorder.RecordPhoto(context.Background(), payload, "")
	require.NoError(t, err)
	second, err := recorder.RecordPhoto(context.Background(), payload, "")
	require.NoError(t, err)

	assert.NotEqual(t, first.PhotoID, second.PhotoID)
	assert.Len(t, store.photos, 7)
}

func TestRecordPhotoIdempotencyKeyReplays(t *testing.T) {
	store := testCatalogStore()
	recorder := newTestRecorder(store, nil)
	payload := models.PhotoPayload{AlbumSlug: "trips", CFImageID: "img_new"}

	first, err := recorder.RecordPhoto(context.Background(), payload, "key-1")
	require.NoError(t, err)
	second, err := recorder.RecordPhoto(context.Background(), payload, "key-1")
	require.NoError(t, err)

	assert.Equal(t, first.PhotoID, second.PhotoID)
	assert.True(t, second.Replayed)
	assert.Len(t, store.photos, 6)
}

func TestRecordPhotoAltLength(t *testing.T) {
	store := testCatalogStore()
	recorder := newTestRecorder(store, nil)

	ok := strings.Repeat("a", 160)
	_, err := recorder.RecordPhoto(context.Background(), models.PhotoPayload{AlbumSlug: "trips", CFImageID: "img_1", Alt: &ok}, "")
	require.NoError(t, err)

	tooLong := strings.Repeat("a", 161)
	_, err = recorder.RecordPhoto(context.Background(), models.PhotoPayload{AlbumSlug: "trips", CFImageID: "img_1", Alt: &tooLong}, "")

	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, []string{"String must contain at most 160 character(s)"}, validationErr.Fields["alt"])
}

func TestRecordPhotoValidation(t *testing.T) {
	zero := 0

	tests := []struct {
		name    string
		payload models.PhotoPayload
		field   string
	}{
		{name: "missing album", payload: models.PhotoPayload{CFImageID: "img_1"}, field: "album_slug"},
		{name: "unknown album", payload: models.PhotoPayload{AlbumSlug: "nope", CFImageID: "img_1"}, field: "album_slug"},
		{name: "missing image id", payload: models.PhotoPayload{AlbumSlug: "trips"}, field: "cf_image_id"},
		{name: "zero width", payload: models.PhotoPayload{AlbumSlug: "trips", CFImageID: "img_1", Width: &zero}, field: "width"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testCatalogStore()
			recorder := newTestRecorder(store, nil)

			_, err := recorder.RecordPhoto(context.Background(), tt.payload, "")

			var validationErr *models.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Contains(t, validationErr.Fields, tt.field)
			assert.Len(t, store.photos, 5)
		})
	}
}

func TestRecordPhotoNotifierFailureIsSwallowed(t *testing.T) {
	store := testCatalogStore()
	recorder := newTestRecorder(store, &recordingNotifier{err: errors.New("site down")})

	result, err := recorder.RecordPhoto(context.Background(), models.PhotoPayload{AlbumSlug: "trips", CFImageID: "img_1"}, "")

	require.NoError(t, err)
	assert.NotEmpty(t, result.PhotoID)
}

func TestRecordPhotoUnpublished(t *testing.T) {
	store := testCatalogStore()
	recorder := newTestRecorder(store, nil)
	published := false

	result, err := recorder.RecordPhoto(context.Background(), models.PhotoPayload{AlbumSlug: "trips", CFImageID: "img_1", Published: &published}, "")
	require.NoError(t, err)

	photos, err := NewCatalogService(CatalogServiceConfig{Store: store}).ListPublishedPhotos(context.Background(), "trips")
	require.NoError(t, err)

	for _, photo := range photos {
		assert.NotEqual(t, result.PhotoID, photo.ID)
	}
}

func TestRecordPhotoStoreFailure(t *testing.T) {
	store := testCatalogStore()
	recorder := newTestRecorder(store, nil)

	store.err = nil
	_, err := recorder.RecordPhoto(context.Background(), models.PhotoPayload{AlbumSlug: "trips", CFImageID: "img_1"}, "")
	require.NoError(t, err)

	store.err = errors.New("disk full")
	_, err = recorder.RecordPhoto(context.Background(), models.PhotoPayload{AlbumSlug: "trips", CFImageID: "img_1"}, "")
	assert.Error(t, err)
}
