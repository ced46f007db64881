package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adampresley/photogallery/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCatalogStore struct {
	mu     sync.Mutex
	albums []models.Album
	photos []models.Photo
	err    error
}

func (m *memoryCatalogStore) Albums(ctx context.Context) ([]models.Album, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Album{}, m.albums...), m.err
}

func (m *memoryCatalogStore) Photos(ctx context.Context) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Photo{}, m.photos...), m.err
}

func (m *memoryCatalogStore) AppendPhoto(ctx context.Context, photo models.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.photos = append(m.photos, photo)
	return nil
}

var (
	baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func testCatalogStore() *memoryCatalogStore {
	return &memoryCatalogStore{
		albums: []models.Album{
			{Slug: "winter", Title: "Winter", Order: 2, Published: true},
			{Slug: "trips", Title: "Trips", Order: 1, Published: true},
			{Slug: "drafts", Title: "Drafts", Order: 0, Published: false},
			{Slug: "autumn", Title: "Autumn", Order: 2, Published: true},
		},
		photos: []models.Photo{
			{ID: "b", AlbumSlug: "trips", CFImageID: "img_b", CreatedAt: baseTime, Published: true},
			{ID: "a", AlbumSlug: "trips", CFImageID: "img_a", CreatedAt: baseTime, Published: true},
			{ID: "c", AlbumSlug: "trips", CFImageID: "img_c", CreatedAt: baseTime.Add(time.Hour), Published: true},
			{ID: "d", AlbumSlug: "trips", CFImageID: "img_d", CreatedAt: baseTime.Add(2 * time.Hour), Published: false},
			{ID: "e", AlbumSlug: "winter", CFImageID: "img_e", CreatedAt: baseTime, Published: true},
		},
	}
}

func TestListPublishedAlbums(t *testing.T) {
	service := NewCatalogService(CatalogServiceConfig{Store: testCatalogStore()})

	albums, err := service.ListPublishedAlbums(context.Background())
	require.NoError(t, err)

	slugs := []string{}

	for _, album := range albums {
		slugs = append(slugs, album.Slug)
	}

	assert.Equal(t, []string{"trips", "autumn", "winter"}, slugs)
}

func TestGetAlbumBySlug(t *testing.T) {
	service := NewCatalogService(CatalogServiceConfig{Store: testCatalogStore()})

	album, err := service.GetAlbumBySlug(context.Background(), "trips")
	require.NoError(t, err)
	assert.Equal(t, "Trips", album.Title)

	_, err = service.GetAlbumBySlug(context.Background(), "drafts")
	assert.ErrorIs(t, err, models.ErrAlbumNotFound)

	_, err = service.GetAlbumBySlug(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrAlbumNotFound)
}

func TestListPublishedPhotos(t *testing.T) {
	service := NewCatalogService(CatalogServiceConfig{Store: testCatalogStore()})

	photos, err := service.ListPublishedPhotos(context.Background(), "trips")
	require.NoError(t, err)

	ids := []string{}

	for _, photo := range photos {
		ids = append(ids, photo.ID)
	}

	assert.Equal(t, []string{"c", "a", "b"}, ids)

	photos, err = service.ListPublishedPhotos(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, photos)
}

func TestAlbumExistsIncludesUnpublished(t *testing.T) {
	service := NewCatalogService(CatalogServiceConfig{Store: testCatalogStore()})

	exists, err := service.AlbumExists(context.Background(), "drafts")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = service.AlbumExists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReferencedImageIDsIncludesHiddenPhotos(t *testing.T) {
	service := NewCatalogService(CatalogServiceConfig{Store: testCatalogStore()})

	ids, err := service.ReferencedImageIDs(context.Background())
	require.NoError(t, err)

	assert.Len(t, ids, 5)
	assert.Contains(t, ids, "img_d")
}
