package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/adampresley/photogallery/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLStore(t *testing.T) SQLCatalogStore {
	t.Helper()

	db, err := ConnectSQLite("file:" + filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)

	require.NoError(t, MigrateDatabase(db))
	require.NoError(t, MigrateDatabase(db))

	return NewSQLCatalogStore(SQLCatalogStoreConfig{DB: db})
}

func TestSQLCatalogStoreSeedAndAppend(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := context.Background()

	subtitle := "Road trips"
	source := &memoryCatalogStore{
		albums: []models.Album{
			{Slug: "trips", Title: "Trips", Subtitle: &subtitle, Order: 1, CreatedAt: baseTime, Published: true},
			{Slug: "drafts", Title: "Drafts", CreatedAt: baseTime, Published: false},
		},
		photos: []models.Photo{
			{ID: "p1", AlbumSlug: "trips", CFImageID: "img_1", Tags: []string{"sea"}, CreatedAt: baseTime, Published: true},
		},
	}

	require.NoError(t, store.SeedFromJSON(ctx, source))

	albums, err := store.Albums(ctx)
	require.NoError(t, err)
	require.Len(t, albums, 2)

	service := NewCatalogService(CatalogServiceConfig{Store: store})

	album, err := service.GetAlbumBySlug(ctx, "trips")
	require.NoError(t, err)
	require.NotNil(t, album.Subtitle)
	assert.Equal(t, "Road trips", *album.Subtitle)
	assert.True(t, album.CreatedAt.Equal(baseTime))

	iso := 200.0
	err = store.AppendPhoto(ctx, models.Photo{
		ID:        "p2",
		AlbumSlug: "trips",
		CFImageID: "img_2",
		Exif:      &models.ExifData{ISO: &iso},
		Tags:      []string{},
		CreatedAt: baseTime.Add(1),
		Published: true,
	})
	require.NoError(t, err)

	photos, err := service.ListPublishedPhotos(ctx, "trips")
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, "p2", photos[0].ID)
	require.NotNil(t, photos[0].Exif)
	assert.Equal(t, 200.0, *photos[0].Exif.ISO)
	assert.Equal(t, []string{"sea"}, photos[1].Tags)

	// A second seed must not duplicate rows.
	require.NoError(t, store.SeedFromJSON(ctx, source))
	albums, err = store.Albums(ctx)
	require.NoError(t, err)
	assert.Len(t, albums, 2)
}

func TestSQLCatalogStoreSeedIsAllOrNothing(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := context.Background()

	source := &memoryCatalogStore{
		albums: []models.Album{
			{Slug: "trips", Title: "Trips", Order: 1, CreatedAt: baseTime, Published: true},
		},
		photos: []models.Photo{
			{ID: "p1", AlbumSlug: "trips", CFImageID: "img_1", CreatedAt: baseTime, Published: true},
			{ID: "p1", AlbumSlug: "trips", CFImageID: "img_2", CreatedAt: baseTime, Published: true},
		},
	}

	require.Error(t, store.SeedFromJSON(ctx, source))

	albums, err := store.Albums(ctx)
	require.NoError(t, err)
	assert.Empty(t, albums)

	photos, err := store.Photos(ctx)
	require.NoError(t, err)
	assert.Empty(t, photos)

	source.photos[1].ID = "p2"
	require.NoError(t, store.SeedFromJSON(ctx, source))

	albums, err = store.Albums(ctx)
	require.NoError(t, err)
	assert.Len(t, albums, 1)

	photos, err = store.Photos(ctx)
	require.NoError(t, err)
	assert.Len(t, photos, 2)
}
