package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/adampresley/photogallery/pkg/models"
)

/*
CatalogStore is the backing record set for the catalog. Implementations
return every record, published or not. Filtering and ordering happen in
CatalogService.
*/
type CatalogStore interface {
	Albums(ctx context.Context) ([]models.Album, error)
	Photos(ctx context.Context) ([]models.Photo, error)
	AppendPhoto(ctx context.Context, photo models.Photo) error
}

type CatalogServicer interface {
	ListPublishedAlbums(ctx context.Context) ([]models.Album, error)
	GetAlbumBySlug(ctx context.Context, slug string) (models.Album, error)
	ListPublishedPhotos(ctx context.Context, albumSlug string) ([]models.Photo, error)
	AlbumExists(ctx context.Context, slug string) (bool, error)
	AppendPhoto(ctx context.Context, photo models.Photo) error
	ReferencedImageIDs(ctx context.Context) (map[string]struct{}, error)
}

type CatalogServiceConfig struct {
	Store CatalogStore
}

type CatalogService struct {
	store CatalogStore
}

func NewCatalogService(config CatalogServiceConfig) CatalogService {
	return CatalogService{
		store: config.Store,
	}
}

/*
ListPublishedAlbums returns published albums in ascending Order. Albums
sharing an Order value are sorted by slug.
*/
func (s CatalogService) ListPublishedAlbums(ctx context.Context) ([]models.Album, error) {
	var (
		err    error
		albums []models.Album
	)

	if albums, err = s.store.Albums(ctx); err != nil {
		return nil, fmt.Errorf("error loading albums: %w", err)
	}

	result := make([]models.Album, 0, len(albums))

	for _, album := range albums {
		if album.Published {
			result = append(result, album)
		}
	}

	slices.SortStableFunc(result, func(a, b models.Album) int {
		return cmp.Or(
			cmp.Compare(a.Order, b.Order),
			cmp.Compare(a.Slug, b.Slug),
		)
	})

	return result, nil
}

/*
GetAlbumBySlug returns ErrAlbumNotFound when the slug does not exist or
the album is unpublished. Callers cannot tell the two apart.
*/
func (s CatalogService) GetAlbumBySlug(ctx context.Context, slug string) (models.Album, error) {
	var (
		err    error
		albums []models.Album
	)

	if albums, err = s.store.Albums(ctx); err != nil {
		return models.Album{}, fmt.Errorf("error loading albums: %w", err)
	}

	for _, album := range albums {
		if album.Slug == slug && album.Published {
			return album, nil
		}
	}

	return models.Album{}, models.ErrAlbumNotFound
}

/*
ListPublishedPhotos returns the published photos of an album, newest
first. Photos with the same timestamp are ordered by ID.
*/
func (s CatalogService) ListPublishedPhotos(ctx context.Context, albumSlug string) ([]models.Photo, error) {
	var (
		err    error
		photos []models.Photo
	)

	if photos, err = s.store.Photos(ctx); err != nil {
		return nil, fmt.Errorf("error loading photos for album '%s': %w", albumSlug, err)
	}

	result := make([]models.Photo, 0, len(photos))

	for _, photo := range photos {
		if photo.AlbumSlug == albumSlug && photo.Published {
			result = append(result, photo)
		}
	}

	slices.SortStableFunc(result, func(a, b models.Photo) int {
		return cmp.Or(
			b.CreatedAt.Compare(a.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})

	return result, nil
}

// AlbumExists reports whether any album, published or not, has this slug.
func (s CatalogService) AlbumExists(ctx context.Context, slug string) (bool, error) {
	var (
		err    error
		albums []models.Album
	)

	if albums, err = s.store.Albums(ctx); err != nil {
		return false, fmt.Errorf("error loading albums: %w", err)
	}

	return slices.ContainsFunc(albums, func(a models.Album) bool {
		return a.Slug == slug
	}), nil
}

func (s CatalogService) AppendPhoto(ctx context.Context, photo models.Photo) error {
	if err := s.store.AppendPhoto(ctx, photo); err != nil {
		return fmt.Errorf("error appending photo %s to album '%s': %w", photo.ID, photo.AlbumSlug, err)
	}

	return nil
}

/*
ReferencedImageIDs returns the provider image ID of every photo record,
including soft-hidden ones. A hidden photo still owns its image.
*/
func (s CatalogService) ReferencedImageIDs(ctx context.Context) (map[string]struct{}, error) {
	var (
		err    error
		photos []models.Photo
	)

	if photos, err = s.store.Photos(ctx); err != nil {
		return nil, fmt.Errorf("error loading photos: %w", err)
	}

	result := make(map[string]struct{}, len(photos))

	for _, photo := range photos {
		result[photo.CFImageID] = struct{}{}
	}

	return result, nil
}
