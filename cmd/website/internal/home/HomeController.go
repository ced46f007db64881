package home

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/photogallery/cmd/website/internal/viewmodels"
	"github.com/adampresley/photogallery/pkg/models"
	"github.com/adampresley/photogallery/pkg/services"
)

const (
	defaultAltText = "Photo preview"
	imageVariant   = "public"
)

type HomeHandlers interface {
	HomePage(w http.ResponseWriter, r *http.Request)
	AlbumPage(w http.ResponseWriter, r *http.Request)
}

type HomeControllerConfig struct {
	CatalogService      services.CatalogServicer
	DeliveryBaseURL     string
	DeliveryAccountHash string
	Renderer            rendering.TemplateRenderer
}

type HomeController struct {
	catalogService      services.CatalogServicer
	deliveryBaseURL     string
	deliveryAccountHash string
	renderer            rendering.TemplateRenderer
}

func NewHomeController(config HomeControllerConfig) HomeController {
	return HomeController{
		catalogService:      config.CatalogService,
		deliveryBaseURL:     strings.TrimRight(config.DeliveryBaseURL, "/"),
		deliveryAccountHash: config.DeliveryAccountHash,
		renderer:            config.Renderer,
	}
}

/*
GET /
*/
func (c HomeController) HomePage(w http.ResponseWriter, r *http.Request) {
	pageName := "pages/home"

	viewData := viewmodels.HomePage{
		BaseViewModel: viewmodels.BaseViewModel{
			Title:              "Albums",
			IsHtmx:             httphelpers.IsHtmx(r),
			JavascriptIncludes: []rendering.JavascriptInclude{},
		},
		Albums: []viewmodels.HomePageAlbum{},
	}

	albums, err := c.catalogService.ListPublishedAlbums(r.Context())

	if err != nil {
		slog.Error("error listing published albums", "error", err)
		viewData.IsError = true
		viewData.Message = "There was a problem getting albums for this page."

		c.renderer.Render(pageName, viewData, w)
		return
	}

	for _, album := range albums {
		item := viewmodels.HomePageAlbum{
			Path:     album.Path(),
			Title:    album.Title,
			Subtitle: "New story coming soon.",
		}

		if album.Subtitle != nil {
			item.Subtitle = *album.Subtitle
		}

		if album.CoverImageID != nil {
			item.CoverURL = c.imageURL(*album.CoverImageID)
		}

		viewData.Albums = append(viewData.Albums, item)
	}

	c.renderer.Render(pageName, viewData, w)
}

/*
GET /{album}
*/
func (c HomeController) AlbumPage(w http.ResponseWriter, r *http.Request) {
	var (
		err    error
		album  models.Album
		photos []models.Photo
	)

	pageName := "pages/album"
	slug := r.PathValue("album")

	viewData := viewmodels.AlbumPage{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx:             httphelpers.IsHtmx(r),
			JavascriptIncludes: []rendering.JavascriptInclude{},
		},
		Photos: []viewmodels.AlbumPagePhoto{},
	}

	if album, err = c.catalogService.GetAlbumBySlug(r.Context(), slug); err != nil {
		if errors.Is(err, models.ErrAlbumNotFound) {
			c.notFound(w)
			return
		}

		slog.Error("error loading album", "slug", slug, "error", err)
		viewData.IsError = true
		viewData.Message = "There was a problem getting this album."

		c.renderer.Render(pageName, viewData, w)
		return
	}

	viewData.Title = album.Title
	viewData.AlbumTitle = album.Title

	if album.Subtitle != nil {
		viewData.AlbumSubtitle = *album.Subtitle
		viewData.Description = *album.Subtitle
	}

	if photos, err = c.catalogService.ListPublishedPhotos(r.Context(), album.Slug); err != nil {
		slog.Error("error listing photos for album", "slug", slug, "error", err)
		viewData.IsError = true
		viewData.Message = "There was a problem getting photos for this album."

		c.renderer.Render(pageName, viewData, w)
		return
	}

	for _, photo := range photos {
		alt := defaultAltText

		if photo.Alt != nil && *photo.Alt != "" {
			alt = *photo.Alt
		}

		viewData.Photos = append(viewData.Photos, viewmodels.AlbumPagePhoto{
			ID:     photo.ID,
			URL:    c.imageURL(photo.CFImageID),
			Alt:    alt,
			Width:  photo.Width,
			Height: photo.Height,
		})
	}

	c.renderer.Render(pageName, viewData, w)
}

func (c HomeController) notFound(w http.ResponseWriter) {
	viewData := viewmodels.BaseViewModel{
		Title: "Page not found",
	}

	w.WriteHeader(http.StatusNotFound)
	c.renderer.Render("pages/not-found", viewData, w)
}

func (c HomeController) imageURL(imageID string) string {
	parts := []string{c.deliveryBaseURL}

	if c.deliveryAccountHash != "" {
		parts = append(parts, c.deliveryAccountHash)
	}

	return strings.Join(append(parts, imageID, imageVariant), "/")
}
