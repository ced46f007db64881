package albums

import (
	"encoding/xml"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/adampresley/photogallery/cmd/website/internal/apiresponses"
	"github.com/adampresley/photogallery/pkg/models"
	"github.com/adampresley/photogallery/pkg/services"
)

type AlbumsHandlers interface {
	ListAlbums(w http.ResponseWriter, r *http.Request)
	Sitemap(w http.ResponseWriter, r *http.Request)
}

type AlbumsControllerConfig struct {
	CatalogService services.CatalogServicer
	SiteBaseURL    string
}

type AlbumsController struct {
	catalogService services.CatalogServicer
	siteBaseURL    string
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
}

func NewAlbumsController(config AlbumsControllerConfig) AlbumsController {
	return AlbumsController{
		catalogService: config.CatalogService,
		siteBaseURL:    strings.TrimRight(config.SiteBaseURL, "/"),
	}
}

/*
GET /albums
*/
func (c AlbumsController) ListAlbums(w http.ResponseWriter, r *http.Request) {
	var (
		err    error
		albums []models.Album
	)

	if albums, err = c.catalogService.ListPublishedAlbums(r.Context()); err != nil {
		apiresponses.WriteError(w, r, err)
		return
	}

	apiresponses.WriteJSON(w, http.StatusOK, albums)
}

/*
GET /sitemap.xml
*/
func (c AlbumsController) Sitemap(w http.ResponseWriter, r *http.Request) {
	var (
		err    error
		albums []models.Album
		b      []byte
	)

	if albums, err = c.catalogService.ListPublishedAlbums(r.Context()); err != nil {
		slog.Error("error listing albums for sitemap", "error", err)
		http.Error(w, "Unexpected server error.", http.StatusInternalServerError)
		return
	}

	urlSet := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []sitemapURL{
			{Loc: c.siteBaseURL + "/", ChangeFreq: "weekly"},
		},
	}

	for _, album := range albums {
		entry := sitemapURL{Loc: c.siteBaseURL + album.Path(), ChangeFreq: "monthly"}

		if !album.CreatedAt.IsZero() {
			entry.LastMod = album.CreatedAt.UTC().Format(time.DateOnly)
		}

		urlSet.URLs = append(urlSet.URLs, entry)
	}

	if b, err = xml.MarshalIndent(urlSet, "", "  "); err != nil {
		slog.Error("error encoding sitemap", "error", err)
		http.Error(w, "Unexpected server error.", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(b)
}
