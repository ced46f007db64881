package models

import (
	"fmt"
	"time"
)

var (
	ErrAlbumNotFound = fmt.Errorf("album not found")
)

type Album struct {
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	Subtitle     *string   `json:"subtitle,omitempty"`
	CoverImageID *string   `json:"cover_image_id,omitempty"`
	Order        int       `json:"order"`
	CreatedAt    time.Time `json:"created_at"`
	Published    bool      `json:"published"`
}

/*
Path is the site path an album is rendered at. Revalidation and the
sitemap both address albums this way.
*/
func (a Album) Path() string {
	return "/" + a.Slug
}
