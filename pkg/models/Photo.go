package models

import (
	"time"
)

const (
	MaxAltLength = 160
)

type Photo struct {
	ID               string    `json:"id"`
	AlbumSlug        string    `json:"album_slug"`
	FilenameOriginal string    `json:"filename_original"`
	CFImageID        string    `json:"cf_image_id"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	Alt              *string   `json:"alt,omitempty"`
	Exif             *ExifData `json:"exif,omitempty"`
	Tags             []string  `json:"tags"`
	CreatedAt        time.Time `json:"created_at"`
	Published        bool      `json:"published"`
}

// ExifData is capture metadata. Every field is independently optional.
type ExifData struct {
	Make         *string  `json:"make,omitempty"`
	Model        *string  `json:"model,omitempty"`
	Lens         *string  `json:"lens,omitempty"`
	ISO          *float64 `json:"iso,omitempty"`
	FNumber      *float64 `json:"fnumber,omitempty"`
	ExposureTime *string  `json:"exposure_time,omitempty"`
	FocalLength  *float64 `json:"focal_length,omitempty"`
	DateOriginal *string  `json:"date_original,omitempty"`
	GPSLat       *float64 `json:"gps_lat,omitempty"`
	GPSLon       *float64 `json:"gps_lon,omitempty"`
}

/*
PhotoPayload is the body accepted by POST /photos. Published is a pointer
so an absent value can default to true.
*/
type PhotoPayload struct {
	AlbumSlug        string    `json:"album_slug"`
	CFImageID        string    `json:"cf_image_id"`
	Alt              *string   `json:"alt,omitempty"`
	Exif             *ExifData `json:"exif,omitempty"`
	Width            *int      `json:"width,omitempty"`
	Height           *int      `json:"height,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	FilenameOriginal *string   `json:"filename_original,omitempty"`
	Published        *bool     `json:"published,omitempty"`
}

func (p PhotoPayload) IsPublished() bool {
	if p.Published == nil {
		return true
	}

	return *p.Published
}

type PhotoCreated struct {
	PhotoID string `json:"photo_id"`
}
