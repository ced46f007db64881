package models

// UploadTarget is a one-time, time-limited upload credential issued by the image provider.
type UploadTarget struct {
	UploadURL string `json:"uploadURL"`
	ImageID   string `json:"cf_image_id"`
}

type SignedUploadRequest struct {
	Filename string `json:"filename"`
}

type Revalidation struct {
	Revalidated bool   `json:"revalidated"`
	Path        string `json:"path"`
}
