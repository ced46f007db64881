package uploader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/adampresley/photogallery/pkg/models"
)

const (
	MaxFileSize = 10 * 1024 * 1024
)

var (
	extensionMIMETypes = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".heic": "image/heic",
	}
)

/*
SelectedFile is a handle on the bytes the operator picked. Open is called
once per transfer attempt.
*/
type SelectedFile struct {
	Name     string
	MIMEType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

type FormValues struct {
	AlbumSlug  string
	Alt        string
	PublishNow bool
}

/*
FileFromPath builds a SelectedFile from disk. The MIME type comes from the
extension. Unknown extensions get application/octet-stream and are then
turned away by the selection guard.
*/
func FileFromPath(path string) (SelectedFile, error) {
	info, err := os.Stat(path)

	if err != nil {
		return SelectedFile{}, fmt.Errorf("error reading file '%s': %w", path, err)
	}

	if info.IsDir() {
		return SelectedFile{}, fmt.Errorf("'%s' is a directory", path)
	}

	mimeType, ok := extensionMIMETypes[strings.ToLower(filepath.Ext(path))]

	if !ok {
		mimeType = "application/octet-stream"
	}

	return SelectedFile{
		Name:     filepath.Base(path),
		MIMEType: mimeType,
		Size:     info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// IsSupportedExtension reports whether a file name looks like a JPEG or HEIC image.
func IsSupportedExtension(name string) bool {
	_, ok := extensionMIMETypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ValidateFile is the guard on selecting a file: JPEG or HEIC, at most 10 MiB.
func ValidateFile(file SelectedFile) error {
	validationErr := models.NewValidationError()
	mimeType := strings.ToLower(file.MIMEType)

	if !strings.Contains(mimeType, "jpeg") && !strings.Contains(mimeType, "heic") {
		validationErr.Add("file", "Only JPEG or HEIC files are allowed.")
	}

	if file.Size > MaxFileSize {
		validationErr.Add("file", "File is larger than the 10MB limit.")
	}

	return validationErr.OrNil()
}

// ValidateForm is the guard on submitting: an album is required and alt text is capped.
func ValidateForm(form FormValues) error {
	validationErr := models.NewValidationError()

	if strings.TrimSpace(form.AlbumSlug) == "" {
		validationErr.Add("album_slug", "Please choose an album")
	}

	if utf8.RuneCountInString(form.Alt) > models.MaxAltLength {
		validationErr.Add("alt", fmt.Sprintf("String must contain at most %d character(s)", models.MaxAltLength))
	}

	return validationErr.OrNil()
}
