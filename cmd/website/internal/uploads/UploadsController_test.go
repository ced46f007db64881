package uploads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adampresley/photogallery/pkg/models"
	"github.com/adampresley/photogallery/pkg/services"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	target models.UploadTarget
	err    error
}

func (f fakeBroker) RequestUploadTarget(ctx context.Context, filename string) (models.UploadTarget, error) {
	return f.target, f.err
}

type fakeRecorder struct {
	gotKey     string
	gotPayload models.PhotoPayload
	result     services.RecordResult
	err        error
}

func (f *fakeRecorder) RecordPhoto(ctx context.Context, payload models.PhotoPayload, idempotencyKey string) (services.RecordResult, error) {
	f.gotKey = idempotencyKey
	f.gotPayload = payload
	return f.result, f.err
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	result := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return result
}

func TestSignedUpload(t *testing.T) {
	controller := NewUploadsController(UploadsControllerConfig{
		BrokerService: fakeBroker{target: models.UploadTarget{UploadURL: "https://up.example/x", ImageID: "img_123"}},
	})

	r := httptest.NewRequest(http.MethodPost, "/signed-upload", strings.NewReader(`{"filename":"photo.jpg"}`))
	w := httptest.NewRecorder()

	controller.SignedUpload(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "https://up.example/x", body["uploadURL"])
	assert.Equal(t, "img_123", body["cf_image_id"])
}

func TestSignedUploadErrors(t *testing.T) {
	validationErr := models.NewValidationError()
	validationErr.Add("filename", "String must contain at least 3 character(s)")

	tests := []struct {
		name    string
		err     error
		body    string
		status  int
		message string
	}{
		{name: "validation", err: validationErr, body: `{"filename":"ab"}`, status: http.StatusBadRequest, message: "Invalid payload"},
		{name: "configuration", err: &models.ConfigurationError{Message: "Missing image provider configuration."}, body: `{"filename":"photo.jpg"}`, status: http.StatusInternalServerError, message: "Missing image provider configuration."},
		{name: "upstream", err: &models.UpstreamError{Message: "Image provider request failed", StatusCode: 502, Body: "bad"}, body: `{"filename":"photo.jpg"}`, status: http.StatusBadGateway, message: "Image provider request failed"},
		{name: "malformed json", body: `{"filename":`, status: http.StatusBadRequest, message: "Invalid payload"},
		{name: "wrong type", body: `{"filename":42}`, status: http.StatusBadRequest, message: "Invalid payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller := NewUploadsController(UploadsControllerConfig{BrokerService: fakeBroker{err: tt.err}})

			r := httptest.NewRequest(http.MethodPost, "/signed-upload", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			controller.SignedUpload(w, r)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decodeBody(t, w)["error"])
		})
	}
}

func TestRecordPhotoCreated(t *testing.T) {
	recorder := &fakeRecorder{result: services.RecordResult{PhotoID: "p1"}}
	controller := NewUploadsController(UploadsControllerConfig{RecorderService: recorder})

	r := httptest.NewRequest(http.MethodPost, "/photos", strings.NewReader(`{"album_slug":"trips","cf_image_id":"img_1","alt":"sunset"}`))
	r.Header.Set(IdempotencyKeyHeader, "abc")
	w := httptest.NewRecorder()

	controller.RecordPhoto(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "p1", decodeBody(t, w)["photo_id"])
	assert.Equal(t, "abc", recorder.gotKey)
	assert.Equal(t, "trips", recorder.gotPayload.AlbumSlug)
	assert.Equal(t, "sunset", *recorder.gotPayload.Alt)
	assert.Nil(t, recorder.gotPayload.Published)
}

func TestRecordPhotoReplay(t *testing.T) {
	recorder := &fakeRecorder{result: services.RecordResult{PhotoID: "p1", Replayed: true}}
	controller := NewUploadsController(UploadsControllerConfig{RecorderService: recorder})

	r := httptest.NewRequest(http.MethodPost, "/photos", strings.NewReader(`{"album_slug":"trips","cf_image_id":"img_1"}`))
	w := httptest.NewRecorder()

	controller.RecordPhoto(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecordPhotoValidationDetails(t *testing.T) {
	validationErr := models.NewValidationError()
	validationErr.Add("alt", "String must contain at most 160 character(s)")

	controller := NewUploadsController(UploadsControllerConfig{RecorderService: &fakeRecorder{err: validationErr}})

	r := httptest.NewRequest(http.MethodPost, "/photos", strings.NewReader(`{"album_slug":"trips","cf_image_id":"img_1"}`))
	w := httptest.NewRecorder()

	controller.RecordPhoto(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details, "alt")
}

func TestRecordPhotoBodyTooLarge(t *testing.T) {
	controller := NewUploadsController(UploadsControllerConfig{RecorderService: &fakeRecorder{}})

	big := `{"album_slug":"` + strings.Repeat("a", 2<<20) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/photos", strings.NewReader(big))
	w := httptest.NewRecorder()

	controller.RecordPhoto(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordPhotoFieldTypeDetails(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "exif iso as string", body: `{"album_slug":"trips","cf_image_id":"x","exif":{"iso":"100"}}`, field: "exif.iso"},
		{name: "published as string", body: `{"album_slug":"trips","cf_image_id":"x","published":"yes"}`, field: "published"},
		{name: "width as string", body: `{"album_slug":"trips","cf_image_id":"x","width":"wide"}`, field: "width"},
		{name: "tag as number", body: `{"album_slug":"trips","cf_image_id":"x","tags":["ok",7]}`, field: "tags.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &fakeRecorder{}
			controller := NewUploadsController(UploadsControllerConfig{RecorderService: recorder})

			r := httptest.NewRequest(http.MethodPost, "/photos", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			controller.RecordPhoto(w, r)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, "Invalid payload", body["error"])

			details, ok := body["details"].(map[string]any)
			require.True(t, ok)
			assert.Contains(t, details, tt.field)
			assert.NotContains(t, details, "body")
			assert.Empty(t, recorder.gotPayload.AlbumSlug)
		})
	}
}

func TestRecordPhotoExifMessage(t *testing.T) {
	controller := NewUploadsController(UploadsControllerConfig{RecorderService: &fakeRecorder{}})

	r := httptest.NewRequest(http.MethodPost, "/photos", strings.NewReader(`{"album_slug":"trips","cf_image_id":"x","exif":{"iso":"100"}}`))
	w := httptest.NewRecorder()

	controller.RecordPhoto(w, r)

	details := decodeBody(t, w)["details"].(map[string]any)
	assert.Equal(t, []any{"Expected number, received string"}, details["exif.iso"])
}
