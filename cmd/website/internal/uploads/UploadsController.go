package uploads

import (
	"log/slog"
	"net/http"

	"github.com/adampresley/photogallery/cmd/website/internal/apiresponses"
	"github.com/adampresley/photogallery/pkg/models"
	"github.com/adampresley/photogallery/pkg/services"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
)

type UploadsHandlers interface {
	SignedUpload(w http.ResponseWriter, r *http.Request)
	RecordPhoto(w http.ResponseWriter, r *http.Request)
}

type UploadsControllerConfig struct {
	BrokerService   services.UploadBrokerServicer
	RecorderService services.PhotoRecorderServicer
}

/*
UploadsController serves the two calls of the upload pipeline. Both routes
sit behind the upload authorization middleware.
*/
type UploadsController struct {
	brokerService   services.UploadBrokerServicer
	recorderService services.PhotoRecorderServicer
}

func NewUploadsController(config UploadsControllerConfig) UploadsController {
	return UploadsController{
		brokerService:   config.BrokerService,
		recorderService: config.RecorderService,
	}
}

/*
POST /signed-upload
*/
func (c UploadsController) SignedUpload(w http.ResponseWriter, r *http.Request) {
	var (
		err     error
		request models.SignedUploadRequest
		target  models.UploadTarget
	)

	if err = apiresponses.DecodeJSON(w, r, &request); err != nil {
		apiresponses.WriteError(w, r, err)
		return
	}

	auth := services.AuthorizationFromContext(r.Context())

	if target, err = c.brokerService.RequestUploadTarget(r.Context(), request.Filename); err != nil {
		apiresponses.WriteError(w, r, err)
		return
	}

	slog.Debug("signed upload issued", "via", auth.Via, "identity", auth.Identity, "imageID", target.ImageID)
	apiresponses.WriteJSON(w, http.StatusOK, target)
}

/*
POST /photos
*/
func (c UploadsController) RecordPhoto(w http.ResponseWriter, r *http.Request) {
	var (
		err     error
		payload models.PhotoPayload
		result  services.RecordResult
	)

	if err = apiresponses.DecodeJSON(w, r, &payload); err != nil {
		apiresponses.WriteError(w, r, err)
		return
	}

	if result, err = c.recorderService.RecordPhoto(r.Context(), payload, r.Header.Get(IdempotencyKeyHeader)); err != nil {
		apiresponses.WriteError(w, r, err)
		return
	}

	status := http.StatusCreated

	if result.Replayed {
		status = http.StatusOK
	}

	apiresponses.WriteJSON(w, status, models.PhotoCreated{PhotoID: result.PhotoID})
}
