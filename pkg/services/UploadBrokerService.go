package services

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/adampresley/photogallery/pkg/models"
)

const (
	MinFilenameLength = 3
)

type UploadBrokerServicer interface {
	RequestUploadTarget(ctx context.Context, filename string) (models.UploadTarget, error)
}

type UploadBrokerServiceConfig struct {
	Provider ImageProviderServicer
}

/*
UploadBrokerService hands out one-time upload targets. Callers are
authorized before they get here.
*/
type UploadBrokerService struct {
	provider ImageProviderServicer
}

func NewUploadBrokerService(config UploadBrokerServiceConfig) UploadBrokerService {
	return UploadBrokerService{
		provider: config.Provider,
	}
}

func (s UploadBrokerService) RequestUploadTarget(ctx context.Context, filename string) (models.UploadTarget, error) {
	var (
		err    error
		target models.UploadTarget
	)

	validationErr := models.NewValidationError()

	if utf8.RuneCountInString(filename) < MinFilenameLength {
		validationErr.Add("filename", "String must contain at least 3 character(s)")
	}

	if err = validationErr.OrNil(); err != nil {
		return target, err
	}

	if !s.provider.Configured() {
		return target, &models.ConfigurationError{Message: "Missing image provider configuration."}
	}

	if target, err = s.provider.CreateDirectUpload(ctx, filename); err != nil {
		slog.Error("error requesting direct upload target", "filename", filename, "error", err)
		return models.UploadTarget{}, err
	}

	uploadTargetsIssuedTotal.Inc()
	slog.Info("issued upload target", "filename", filename, "imageID", target.ImageID)

	return target, nil
}
