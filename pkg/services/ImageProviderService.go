package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adampresley/photogallery/pkg/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
)

const (
	DefaultProviderBaseURL = "https://api.cloudflare.com/client/v4"
	maxProviderBodyBytes   = 1 << 20
)

type ImageProviderServicer interface {
	Configured() bool
	CreateDirectUpload(ctx context.Context, filename string) (models.UploadTarget, error)
	ListImages(ctx context.Context, continuationToken string) (ImagePage, error)
	DeleteImage(ctx context.Context, imageID string) error
}

type ImageProviderServiceConfig struct {
	AccountID     string
	APIToken      string
	BaseURL       string
	HTTPClient    *http.Client
	MaxRetries    uint64
	RetryInterval time.Duration
	Timeout       time.Duration
}

// ProviderImage is one entry of the provider's image listing.
type ProviderImage struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Uploaded time.Time `json:"uploaded"`
	Draft    bool      `json:"draft"`
}

type ImagePage struct {
	Images            []ProviderImage
	ContinuationToken string
}

type providerEnvelope[T any] struct {
	Success bool `json:"success"`
	Result  *T   `json:"result"`
}

type directUploadResult struct {
	ID        string `json:"id"`
	UploadURL string `json:"uploadURL"`
}

type listImagesResult struct {
	Images            []ProviderImage `json:"images"`
	ContinuationToken string          `json:"continuation_token"`
}

/*
ImageProviderService talks to the Cloudflare Images API. Calls that fail with
a transport error, 429, or 5xx are retried with exponential backoff up to
MaxRetries times. Every attempt is bounded by Timeout.
*/
type ImageProviderService struct {
	accountID     string
	apiToken      string
	baseURL       string
	httpClient    *http.Client
	maxRetries    uint64
	retryInterval time.Duration
	timeout       time.Duration
}

func NewImageProviderService(config ImageProviderServiceConfig) ImageProviderService {
	result := ImageProviderService{
		accountID:     config.AccountID,
		apiToken:      config.APIToken,
		baseURL:       strings.TrimRight(config.BaseURL, "/"),
		httpClient:    config.HTTPClient,
		maxRetries:    config.MaxRetries,
		retryInterval: config.RetryInterval,
		timeout:       config.Timeout,
	}

	if result.baseURL == "" {
		result.baseURL = DefaultProviderBaseURL
	}

	if result.httpClient == nil {
		result.httpClient = &http.Client{}
	}

	if result.retryInterval <= 0 {
		result.retryInterval = 500 * time.Millisecond
	}

	if result.timeout <= 0 {
		result.timeout = 30 * time.Second
	}

	return result
}

// Configured reports whether account credentials are present.
func (s ImageProviderService) Configured() bool {
	return s.accountID != "" && s.apiToken != ""
}

func (s ImageProviderService) CreateDirectUpload(ctx context.Context, filename string) (models.UploadTarget, error) {
	var (
		err      error
		body     []byte
		envelope providerEnvelope[directUploadResult]
	)

	metadata, _ := json.Marshal(map[string]string{"filename": filename})
	endpoint := s.accountURL("images", "v2", "direct_upload")

	start := time.Now()
	body, err = s.do(ctx, func(ctx context.Context) (*http.Request, error) {
		var buf bytes.Buffer
		form := multipart.NewWriter(&buf)

		_ = form.WriteField("metadata", string(metadata))
		_ = form.WriteField("requireSignedURLs", "false")

		if err := form.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)

		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", form.FormDataContentType())
		return req, nil
	})
	providerRequestDuration.WithLabelValues("direct_upload", outcomeLabel(err)).Observe(time.Since(start).Seconds())

	if err != nil {
		return models.UploadTarget{}, err
	}

	if err = json.Unmarshal(body, &envelope); err != nil || envelope.Result == nil ||
		envelope.Result.UploadURL == "" || envelope.Result.ID == "" {
		return models.UploadTarget{}, &models.UpstreamError{
			Message:    "Incomplete response from image provider.",
			StatusCode: http.StatusOK,
			Body:       string(body),
		}
	}

	return models.UploadTarget{
		UploadURL: envelope.Result.UploadURL,
		ImageID:   envelope.Result.ID,
	}, nil
}

func (s ImageProviderService) ListImages(ctx context.Context, continuationToken string) (ImagePage, error) {
	var (
		err      error
		body     []byte
		envelope providerEnvelope[listImagesResult]
	)

	query := url.Values{}
	query.Set("per_page", "1000")

	if continuationToken != "" {
		query.Set("continuation_token", continuationToken)
	}

	endpoint := s.accountURL("images", "v2") + "?" + query.Encode()

	start := time.Now()
	body, err = s.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	providerRequestDuration.WithLabelValues("list_images", outcomeLabel(err)).Observe(time.Since(start).Seconds())

	if err != nil {
		return ImagePage{}, err
	}

	if err = json.Unmarshal(body, &envelope); err != nil || envelope.Result == nil {
		return ImagePage{}, &models.UpstreamError{
			Message:    "Incomplete image listing from image provider.",
			StatusCode: http.StatusOK,
			Body:       string(body),
		}
	}

	return ImagePage{
		Images:            envelope.Result.Images,
		ContinuationToken: envelope.Result.ContinuationToken,
	}, nil
}

func (s ImageProviderService) DeleteImage(ctx context.Context, imageID string) error {
	endpoint := s.accountURL("images", "v1", url.PathEscape(imageID))

	start := time.Now()
	_, err := s.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	})
	providerRequestDuration.WithLabelValues("delete_image", outcomeLabel(err)).Observe(time.Since(start).Seconds())

	return err
}

func (s ImageProviderService) accountURL(parts ...string) string {
	return s.baseURL + "/accounts/" + url.PathEscape(s.accountID) + "/" + strings.Join(parts, "/")
}

/*
do sends the request built by newRequest, retrying transient failures. The
builder is called once per attempt so request bodies are never reused.
*/
func (s ImageProviderService) do(ctx context.Context, newRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var (
		body []byte
	)

	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		req, err := newRequest(attemptCtx)

		if err != nil {
			return backoff.Permanent(fmt.Errorf("error building image provider request: %w", err))
		}

		req.Header.Set("Authorization", "Bearer "+s.apiToken)
		response, err := s.httpClient.Do(req)

		if err != nil {
			upstreamErr := &models.UpstreamError{Message: fmt.Sprintf("Image provider request failed: %s", err.Error())}

			if ctx.Err() != nil {
				return backoff.Permanent(upstreamErr)
			}

			return upstreamErr
		}

		defer response.Body.Close()

		if body, err = io.ReadAll(io.LimitReader(response.Body, maxProviderBodyBytes)); err != nil {
			return &models.UpstreamError{
				Message:    fmt.Sprintf("Error reading image provider response: %s", err.Error()),
				StatusCode: response.StatusCode,
			}
		}

		if response.StatusCode >= 200 && response.StatusCode < 300 {
			return nil
		}

		upstreamErr := &models.UpstreamError{
			Message:    "Image provider request failed",
			StatusCode: response.StatusCode,
			Body:       string(body),
		}

		if isRetryableStatus(response.StatusCode) {
			return upstreamErr
		}

		return backoff.Permanent(upstreamErr)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryInterval

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, s.maxRetries), ctx))

	if err != nil {
		var upstreamErr *models.UpstreamError

		if !errors.As(err, &upstreamErr) && ctx.Err() != nil {
			return nil, &models.UpstreamError{Message: fmt.Sprintf("Image provider request cancelled: %s", ctx.Err().Error())}
		}

		return nil, err
	}

	return body, nil
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
