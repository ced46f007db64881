package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/adampresley/photogallery/pkg/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
)

type HTTPClientConfig struct {
	BaseURL       string
	APIToken      string
	HTTPClient    *http.Client
	MaxRetries    uint64
	RetryInterval time.Duration
}

/*
APIError is a failed call to the gallery API. Message is the server's error
text, passed through to the operator unchanged.
*/
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
	Details    json.RawMessage
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("Failed to %s (%d).", e.Operation, e.StatusCode)
	}

	return fmt.Sprintf("Failed to %s (%d): %s", e.Operation, e.StatusCode, e.Message)
}

/*
HTTPClient is the APIClient used by the CLI. Credential requests are retried
with backoff because a fresh target is always safe to ask for. A transfer is
only retried when the connection could not be opened at all; once bytes may
have reached the provider the upload URL counts as used.
*/
type HTTPClient struct {
	baseURL       string
	apiToken      string
	httpClient    *http.Client
	maxRetries    uint64
	retryInterval time.Duration

	mu       sync.Mutex
	consumed map[string]struct{}
}

func NewHTTPClient(config HTTPClientConfig) *HTTPClient {
	result := &HTTPClient{
		baseURL:       strings.TrimRight(config.BaseURL, "/"),
		apiToken:      config.APIToken,
		httpClient:    config.HTTPClient,
		maxRetries:    config.MaxRetries,
		retryInterval: config.RetryInterval,
		consumed:      map[string]struct{}{},
	}

	if result.httpClient == nil {
		result.httpClient = &http.Client{}
	}

	if result.retryInterval <= 0 {
		result.retryInterval = 500 * time.Millisecond
	}

	return result
}

func (c *HTTPClient) RequestUploadTarget(ctx context.Context, filename string) (models.UploadTarget, error) {
	var (
		result models.UploadTarget
	)

	body, _ := json.Marshal(models.SignedUploadRequest{Filename: filename})

	operation := func() error {
		status, responseBody, err := c.postJSON(ctx, "/signed-upload", body)

		if err != nil {
			return err
		}

		if status != http.StatusOK {
			apiErr := decodeAPIError("request signed upload URL", status, responseBody)

			if isTransientStatus(status) {
				return apiErr
			}

			return backoff.Permanent(apiErr)
		}

		if err = json.Unmarshal(responseBody, &result); err != nil {
			return backoff.Permanent(fmt.Errorf("error decoding signed upload response: %w", err))
		}

		return nil
	}

	if err := c.retry(ctx, operation); err != nil {
		return models.UploadTarget{}, err
	}

	return result, nil
}

func (c *HTTPClient) TransferBytes(ctx context.Context, target models.UploadTarget, file SelectedFile) error {
	c.mu.Lock()

	if _, used := c.consumed[target.UploadURL]; used {
		c.mu.Unlock()
		return ErrTargetConsumed
	}

	c.mu.Unlock()

	operation := func() error {
		req, err := c.buildTransferRequest(ctx, target, file)

		if err != nil {
			return backoff.Permanent(err)
		}

		err = c.sendTransfer(req)

		if err == nil {
			c.markConsumed(target.UploadURL)
			return nil
		}

		if isConnectFailure(err) && ctx.Err() == nil {
			return err
		}

		c.markConsumed(target.UploadURL)
		return backoff.Permanent(err)
	}

	return c.retry(ctx, operation)
}

func (c *HTTPClient) RecordPhoto(ctx context.Context, payload models.PhotoPayload) (string, error) {
	var (
		err     error
		created models.PhotoCreated
	)

	body, err := json.Marshal(payload)

	if err != nil {
		return "", fmt.Errorf("error encoding photo payload: %w", err)
	}

	status, responseBody, err := c.postJSON(ctx, "/photos", body)

	if err != nil {
		return "", err
	}

	if status != http.StatusCreated && status != http.StatusOK {
		return "", decodeAPIError("save photo metadata", status, responseBody)
	}

	if err = json.Unmarshal(responseBody, &created); err != nil || created.PhotoID == "" {
		return "", fmt.Errorf("photo metadata response did not include a photo_id")
	}

	return created.PhotoID, nil
}

/*
buildTransferRequest reads the file into a multipart body. Failures here
happen before anything is sent, so the upload URL stays usable.
*/
func (c *HTTPClient) buildTransferRequest(ctx context.Context, target models.UploadTarget, file SelectedFile) (*http.Request, error) {
	var (
		err  error
		src  io.ReadCloser
		part io.Writer
		req  *http.Request
		buf  bytes.Buffer
	)

	if src, err = file.Open(); err != nil {
		return nil, fmt.Errorf("error opening '%s': %w", file.Name, err)
	}

	defer src.Close()

	form := multipart.NewWriter(&buf)

	if part, err = form.CreateFormFile("file", file.Name); err != nil {
		return nil, fmt.Errorf("error building upload form: %w", err)
	}

	if _, err = io.Copy(part, src); err != nil {
		return nil, fmt.Errorf("error reading '%s': %w", file.Name, err)
	}

	if err = form.Close(); err != nil {
		return nil, fmt.Errorf("error building upload form: %w", err)
	}

	if req, err = http.NewRequestWithContext(ctx, http.MethodPost, target.UploadURL, &buf); err != nil {
		return nil, fmt.Errorf("error building upload request: %w", err)
	}

	req.Header.Set("Content-Type", form.FormDataContentType())
	return req, nil
}

func (c *HTTPClient) sendTransfer(req *http.Request) error {
	response, err := c.httpClient.Do(req)

	if err != nil {
		return err
	}

	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 1<<20))

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("image upload failed (%d)", response.StatusCode)
	}

	return nil
}

// isTransientStatus covers gateway failures. A plain 500 from the API is a server misconfiguration.
func isTransientStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}

	return false
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body []byte) (int, []byte, error) {
	var (
		err          error
		req          *http.Request
		response     *http.Response
		responseBody []byte
	)

	if req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body)); err != nil {
		return 0, nil, backoff.Permanent(fmt.Errorf("error building request for %s: %w", path, err))
	}

	req.Header.Set("Content-Type", "application/json")

	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	if response, err = c.httpClient.Do(req); err != nil {
		return 0, nil, fmt.Errorf("error calling %s: %w", path, err)
	}

	defer response.Body.Close()

	if responseBody, err = io.ReadAll(io.LimitReader(response.Body, 1<<20)); err != nil {
		return 0, nil, fmt.Errorf("error reading response from %s: %w", path, err)
	}

	return response.StatusCode, responseBody, nil
}

func (c *HTTPClient) retry(ctx context.Context, operation func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx))
}

func (c *HTTPClient) markConsumed(uploadURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumed[uploadURL] = struct{}{}
}

func decodeAPIError(operation string, status int, body []byte) *APIError {
	var payload struct {
		Error   string          `json:"error"`
		Details json.RawMessage `json:"details"`
	}

	result := &APIError{Operation: operation, StatusCode: status}

	if err := json.Unmarshal(body, &payload); err == nil {
		result.Message = payload.Error
		result.Details = payload.Details
	}

	return result
}

// isConnectFailure is true only when no connection was made, so no bytes were sent.
func isConnectFailure(err error) bool {
	var opErr *net.OpError

	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}

	return false
}
