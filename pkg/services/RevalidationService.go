package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/adampresley/photogallery/pkg/models"
)

type RevalidationServicer interface {
	Acknowledge(authHeader, rawPath string) (models.Revalidation, error)
}

type RevalidationNotifier interface {
	Notify(ctx context.Context, sitePath string) error
}

type RevalidationServiceConfig struct {
	Token       string
	SiteBaseURL string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

/*
RevalidationService is the hook that asks for statically rendered pages to
be refreshed. It only acknowledges; the rebuild itself happens on the next
deploy of the hosting platform.
*/
type RevalidationService struct {
	token       string
	siteBaseURL string
	httpClient  *http.Client
	timeout     time.Duration
}

func NewRevalidationService(config RevalidationServiceConfig) RevalidationService {
	result := RevalidationService{
		token:       config.Token,
		siteBaseURL: strings.TrimRight(config.SiteBaseURL, "/"),
		httpClient:  config.HTTPClient,
		timeout:     config.Timeout,
	}

	if result.httpClient == nil {
		result.httpClient = &http.Client{}
	}

	if result.timeout <= 0 {
		result.timeout = 10 * time.Second
	}

	return result
}

func (s RevalidationService) Acknowledge(authHeader, rawPath string) (models.Revalidation, error) {
	if !BearerTokenMatches(authHeader, s.token) {
		return models.Revalidation{}, models.ErrUnauthorized
	}

	normalized := NormalizeSitePath(rawPath)
	slog.Info("revalidate requested", "path", normalized)

	return models.Revalidation{
		Revalidated: true,
		Path:        normalized,
	}, nil
}

// Notify calls the revalidate hook of the site for sitePath.
func (s RevalidationService) Notify(ctx context.Context, sitePath string) error {
	var (
		err      error
		req      *http.Request
		response *http.Response
	)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/revalidate?path=%s", s.siteBaseURL, url.QueryEscape(NormalizeSitePath(sitePath)))

	if req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil); err != nil {
		return fmt.Errorf("error building revalidate request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.token)

	if response, err = s.httpClient.Do(req); err != nil {
		return fmt.Errorf("error calling revalidate endpoint: %w", err)
	}

	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("revalidate endpoint returned %s", response.Status)
	}

	return nil
}

// NormalizeSitePath turns user input into a clean absolute site path. Empty input means "/".
func NormalizeSitePath(p string) string {
	p = strings.TrimSpace(p)

	if p == "" {
		return "/"
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return path.Clean(p)
}
