package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adampresley/photogallery/pkg/services"
	"github.com/stretchr/testify/assert"
)

func TestUploadAuthMiddleware(t *testing.T) {
	authService := services.NewAuthorizationService(services.AuthorizationServiceConfig{ServiceToken: "secret"})

	var seen services.Authorization

	handler := newUploadAuthMiddleware(authService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = services.AuthorizationFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodPost, "/photos", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r = httptest.NewRequest(http.MethodPost, "/photos", nil)
	r.Header.Set(services.DefaultDelegatedIdentityHeader, "me@example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, services.CredentialDelegatedIdentity, seen.Via)
	assert.Equal(t, "me@example.com", seen.Identity)
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	tests := []struct {
		name            string
		deliveryBaseURL string
		expectedImgSrc  string
	}{
		{name: "default provider", deliveryBaseURL: "https://imagedelivery.net", expectedImgSrc: "img-src 'self' data: https://imagedelivery.net;"},
		{name: "custom delivery domain", deliveryBaseURL: "https://images.example.com/cdn-cgi/imagedelivery", expectedImgSrc: "img-src 'self' data: https://images.example.com;"},
		{name: "unset", deliveryBaseURL: "", expectedImgSrc: "img-src 'self' data: https://imagedelivery.net;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newSecurityHeadersMiddleware(tt.deliveryBaseURL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
			assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
			assert.Contains(t, w.Header().Get("Content-Security-Policy"), tt.expectedImgSrc)
		})
	}
}
