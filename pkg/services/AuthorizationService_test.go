package services

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		headers  map[string]string
		expected Authorization
	}{
		{
			name:     "service token",
			token:    "secret",
			headers:  map[string]string{"Authorization": "Bearer secret"},
			expected: Authorization{Authorized: true, Via: CredentialServiceToken},
		},
		{
			name:     "wrong token",
			token:    "secret",
			headers:  map[string]string{"Authorization": "Bearer nope"},
			expected: Authorization{},
		},
		{
			name:     "missing bearer prefix",
			token:    "secret",
			headers:  map[string]string{"Authorization": "secret"},
			expected: Authorization{},
		},
		{
			name:     "delegated identity",
			token:    "secret",
			headers:  map[string]string{DefaultDelegatedIdentityHeader: "me@example.com"},
			expected: Authorization{Authorized: true, Via: CredentialDelegatedIdentity, Identity: "me@example.com"},
		},
		{
			name:  "delegated identity with wrong token",
			token: "secret",
			headers: map[string]string{
				"Authorization":                "Bearer nope",
				DefaultDelegatedIdentityHeader: "me@example.com",
			},
			expected: Authorization{Authorized: true, Via: CredentialDelegatedIdentity, Identity: "me@example.com"},
		},
		{
			name:     "no token configured",
			token:    "",
			headers:  map[string]string{"Authorization": "Bearer "},
			expected: Authorization{},
		},
		{
			name:     "nothing presented",
			token:    "secret",
			headers:  map[string]string{},
			expected: Authorization{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewAuthorizationService(AuthorizationServiceConfig{ServiceToken: tt.token})
			r := httptest.NewRequest("POST", "/photos", nil)

			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			assert.Equal(t, tt.expected, service.Authorize(r))
		})
	}
}

func TestAuthorizeCustomIdentityHeader(t *testing.T) {
	service := NewAuthorizationService(AuthorizationServiceConfig{DelegatedIdentityHeader: "X-Forwarded-User"})

	r := httptest.NewRequest("POST", "/photos", nil)
	r.Header.Set(DefaultDelegatedIdentityHeader, "me@example.com")
	assert.False(t, service.Authorize(r).Authorized)

	r.Header.Set("X-Forwarded-User", "me@example.com")
	assert.True(t, service.Authorize(r).Authorized)
}
