package services

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

const (
	DefaultDelegatedIdentityHeader = "Cf-Access-Authenticated-User-Email"
)

// CredentialKind names which credential authorized a request.
type CredentialKind string

const (
	CredentialNone              CredentialKind = ""
	CredentialServiceToken      CredentialKind = "service_token"
	CredentialDelegatedIdentity CredentialKind = "delegated_identity"
)

/*
Authorization is the outcome of a capability check. Via is CredentialNone
whenever Authorized is false. Identity holds the gateway-asserted user for
delegated identity, and is empty for the service token.
*/
type Authorization struct {
	Authorized bool
	Via        CredentialKind
	Identity   string
}

type AuthorizationServicer interface {
	Authorize(r *http.Request) Authorization
}

type AuthorizationServiceConfig struct {
	ServiceToken            string
	DelegatedIdentityHeader string
}

/*
AuthorizationService grants access when EITHER the bearer token matches the
configured service token OR the access gateway injected an identity header.
The two paths are independent and neither cross-checks the other. The
identity header is trusted as-is because the gateway already verified the
session.
*/
type AuthorizationService struct {
	serviceToken            string
	delegatedIdentityHeader string
}

func NewAuthorizationService(config AuthorizationServiceConfig) AuthorizationService {
	header := config.DelegatedIdentityHeader

	if header == "" {
		header = DefaultDelegatedIdentityHeader
	}

	return AuthorizationService{
		serviceToken:            config.ServiceToken,
		delegatedIdentityHeader: header,
	}
}

func (s AuthorizationService) Authorize(r *http.Request) Authorization {
	if BearerTokenMatches(r.Header.Get("Authorization"), s.serviceToken) {
		return Authorization{Authorized: true, Via: CredentialServiceToken}
	}

	if identity := strings.TrimSpace(r.Header.Get(s.delegatedIdentityHeader)); identity != "" {
		return Authorization{Authorized: true, Via: CredentialDelegatedIdentity, Identity: identity}
	}

	return Authorization{}
}

/*
BearerTokenMatches compares "Bearer <token>" against the expected secret in
constant time. An empty expected secret never matches.
*/
func BearerTokenMatches(authHeader, expected string) bool {
	if expected == "" {
		return false
	}

	token, ok := strings.CutPrefix(authHeader, "Bearer ")

	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

type authorizationContextKey struct{}

func WithAuthorization(ctx context.Context, auth Authorization) context.Context {
	return context.WithValue(ctx, authorizationContextKey{}, auth)
}

// AuthorizationFromContext returns the zero Authorization when none was stored.
func AuthorizationFromContext(ctx context.Context) Authorization {
	if result, ok := ctx.Value(authorizationContextKey{}).(Authorization); ok {
		return result
	}

	return Authorization{}
}
