package oidc

import (
	"context"
	"fmt"
	"strings"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/pkg/middleware"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Verifier wraps the OIDC provider and its ID token verifier
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// IssuerURL builds the Keycloak realm issuer from a base URL and realm.
func IssuerURL(baseURL, realm string) string {
	return strings.TrimRight(baseURL, "/") + "/realms/" + realm
}

// NewVerifier discovers the provider at issuer and verifies ID tokens for clientID
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &Verifier{provider: provider, verifier: verifier}, nil
}

// Endpoint is the discovered token/authorize endpoint pair for oauth2.Config.
func (v *Verifier) Endpoint() oauth2.Endpoint {
	return v.provider.Endpoint()
}

// Verify checks the raw ID token signature, issuer, audience and expiry
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
