// Package oidc verifies the OIDC bearer tokens that Pub/Sub attaches to push deliveries.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// DefaultIssuer is the issuer of Google-signed push tokens.
const DefaultIssuer = "https://accounts.google.com"

var (
	// ErrEmailNotVerified is returned when the token's email claim is not verified.
	ErrEmailNotVerified = errors.New("token email is not verified")
	// ErrUnexpectedServiceAccount is returned when the token was minted for another account.
	ErrUnexpectedServiceAccount = errors.New("token issued to unexpected service account")
)

// PushVerifierConfig holds configuration for push token verification.
type PushVerifierConfig struct {
	Issuer   string
	Audience string
	// ServiceAccount, when set, must match the token's verified email claim.
	ServiceAccount string
	HTTPClient     *http.Client // Optional, defaults to a client with a 30s timeout
}

// PushVerifier validates push bearer tokens against the issuer's published keys.
type PushVerifier struct {
	verifier       *gooidc.IDTokenVerifier
	serviceAccount string
	httpClient     *http.Client
}

type pushClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// NewPushVerifier performs issuer discovery and returns a ready verifier.
func NewPushVerifier(ctx context.Context, cfg PushVerifierConfig) (*PushVerifier, error) {
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, errors.New("audience is required")
	}
	issuer := strings.TrimSuffix(strings.TrimSpace(cfg.Issuer), "/")
	if issuer == "" {
		issuer = DefaultIssuer
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	// Discovery and later JWKS refreshes use httpClient through the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &PushVerifier{
		verifier:       op.Verifier(&gooidc.Config{ClientID: cfg.Audience}),
		serviceAccount: strings.TrimSpace(cfg.ServiceAccount),
		httpClient:     httpClient,
	}, nil
}

// Verify checks signature, issuer, audience and expiry, and returns the token's
// principal (its email, or subject when no email is present).
func (v *PushVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.httpClient)
	tok, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", fmt.Errorf("verify push token: %w", err)
	}

	var claims pushClaims
	if err := tok.Claims(&claims); err != nil {
		return "", fmt.Errorf("decode push token claims: %w", err)
	}

	if v.serviceAccount != "" {
		if !claims.EmailVerified {
			return "", ErrEmailNotVerified
		}
		if !strings.EqualFold(claims.Email, v.serviceAccount) {
			return "", fmt.Errorf("%w: %s", ErrUnexpectedServiceAccount, claims.Email)
		}
	}

	if claims.Email != "" {
		return claims.Email, nil
	}
	return tok.Subject, nil
}
