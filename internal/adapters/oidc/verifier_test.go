package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAudience       = "https://relay.example.com/pubsub/push"
	testServiceAccount = "pusher@project.iam.gserviceaccount.com"
	testKeyID          = "test-key"
)

type testIssuer struct {
	server *httptest.Server
	key    *rsa.PrivateKey
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	ti := &testIssuer{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                ti.server.URL,
			"jwks_uri":                              ti.server.URL + "/jwks",
			"authorization_endpoint":                ti.server.URL + "/auth",
			"token_endpoint":                        ti.server.URL + "/token",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     testKeyID,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}}})
	})
	ti.server = httptest.NewServer(mux)
	t.Cleanup(ti.server.Close)
	return ti
}

func (ti *testIssuer) sign(t *testing.T, claims map[string]any) string {
	t.Helper()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: jose.JSONWebKey{Key: ti.key, KeyID: testKeyID}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)

	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	obj, err := signer.Sign(payload)
	require.NoError(t, err)
	raw, err := obj.CompactSerialize()
	require.NoError(t, err)
	return raw
}

func (ti *testIssuer) claims(overrides map[string]any) map[string]any {
	now := time.Now()
	claims := map[string]any{
		"iss":            ti.server.URL,
		"aud":            testAudience,
		"sub":            "1234567890",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
		"email":          testServiceAccount,
		"email_verified": true,
	}
	for k, v := range overrides {
		claims[k] = v
	}
	return claims
}

func newVerifier(t *testing.T, ti *testIssuer, serviceAccount string) *PushVerifier {
	t.Helper()
	v, err := NewPushVerifier(context.Background(), PushVerifierConfig{
		Issuer:         ti.server.URL,
		Audience:       testAudience,
		ServiceAccount: serviceAccount,
		HTTPClient:     ti.server.Client(),
	})
	require.NoError(t, err)
	return v
}

func TestNewPushVerifier_RequiresAudience(t *testing.T) {
	_, err := NewPushVerifier(context.Background(), PushVerifierConfig{Issuer: "https://issuer.example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audience is required")
}

func TestNewPushVerifier_DiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewPushVerifier(context.Background(), PushVerifierConfig{
		Issuer:     srv.URL,
		Audience:   testAudience,
		HTTPClient: srv.Client(),
	})
	require.Error(t, err)
}

func TestPushVerifier_Verify(t *testing.T) {
	ti := newTestIssuer(t)
	v := newVerifier(t, ti, testServiceAccount)

	principal, err := v.Verify(context.Background(), ti.sign(t, ti.claims(nil)))
	require.NoError(t, err)
	assert.Equal(t, testServiceAccount, principal)
}

func TestPushVerifier_SubjectWhenNoEmail(t *testing.T) {
	ti := newTestIssuer(t)
	v := newVerifier(t, ti, "")

	principal, err := v.Verify(context.Background(), ti.sign(t, ti.claims(map[string]any{"email": ""})))
	require.NoError(t, err)
	assert.Equal(t, "1234567890", principal)
}

func TestPushVerifier_Rejects(t *testing.T) {
	ti := newTestIssuer(t)
	v := newVerifier(t, ti, testServiceAccount)

	tests := []struct {
		name      string
		overrides map[string]any
		wantErr   error
	}{
		{name: "wrong audience", overrides: map[string]any{"aud": "https://other.example.com"}},
		{name: "expired", overrides: map[string]any{"exp": time.Now().Add(-time.Hour).Unix()}},
		{name: "wrong issuer", overrides: map[string]any{"iss": "https://evil.example.com"}},
		{
			name:      "unverified email",
			overrides: map[string]any{"email_verified": false},
			wantErr:   ErrEmailNotVerified,
		},
		{
			name:      "other service account",
			overrides: map[string]any{"email": "intruder@project.iam.gserviceaccount.com"},
			wantErr:   ErrUnexpectedServiceAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), ti.sign(t, ti.claims(tt.overrides)))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestPushVerifier_RejectsGarbage(t *testing.T) {
	ti := newTestIssuer(t)
	v := newVerifier(t, ti, "")

	_, err := v.Verify(context.Background(), "not-a-jwt")
	require.Error(t, err)
}
