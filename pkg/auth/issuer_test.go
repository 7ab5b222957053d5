package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// issuerTestDecode decodes a raw token onto a fresh subject and fails the
// test on error.
func issuerTestDecode(t *testing.T, raw string) *DecodedToken {
	t.Helper()
	token, err := Decode(NewSubject(), raw)
	require.NoError(t, err, "failed to decode test token")
	return token
}

func TestLocalIssuerConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     LocalIssuerConfig
		wantErr bool
	}{
		{
			name:    "valid",
			cfg:     LocalIssuerConfig{Name: "iss1", Key: testIssuerKey},
			wantErr: false,
		},
		{
			name:    "missing name",
			cfg:     LocalIssuerConfig{Key: testIssuerKey},
			wantErr: true,
		},
		{
			// Short shared secrets are accepted (and warned about), so
			// minimal descriptors stay constructible.
			name:    "short key",
			cfg:     LocalIssuerConfig{Name: "iss1", Key: "s1"},
			wantErr: false,
		},
		{
			name:    "empty key",
			cfg:     LocalIssuerConfig{Name: "iss1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantErr {
				require.NotNil(t, err)
				assert.Equal(t, sserr.CodeValidation, err.Code)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestLocalIssuerVerify(t *testing.T) {
	t.Parallel()

	issuer, err := NewLocalIssuer(LocalIssuerConfig{
		Name:        "iss1",
		Key:         testIssuerKey,
		Audiences:   []string{"aud1"},
		Assignments: []string{"reader"},
	})
	require.NoError(t, err)
	assert.Equal(t, "iss1", issuer.Name())

	raw := authTestSignHMAC(t, testIssuerKey, jwt.MapClaims{"iss": "iss1", "aud": "aud1"})
	verdict := issuer.Verify(context.Background(), issuerTestDecode(t, raw))

	assert.True(t, verdict.Verified)
	assert.Equal(t, []string{"reader"}, verdict.Assignments.Values())
}

func TestLocalIssuerVerifyShortSecret(t *testing.T) {
	t.Parallel()

	issuer, err := NewLocalIssuer(LocalIssuerConfig{
		Name:        "iss1",
		Key:         "s1",
		Audiences:   []string{"aud1"},
		Assignments: []string{"user"},
	})
	require.NoError(t, err)

	t.Run("matching secret verifies", func(t *testing.T) {
		raw := authTestSignHMAC(t, "s1", jwt.MapClaims{"iss": "iss1", "aud": "aud1"})
		verdict := issuer.Verify(context.Background(), issuerTestDecode(t, raw))
		assert.True(t, verdict.Verified)
		assert.Equal(t, []string{"user"}, verdict.Assignments.Values())
	})

	t.Run("different secret rejects", func(t *testing.T) {
		raw := authTestSignHMAC(t, "s2", jwt.MapClaims{"iss": "iss1", "aud": "aud1"})
		verdict := issuer.Verify(context.Background(), issuerTestDecode(t, raw))
		assert.False(t, verdict.Verified)
	})
}

func TestLocalIssuerVerifyFailures(t *testing.T) {
	t.Parallel()

	const otherKey = "another-32-byte-test-signing-key!"

	tests := []struct {
		name string
		raw  func(t *testing.T) string
	}{
		{
			name: "issuer mismatch",
			raw: func(t *testing.T) string {
				return authTestSignHMAC(t, testIssuerKey, jwt.MapClaims{"iss": "iss2", "aud": "aud1"})
			},
		},
		{
			name: "wrong signing key",
			raw: func(t *testing.T) string {
				return authTestSignHMAC(t, otherKey, jwt.MapClaims{"iss": "iss1", "aud": "aud1"})
			},
		},
		{
			name: "audience mismatch",
			raw: func(t *testing.T) string {
				return authTestSignHMAC(t, testIssuerKey, jwt.MapClaims{"iss": "iss1", "aud": "other"})
			},
		},
		{
			name: "absent audience",
			raw: func(t *testing.T) string {
				return authTestSignHMAC(t, testIssuerKey, jwt.MapClaims{"iss": "iss1"})
			},
		},
		{
			name: "truncated signature",
			raw: func(t *testing.T) string {
				raw := authTestSignHMAC(t, testIssuerKey, jwt.MapClaims{"iss": "iss1", "aud": "aud1"})
				return raw[:len(raw)-4]
			},
		},
	}

	issuer, err := NewLocalIssuer(LocalIssuerConfig{
		Name:        "iss1",
		Key:         testIssuerKey,
		Audiences:   []string{"aud1"},
		Assignments: []string{"reader"},
	})
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, err := Decode(NewSubject(), tt.raw(t))
			require.NoError(t, err)

			// Verification failures are never raised; the verdict is
			// simply negative with no assignments.
			verdict := issuer.Verify(context.Background(), token)
			assert.False(t, verdict.Verified)
			assert.Equal(t, 0, verdict.Assignments.Len())
		})
	}
}

func TestLocalIssuerAudienceList(t *testing.T) {
	t.Parallel()

	issuer, err := NewLocalIssuer(LocalIssuerConfig{
		Name:      "iss1",
		Key:       testIssuerKey,
		Audiences: []string{"aud1", "aud2"},
	})
	require.NoError(t, err)

	// Membership suffices: one shared audience between the token's list
	// and the issuer's list.
	raw := authTestSignHMAC(t, testIssuerKey, jwt.MapClaims{
		"iss": "iss1",
		"aud": []string{"other", "aud2"},
	})
	verdict := issuer.Verify(context.Background(), issuerTestDecode(t, raw))
	assert.True(t, verdict.Verified)
}

func TestLocalIssuerNoAudienceCheck(t *testing.T) {
	t.Parallel()

	// An issuer without configured audiences skips the audience step.
	issuer, err := NewLocalIssuer(LocalIssuerConfig{Name: "iss1", Key: testIssuerKey})
	require.NoError(t, err)

	raw := authTestSignHMAC(t, testIssuerKey, jwt.MapClaims{"iss": "iss1"})
	verdict := issuer.Verify(context.Background(), issuerTestDecode(t, raw))
	assert.True(t, verdict.Verified)
}

func TestLocalIssuerNonce(t *testing.T) {
	t.Parallel()

	newIssuer := func(t *testing.T, source NonceSource) *LocalIssuer {
		t.Helper()
		issuer, err := NewLocalIssuer(LocalIssuerConfig{
			Name:          "iss1",
			Key:           testIssuerKey,
			ValidateNonce: true,
			NonceSource:   source,
		})
		require.NoError(t, err)
		return issuer
	}

	raw := authTestSignHMAC(t, testIssuerKey, jwt.MapClaims{"iss": "iss1", "nonce": "n-123"})
	token := issuerTestDecode(t, raw)

	t.Run("matching nonce", func(t *testing.T) {
		t.Parallel()
		issuer := newIssuer(t, func(context.Context, *DecodedToken) (string, error) {
			return "n-123", nil
		})
		assert.True(t, issuer.Verify(context.Background(), token).Verified)
	})

	t.Run("mismatched nonce", func(t *testing.T) {
		t.Parallel()
		issuer := newIssuer(t, func(context.Context, *DecodedToken) (string, error) {
			return "n-456", nil
		})
		assert.False(t, issuer.Verify(context.Background(), token).Verified)
	})

	t.Run("nonce lookup failure", func(t *testing.T) {
		t.Parallel()
		issuer := newIssuer(t, func(context.Context, *DecodedToken) (string, error) {
			return "", errors.New("session store unavailable")
		})
		assert.False(t, issuer.Verify(context.Background(), token).Verified)
	})

	t.Run("token without nonce", func(t *testing.T) {
		t.Parallel()
		issuer := newIssuer(t, func(context.Context, *DecodedToken) (string, error) {
			return "n-123", nil
		})
		bare := authTestSignHMAC(t, testIssuerKey, jwt.MapClaims{"iss": "iss1"})
		assert.False(t, issuer.Verify(context.Background(), issuerTestDecode(t, bare)).Verified)
	})
}

func TestLocalIssuerNilToken(t *testing.T) {
	t.Parallel()

	issuer, err := NewLocalIssuer(LocalIssuerConfig{Name: "iss1", Key: testIssuerKey})
	require.NoError(t, err)

	verdict := issuer.Verify(context.Background(), nil)
	assert.False(t, verdict.Verified)
}

func TestLocalIssuerIgnoresExpiryDuringSignatureCheck(t *testing.T) {
	t.Parallel()

	// Expiry is the authenticator's concern, checked exactly before the
	// issuers run. The issuer itself only verifies the signature, so an
	// expired but correctly signed token still verifies at this layer.
	issuer, err := NewLocalIssuer(LocalIssuerConfig{Name: "iss1", Key: testIssuerKey})
	require.NoError(t, err)

	raw := authTestSignHMAC(t, testIssuerKey, jwt.MapClaims{
		"iss": "iss1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	verdict := issuer.Verify(context.Background(), issuerTestDecode(t, raw))
	assert.True(t, verdict.Verified)
}
