package addons

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-functions/internal/testutil/fixtures"
	"github.com/StricklySoft/stricklysoft-functions/pkg/auth"
	"github.com/StricklySoft/stricklysoft-functions/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// bootstrapJWT runs a bootstrap with the HTTP and JWT add-ons
// registered.
func bootstrapJWT(t *testing.T, descriptor string) (*Registry, error) {
	t.Helper()
	m := NewManager(nil)
	require.NoError(t, m.Register(NewHTTPAddon(nil)))
	require.NoError(t, m.Register(NewJWTAddon(nil)))
	desc, err := config.ParseDescriptor([]byte(descriptor))
	require.NoError(t, err)
	return m.Bootstrap(context.Background(), desc)
}

func TestJWTAddon_LocalIssuer(t *testing.T) {
	t.Parallel()

	reg, err := bootstrapJWT(t, fixtures.TestDescriptorJSON)
	require.NoError(t, err)

	require.Len(t, reg.Issuers(), 1)
	assert.Equal(t, fixtures.TestIssuer, reg.Issuers()[0].Name())

	authenticators := reg.Authenticators()
	require.Len(t, authenticators, 1)
	assert.Equal(t, "jwt", authenticators[0].Name())
	assert.IsType(t, &auth.JWTAuthenticator{}, authenticators[0])
}

func TestJWTAddon_LocalIssuerShortKey(t *testing.T) {
	t.Parallel()

	// Short shared secrets bootstrap fine; the issuer only warns.
	reg, err := bootstrapJWT(t, `{"JWT": {"issuers": [
		{"_type": "LocalJwtIssuer", "issuer": "https://auth.test", "key": "s1"}
	]}}`)
	require.NoError(t, err)
	require.Len(t, reg.Issuers(), 1)
}

func TestJWTAddon_OpenIDIssuer(t *testing.T) {
	t.Parallel()

	reg, err := bootstrapJWT(t, `{
		"JWT": {
			"issuers": [
				{
					"_type": "OpenIDJwtIssuer",
					"issuer": "https://login.example.test",
					"audiences": ["functions"],
					"roles": ["user"],
					"configURL": "https://login.example.test/.well-known/openid-configuration"
				}
			]
		}
	}`)
	require.NoError(t, err)

	require.Len(t, reg.Issuers(), 1)
	assert.IsType(t, &auth.OpenIDIssuer{}, reg.Issuers()[0])
}

func TestJWTAddon_NoIssuersSkipsAuthenticator(t *testing.T) {
	t.Parallel()

	reg, err := bootstrapJWT(t, `{}`)
	require.NoError(t, err)
	assert.Empty(t, reg.Authenticators())
}

func TestJWTAddon_IssuerValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		descriptor string
		wantCode   sserr.Code
		contains   string
	}{
		{
			name: "local issuer missing key",
			descriptor: `{"JWT": {"issuers": [
				{"_type": "LocalJwtIssuer", "issuer": "https://auth.test"}
			]}}`,
			wantCode: sserr.CodeValidation,
			contains: "key",
		},
		{
			name: "local issuer missing issuer",
			descriptor: `{"JWT": {"issuers": [
				{"_type": "LocalJwtIssuer", "key": "0123456789abcdef0123456789abcdef"}
			]}}`,
			wantCode: sserr.CodeValidation,
			contains: "issuer",
		},
		{
			name: "openid issuer missing config url",
			descriptor: `{"JWT": {"issuers": [
				{"_type": "OpenIDJwtIssuer", "issuer": "https://login.example.test"}
			]}}`,
			wantCode: sserr.CodeValidation,
			contains: "configURL",
		},
		{
			name: "unknown issuer type",
			descriptor: `{"JWT": {"issuers": [
				{"_type": "LdapJwtIssuer", "issuer": "https://auth.test"}
			]}}`,
			wantCode: sserr.CodeConfigurationUnknownType,
			contains: "LdapJwtIssuer",
		},
		{
			name:       "issuer missing discriminant",
			descriptor: `{"JWT": {"issuers": [{"issuer": "https://auth.test"}]}}`,
			wantCode:   sserr.CodeValidation,
			contains:   "_type",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := bootstrapJWT(t, tt.descriptor)
			require.Error(t, err)
			assert.True(t, sserr.HasCode(err, tt.wantCode),
				"got code %s", sserr.GetCode(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestJWTAddon_SectionParameterOverridesShared(t *testing.T) {
	t.Parallel()

	reg, err := bootstrapJWT(t, `{
		"HTTP": {
			"parameter": {"_type": "HTTPParameter", "location": "header", "name": "X-Shared"}
		},
		"JWT": {
			"parameter": {"_type": "HTTPParameter", "location": "cookie", "name": "jwt"},
			"issuers": [
				{
					"_type": "LocalJwtIssuer",
					"issuer": "https://auth.test",
					"key": "0123456789abcdef0123456789abcdef"
				}
			]
		}
	}`)
	require.NoError(t, err)
	require.Len(t, reg.Authenticators(), 1)
	// The shared parameter stays available for other consumers.
	assert.Equal(t, "X-Shared", reg.TokenParameter().Name)
}

func TestJWTAddon_RequiresHTTP(t *testing.T) {
	t.Parallel()

	m := NewManager(nil)
	require.NoError(t, m.Register(NewJWTAddon(nil)))

	_, err := m.Bootstrap(context.Background(), config.Descriptor{})
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeConfigurationDependency))
	assert.Contains(t, err.Error(), HTTPAddonName)
}
