package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testKeys = `
		"encryptionKey": "0123456789abcdef0123456789abcdef",
		"signingKey": "fedcba9876543210fedcba9876543210"`

func TestParseMinimalConfig(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"frontend": {
			"baseURL": "https://vet.example.com",` + testKeys + `
		},
		"backend": {
			"baseURL": "https://api.vet.example.com",
			"timeout": "20s"
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "https://vet.example.com", cfg.Frontend.BaseURL)
	assert.Equal(t, ":8080", cfg.Frontend.Addr)
	assert.Equal(t, 20*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, StorageKindMemory, cfg.Storage.Kind)
	assert.Nil(t, cfg.Provider)
}

func TestParseBadTimeout(t *testing.T) {
	_, err := Parse([]byte(`{
		"frontend": {
			"baseURL": "https://vet.example.com",` + testKeys + `
		},
		"backend": {
			"baseURL": "https://api.vet.example.com",
			"timeout": "soon"
		}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestParseEnvReference(t *testing.T) {
	t.Setenv("TEST_PROVIDER_CLIENT_ID", "client-abc-123")
	t.Setenv("TEST_PROVIDER_CLIENT_SECRET", "'quoted-secret'")

	cfg, err := Parse([]byte(`{
		"frontend": {
			"baseURL": "https://vet.example.com",` + testKeys + `
		},
		"backend": {
			"baseURL": "https://api.vet.example.com"
		},
		"provider": {
			"domain": "vet.eu.auth0.com",
			"clientId": {"$env": "TEST_PROVIDER_CLIENT_ID"},
			"clientSecret": {"$env": "TEST_PROVIDER_CLIENT_SECRET"},
			"redirectUri": "https://vet.example.com/auth/provider/callback"
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, Secret("client-abc-123"), cfg.Provider.ClientID)
	// Surrounding quotes are stripped
	assert.Equal(t, Secret("quoted-secret"), cfg.Provider.ClientSecret)
}

func TestParseEnvReferenceMissing(t *testing.T) {
	_, err := Parse([]byte(`{
		"frontend": {
			"baseURL": "https://vet.example.com",
			"encryptionKey": {"$env": "DEFINITELY_NOT_SET_VETFRONT"},
			"signingKey": "fedcba9876543210fedcba9876543210"
		},
		"backend": {"baseURL": "https://api.vet.example.com"}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFINITELY_NOT_SET_VETFRONT")
}

func TestProviderDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"frontend": {
			"baseURL": "https://vet.example.com",` + testKeys + `
		},
		"backend": {"baseURL": "https://api.vet.example.com"},
		"provider": {
			"domain": "vet.eu.auth0.com",
			"clientId": "abc",
			"redirectUri": "https://vet.example.com/auth/provider/callback"
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "token id_token", cfg.Provider.ResponseType)
	assert.Equal(t, []string{"openid", "profile", "email"}, cfg.Provider.Scopes)
}

func TestAdminPasswordHashedAtLoad(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"frontend": {
			"baseURL": "https://vet.example.com",` + testKeys + `
		},
		"backend": {"baseURL": "https://api.vet.example.com"},
		"admin": {
			"enabled": true,
			"username": "ops",
			"password": "hunter2hunter2"
		}
	}`))
	require.NoError(t, err)
	require.NotNil(t, cfg.Admin)

	// Raw password must not survive load, only a bcrypt hash
	assert.NotEqual(t, Secret("hunter2hunter2"), cfg.Admin.HashedPassword)
	err = bcrypt.CompareHashAndPassword([]byte(cfg.Admin.HashedPassword), []byte("hunter2hunter2"))
	assert.NoError(t, err)
}

func TestValidateRejectsBadKeys(t *testing.T) {
	_, err := Parse([]byte(`{
		"frontend": {
			"baseURL": "https://vet.example.com",
			"encryptionKey": "too-short",
			"signingKey": "also-too-short"
		},
		"backend": {"baseURL": "https://api.vet.example.com"}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encryptionKey")
	assert.Contains(t, err.Error(), "signingKey")
}

func TestValidateFirestoreRequiresProject(t *testing.T) {
	_, err := Parse([]byte(`{
		"frontend": {
			"baseURL": "https://vet.example.com",` + testKeys + `
		},
		"backend": {"baseURL": "https://api.vet.example.com"},
		"storage": {"kind": "firestore"}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gcpProject")
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret")
	assert.Equal(t, "***", s.String())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"***"`, string(data))
}

func TestParseUnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte(`{
		"frontend": {
			"baseURL": "https://vet.example.com",` + testKeys + `
		},
		"backend": {"baseURL": "https://api.vet.example.com"},
		"banana": true
	}`))
	require.Error(t, err)
}
