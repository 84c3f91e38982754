package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the session store backend
type StorageKind string

const (
	StorageKindMemory    StorageKind = "memory"
	StorageKindFirestore StorageKind = "firestore"
)

// FrontendConfig is the HTTP surface the browser talks to
type FrontendConfig struct {
	BaseURL        string   `json:"baseURL"`
	Addr           string   `json:"addr"`
	Name           string   `json:"name"`
	AllowedOrigins []string `json:"allowedOrigins"`

	// Computed fields
	EncryptionKey Secret `json:"-"` // AES key for session cookies and persisted tokens
	SigningKey    Secret `json:"-"` // HMAC key for OAuth state tokens
}

// BackendConfig locates the practice-management REST backend
type BackendConfig struct {
	BaseURL string        `json:"baseURL"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// ProviderConfig configures the hosted identity provider (redirect-based login)
type ProviderConfig struct {
	Domain       string   `json:"domain"`
	RedirectURI  string   `json:"redirectUri"`
	Audience     string   `json:"audience,omitempty"`
	ResponseType string   `json:"responseType,omitempty"` // defaults to "token id_token"
	Scopes       []string `json:"scopes,omitempty"`       // defaults to openid profile email

	// Computed fields
	ClientID     Secret `json:"-"`
	ClientSecret Secret `json:"-"`
}

// StorageConfig selects and configures session-state persistence
type StorageConfig struct {
	Kind                StorageKind `json:"kind"`
	GCPProject          string      `json:"gcpProject,omitempty"`
	FirestoreDatabase   string      `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string      `json:"firestoreCollection,omitempty"`
}

// AdminConfig protects the operational endpoints with basic auth
type AdminConfig struct {
	Enabled  bool   `json:"enabled"`
	Username string `json:"username"`

	// Computed fields
	HashedPassword Secret `json:"-"` // bcrypt hash computed at load time
}

// Config represents the config structure with resolved values
type Config struct {
	Frontend FrontendConfig  `json:"frontend"`
	Backend  BackendConfig   `json:"backend"`
	Provider *ProviderConfig `json:"provider,omitempty"`
	Admin    *AdminConfig    `json:"admin,omitempty"`
	Storage  StorageConfig   `json:"storage"`
}

// RawConfigValue represents a value that could be a plain string or an env ref.
// This is only used during parsing, not in the final config.
type RawConfigValue struct {
	value string
}

// ParseConfigValue parses a JSON value that could be a string or a
// {"$env": "VAR_NAME"} reference object
func ParseConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	// Try plain string first
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &RawConfigValue{value: str}, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("config value must be string or reference object")
	}

	if envVar, ok := ref["$env"]; ok {
		value := os.Getenv(envVar)
		if value == "" {
			return nil, fmt.Errorf("environment variable %s not set", envVar)
		}
		// Strip surrounding quotes if present (only matching pairs)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		return &RawConfigValue{value: value}, nil
	}

	return nil, fmt.Errorf("unknown reference type in config value")
}
