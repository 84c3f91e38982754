package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Load reads, parses, and validates a config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses and validates config bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Frontend.Addr == "" {
		cfg.Frontend.Addr = ":8080"
	}
	if cfg.Frontend.Name == "" {
		cfg.Frontend.Name = "vetfront"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 15 * time.Second
	}
	if cfg.Storage.Kind == "" {
		cfg.Storage.Kind = StorageKindMemory
	}
	if cfg.Storage.Kind == StorageKindFirestore {
		if cfg.Storage.FirestoreDatabase == "" {
			cfg.Storage.FirestoreDatabase = "(default)"
		}
		if cfg.Storage.FirestoreCollection == "" {
			cfg.Storage.FirestoreCollection = "vetfront_sessions"
		}
	}
}

// Validate checks the config for errors that would prevent startup
func (c *Config) Validate() error {
	var errs []string

	if c.Frontend.BaseURL == "" {
		errs = append(errs, "frontend.baseURL is required")
	} else if _, err := url.Parse(c.Frontend.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("frontend.baseURL is not a valid URL: %v", err))
	}

	if len(c.Frontend.EncryptionKey) != 32 {
		errs = append(errs, "frontend.encryptionKey must be exactly 32 bytes")
	}
	if len(c.Frontend.SigningKey) < 32 {
		errs = append(errs, "frontend.signingKey must be at least 32 bytes")
	}

	if c.Backend.BaseURL == "" {
		errs = append(errs, "backend.baseURL is required")
	} else if _, err := url.Parse(c.Backend.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("backend.baseURL is not a valid URL: %v", err))
	}

	if c.Provider != nil {
		if c.Provider.Domain == "" {
			errs = append(errs, "provider.domain is required")
		}
		if c.Provider.ClientID == "" {
			errs = append(errs, "provider.clientId is required")
		}
		if c.Provider.RedirectURI == "" {
			errs = append(errs, "provider.redirectUri is required")
		}
	}

	switch c.Storage.Kind {
	case StorageKindMemory:
	case StorageKindFirestore:
		if c.Storage.GCPProject == "" {
			errs = append(errs, "storage.gcpProject is required for firestore storage")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.kind must be %q or %q", StorageKindMemory, StorageKindFirestore))
	}

	if c.Admin != nil && c.Admin.Enabled {
		if c.Admin.Username == "" {
			errs = append(errs, "admin.username is required when admin is enabled")
		}
		if c.Admin.HashedPassword == "" {
			errs = append(errs, "admin.password is required when admin is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
