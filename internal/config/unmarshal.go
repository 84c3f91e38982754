package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgellow/vetfront/internal/crypto"
)

// UnmarshalJSON implements custom unmarshaling to parse the timeout as a
// duration string ("15s", "2m")
func (b *BackendConfig) UnmarshalJSON(data []byte) error {
	type Alias BackendConfig
	aux := &struct {
		Timeout string `json:"timeout,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(b),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if aux.Timeout != "" {
		timeout, err := time.ParseDuration(aux.Timeout)
		if err != nil {
			return fmt.Errorf("failed to parse backend timeout: %w", err)
		}
		b.Timeout = timeout
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling to resolve env refs in keys
func (f *FrontendConfig) UnmarshalJSON(data []byte) error {
	type Alias FrontendConfig
	aux := &struct {
		EncryptionKey json.RawMessage `json:"encryptionKey"`
		SigningKey    json.RawMessage `json:"signingKey"`
		*Alias
	}{
		Alias: (*Alias)(f),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if aux.EncryptionKey != nil {
		val, err := ParseConfigValue(aux.EncryptionKey)
		if err != nil {
			return fmt.Errorf("failed to parse encryptionKey: %w", err)
		}
		f.EncryptionKey = Secret(val.value)
	}

	if aux.SigningKey != nil {
		val, err := ParseConfigValue(aux.SigningKey)
		if err != nil {
			return fmt.Errorf("failed to parse signingKey: %w", err)
		}
		f.SigningKey = Secret(val.value)
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling to resolve env refs in credentials
func (p *ProviderConfig) UnmarshalJSON(data []byte) error {
	type Alias ProviderConfig
	aux := &struct {
		ClientID     json.RawMessage `json:"clientId"`
		ClientSecret json.RawMessage `json:"clientSecret"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if aux.ClientID != nil {
		val, err := ParseConfigValue(aux.ClientID)
		if err != nil {
			return fmt.Errorf("failed to parse clientId: %w", err)
		}
		p.ClientID = Secret(val.value)
	}

	if aux.ClientSecret != nil {
		val, err := ParseConfigValue(aux.ClientSecret)
		if err != nil {
			return fmt.Errorf("failed to parse clientSecret: %w", err)
		}
		p.ClientSecret = Secret(val.value)
	}

	if p.ResponseType == "" {
		p.ResponseType = "token id_token"
	}
	if len(p.Scopes) == 0 {
		p.Scopes = []string{"openid", "profile", "email"}
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling to hash the admin password at load time
func (a *AdminConfig) UnmarshalJSON(data []byte) error {
	type Alias AdminConfig
	aux := &struct {
		Password json.RawMessage `json:"password"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if aux.Password != nil {
		val, err := ParseConfigValue(aux.Password)
		if err != nil {
			return fmt.Errorf("failed to parse admin password: %w", err)
		}
		if val.value != "" {
			hashed, err := crypto.HashPassword(val.value)
			if err != nil {
				return fmt.Errorf("failed to hash admin password: %w", err)
			}
			a.HashedPassword = Secret(hashed)
		}
	}

	return nil
}
