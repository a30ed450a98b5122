package kalshi

import (
	"context"
	"fmt"
)

// APIKeysService manages the account's API keys.
type APIKeysService struct {
	transport *transport
}

// APIKey is one registered key. The private half never leaves the
// caller; only the public key is registered with the exchange.
type APIKey struct {
	APIKeyID string `json:"api_key_id"`
	Name     string `json:"name"`
}

func (s *APIKeysService) List(ctx context.Context) ([]APIKey, error) {
	var resp struct {
		APIKeys []APIKey `json:"api_keys"`
	}
	if err := s.transport.get(ctx, apiPrefix+"/api_keys", nil, &resp); err != nil {
		return nil, err
	}
	return resp.APIKeys, nil
}

// Create registers a new key under name with the given PEM-encoded RSA
// public key.
func (s *APIKeysService) Create(ctx context.Context, name, publicKeyPEM string) (*APIKey, error) {
	req := struct {
		Name      string `json:"name"`
		PublicKey string `json:"public_key"`
	}{Name: name, PublicKey: publicKeyPEM}

	var resp APIKey
	if err := s.transport.post(ctx, apiPrefix+"/api_keys", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *APIKeysService) Delete(ctx context.Context, keyID string) error {
	return s.transport.delete(ctx, fmt.Sprintf("%s/api_keys/%s", apiPrefix, keyID))
}
