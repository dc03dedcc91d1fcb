package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// APIKeyScheme prefixes every issued key so it can be recognized as ours.
const APIKeyScheme = "sk_"

// Default names given to keys that were not named by the caller.
const (
	DefaultAPIKeyName = "Default Key"
	RotatedAPIKeyName = "Rotated Key"
)

// APIKey represents an API key issued to a customer.
// The actual key is only returned once on creation.
type APIKey struct {
	ID         int64      `json:"key_id" db:"id"`
	CustomerID string     `json:"-" db:"customer_id"`
	KeyHash    string     `json:"-" db:"key_hash"` // Never expose hash
	Name       string     `json:"name" db:"name"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsed   *time.Time `json:"last_used" db:"last_used"`
	Revoked    bool       `json:"revoked" db:"revoked"`
}

// CreateAPIKeyRequest is the request body for creating an API key.
type CreateAPIKeyRequest struct {
	CustomerID string  `json:"customer_id"`
	Name       *string `json:"name"`
}

// RotateAPIKeyRequest is the request body for rotating an API key.
type RotateAPIKeyRequest struct {
	OldKey string `json:"old_key"`
}

// IssuedAPIKey is returned when a key is created or rotated.
// The plaintext key is only shown once.
type IssuedAPIKey struct {
	ID        int64     `json:"key_id"`
	Key       string    `json:"api_key"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Warning   string    `json:"warning"`
}

// APIKeyList wraps the key listing response.
type APIKeyList struct {
	Keys []*APIKey `json:"keys"`
}

// HashAPIKey creates a SHA-256 hash of the API key.
// SHA-256 is sufficient because API keys are already high-entropy random strings.
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
