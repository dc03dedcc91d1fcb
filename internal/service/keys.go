package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/bcnelson/support-portal/internal/domain"
	"github.com/bcnelson/support-portal/internal/metrics"
	"github.com/bcnelson/support-portal/internal/storage"
	"go.uber.org/zap"
)

const (
	apiKeySecretBytes = 32

	createdKeyWarning = "Save this key - it won't be shown again"
	rotatedKeyWarning = "Old key has been revoked"
)

// KeyService manages the API key lifecycle.
type KeyService struct {
	store   storage.Storage
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewKeyService creates a new KeyService.
func NewKeyService(store storage.Storage, log *zap.Logger, m *metrics.Metrics) *KeyService {
	return &KeyService{
		store:   store,
		log:     log.Named("keys"),
		metrics: m,
		now:     time.Now,
	}
}

// Create issues a new key for customerID. A nil name gets the default key name.
func (s *KeyService) Create(ctx context.Context, customerID string, name *string) (*domain.IssuedAPIKey, error) {
	keyName := domain.DefaultAPIKeyName
	if name != nil {
		keyName = *name
	}

	key, plain, err := s.newKey(customerID, keyName)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("creating api key: %w", err)
	}

	s.metrics.KeyIssued("create")
	s.log.Info("api key created", zap.String("customer_id", customerID), zap.Int64("key_id", key.ID))

	return &domain.IssuedAPIKey{
		ID:        key.ID,
		Key:       plain,
		Name:      key.Name,
		CreatedAt: key.CreatedAt,
		Warning:   createdKeyWarning,
	}, nil
}

// Rotate revokes the caller's active key and issues a replacement in one transaction.
// It returns domain.ErrNotFound if oldKey is not an active key of customerID.
func (s *KeyService) Rotate(ctx context.Context, customerID, oldKey string) (*domain.IssuedAPIKey, error) {
	var next *domain.APIKey
	var plain string
	var oldID int64

	err := inTx(ctx, s.store, func(tx storage.Transaction) error {
		current, err := tx.GetActiveAPIKey(ctx, customerID, domain.HashAPIKey(oldKey))
		if err != nil {
			return err
		}

		if _, err := tx.RevokeAPIKey(ctx, customerID, current.ID); err != nil {
			return fmt.Errorf("revoking api key: %w", err)
		}

		next, plain, err = s.newKey(customerID, domain.RotatedAPIKeyName)
		if err != nil {
			return err
		}
		if err := tx.CreateAPIKey(ctx, next); err != nil {
			return fmt.Errorf("creating api key: %w", err)
		}
		oldID = current.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.KeyIssued("rotate")
	s.log.Info("api key rotated",
		zap.String("customer_id", customerID),
		zap.Int64("old_key_id", oldID),
		zap.Int64("key_id", next.ID))

	return &domain.IssuedAPIKey{
		ID:        next.ID,
		Key:       plain,
		CreatedAt: next.CreatedAt,
		Warning:   rotatedKeyWarning,
	}, nil
}

// List returns the metadata of customerID's keys, newest first.
func (s *KeyService) List(ctx context.Context, customerID string) ([]*domain.APIKey, error) {
	keys, err := s.store.ListAPIKeys(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	return keys, nil
}

// Revoke revokes key id if it is an active key of customerID.
// Unknown, foreign and already revoked keys are not an error.
func (s *KeyService) Revoke(ctx context.Context, customerID string, id int64) error {
	revoked, err := s.store.RevokeAPIKey(ctx, customerID, id)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}

	if !revoked {
		s.log.Debug("revoke matched no active key",
			zap.String("customer_id", customerID), zap.Int64("key_id", id))
		return nil
	}

	s.metrics.KeyRevoked()
	s.log.Info("api key revoked", zap.String("customer_id", customerID), zap.Int64("key_id", id))
	return nil
}

// newKey builds an unsaved key record and returns it with its plaintext.
func (s *KeyService) newKey(customerID, name string) (*domain.APIKey, string, error) {
	plain, err := generateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("generating api key: %w", err)
	}
	return &domain.APIKey{
		CustomerID: customerID,
		KeyHash:    domain.HashAPIKey(plain),
		Name:       name,
		CreatedAt:  s.now().UTC(),
	}, plain, nil
}

// generateAPIKey generates a new random API key.
func generateAPIKey() (string, error) {
	bytes := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return domain.APIKeyScheme + base64.RawURLEncoding.EncodeToString(bytes), nil
}

// IsAPIKey reports whether s looks like a key issued by this service.
func IsAPIKey(s string) bool {
	return strings.HasPrefix(s, domain.APIKeyScheme) &&
		len(s) == len(domain.APIKeyScheme)+base64.RawURLEncoding.EncodedLen(apiKeySecretBytes)
}
