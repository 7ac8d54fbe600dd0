// File: internal/auth/blocklist.go
package auth

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// TokenBlocklistService defines the interface for a JWT blocklist.
type TokenBlocklistService interface {
	// AddToBlocklist revokes a token's JTI until expiresAt.
	AddToBlocklist(ctx context.Context, jti string, expiresAt time.Time) error
	// IsBlocklisted checks if a token's JTI has been revoked.
	IsBlocklisted(ctx context.Context, jti string) (bool, error)
}

// InMemoryBlocklistService keeps revoked JTIs in a process-local expiring cache.
type InMemoryBlocklistService struct {
	cache *cache.Cache
}

var _ TokenBlocklistService = (*InMemoryBlocklistService)(nil)

// NewInMemoryBlocklistService creates a new in-memory blocklist service.
func NewInMemoryBlocklistService() *InMemoryBlocklistService {
	return &InMemoryBlocklistService{
		cache: cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

// AddToBlocklist stores the JTI only for the token's remaining lifetime.
func (s *InMemoryBlocklistService) AddToBlocklist(ctx context.Context, jti string, expiresAt time.Time) error {
	duration := time.Until(expiresAt)
	if duration <= 0 {
		return nil
	}
	s.cache.Set(jti, struct{}{}, duration)
	return nil
}

func (s *InMemoryBlocklistService) IsBlocklisted(ctx context.Context, jti string) (bool, error) {
	_, found := s.cache.Get(jti)
	return found, nil
}
