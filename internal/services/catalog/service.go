package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cola500/equinet/internal/cache"
	"github.com/cola500/equinet/internal/errs"
	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/storage"
	"github.com/pkg/errors"
)

type Repository interface {
	GetProvider(ctx context.Context, id uint64) (*models.Provider, error)
	GetService(ctx context.Context, id uint64) (*models.Service, error)
}

// DefaultTTL bounds how long a cached row can outlive a write that skipped Invalidate.
const DefaultTTL = 10 * time.Minute

// Service serves provider and service lookups through a best-effort cache.
// Writers call Invalidate; anything changed behind its back stays visible for up to ttl.
type Service struct {
	repo  Repository
	cache cache.BytesCache
	ttl   time.Duration
}

func New(repo Repository, c cache.BytesCache, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: c, ttl: ttl}
}

func (s *Service) GetProvider(ctx context.Context, id uint64) (*models.Provider, error) {
	var p models.Provider
	if s.fromCache(ctx, providerKey(id), &p) {
		return &p, nil
	}
	out, err := s.repo.GetProvider(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errs.Newf(errs.NotFound, "provider %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, providerKey(id), out)
	return out, nil
}

func (s *Service) GetService(ctx context.Context, id uint64) (*models.Service, error) {
	var svc models.Service
	if s.fromCache(ctx, serviceKey(id), &svc) {
		return &svc, nil
	}
	out, err := s.repo.GetService(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errs.Newf(errs.NotFound, "service %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, serviceKey(id), out)
	return out, nil
}

// Invalidate drops cached entries after a provider's settings or services change.
func (s *Service) Invalidate(ctx context.Context, providerID uint64, serviceIDs ...uint64) {
	if !s.enabled() {
		return
	}
	keys := []string{providerKey(providerID)}
	for _, id := range serviceIDs {
		keys = append(keys, serviceKey(id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		slog.Warn("catalog cache invalidate", "provider_id", providerID, "error", err.Error())
	}
}

func (s *Service) enabled() bool {
	return s.cache != nil && s.ttl > 0
}

func (s *Service) fromCache(ctx context.Context, key string, dst any) bool {
	if !s.enabled() {
		return false
	}
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

func (s *Service) toCache(ctx context.Context, key string, v any) {
	if !s.enabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, b, s.ttl)
}

func providerKey(id uint64) string {
	return fmt.Sprintf("provider:%d", id)
}

func serviceKey(id uint64) string {
	return fmt.Sprintf("service:%d", id)
}
