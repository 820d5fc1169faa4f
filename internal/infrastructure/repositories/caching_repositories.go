package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/licitafacil/api/internal/core/domain/licitacao"
	"github.com/licitafacil/api/internal/core/domain/user"
	"github.com/licitafacil/api/internal/core/ports"
)

func cacheSetSilently(c ports.Cache, ctx context.Context, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.Set(ctx, key, b, ttl)
}

func cacheGet[T any](c ports.Cache, ctx context.Context, key string) (*T, bool) {
	if c == nil {
		return nil, false
	}
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, false
	}
	return &v, true
}

// CachingUserRepository decorates user reads with cache-aside so the plan
// lookup on every gated request does not hammer the accounts table.
type CachingUserRepository struct {
	inner ports.UserRepository
	cache ports.Cache
	ttl   time.Duration
}

func NewCachingUserRepository(inner ports.UserRepository, cache ports.Cache, ttl time.Duration) ports.UserRepository {
	return &CachingUserRepository{inner: inner, cache: cache, ttl: ttl}
}

func (c *CachingUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	key := "user:id:" + id.String()
	if v, ok := cacheGet[user.User](c.cache, ctx, key); ok {
		return v, nil
	}
	u, err := c.inner.GetByID(ctx, id)
	if err == nil {
		cacheSetSilently(c.cache, ctx, key, u, c.ttl)
	}
	return u, err
}

// CachingLicitacaoRepository caches the detail read, the one tender query
// users pay quota for and repeat most. Writes pass through and invalidate.
type CachingLicitacaoRepository struct {
	ports.LicitacaoRepository
	cache ports.Cache
	ttl   time.Duration
}

func NewCachingLicitacaoRepository(inner ports.LicitacaoRepository, cache ports.Cache, ttl time.Duration) ports.LicitacaoRepository {
	return &CachingLicitacaoRepository{LicitacaoRepository: inner, cache: cache, ttl: ttl}
}

func (c *CachingLicitacaoRepository) GetByPNCPID(ctx context.Context, pncpID string) (*licitacao.Licitacao, error) {
	key := "licitacao:pncp:" + pncpID
	if v, ok := cacheGet[licitacao.Licitacao](c.cache, ctx, key); ok {
		return v, nil
	}
	l, err := c.LicitacaoRepository.GetByPNCPID(ctx, pncpID)
	if err == nil {
		cacheSetSilently(c.cache, ctx, key, l, c.ttl)
	}
	return l, err
}

func (c *CachingLicitacaoRepository) Upsert(ctx context.Context, l *licitacao.Licitacao) error {
	if err := c.LicitacaoRepository.Upsert(ctx, l); err != nil {
		return err
	}
	if c.cache != nil {
		_ = c.cache.Delete(ctx, "licitacao:pncp:"+l.PNCPID)
	}
	return nil
}
