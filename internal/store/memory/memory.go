// Package memory implementa los repositorios de dominio en memoria.
// Pensado para desarrollo local y tests; no persiste nada.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/portero/internal/domain/repository"
)

type Store struct {
	mu      sync.RWMutex
	tenants map[string]repository.Tenant
	clients map[string]repository.Client // por id interno
	pairs   map[string]repository.TokenPair
	// índices únicos por hash, como en el schema pg
	byAccess  map[string]string
	byRefresh map[string]string
	logs      []repository.APIRequestLog
}

func New() *Store {
	return &Store{
		tenants: map[string]repository.Tenant{},
		clients: map[string]repository.Client{},
		pairs:   map[string]repository.TokenPair{},

		byAccess:  map[string]string{},
		byRefresh: map[string]string{},
	}
}

// dropPair borra el par y sus índices. Requiere mu tomado.
func (s *Store) dropPair(id string) {
	p, ok := s.pairs[id]
	if !ok {
		return
	}
	delete(s.byAccess, p.AccessTokenHash)
	delete(s.byRefresh, p.RefreshTokenHash)
	delete(s.pairs, id)
}

func (s *Store) Tenants() repository.TenantRepository         { return tenantRepo{s} }
func (s *Store) Clients() repository.ClientRepository         { return clientRepo{s} }
func (s *Store) Tokens() repository.TokenRepository           { return tokenRepo{s} }
func (s *Store) RequestLogs() repository.RequestLogRepository { return requestLogRepo{s} }

// copias para que nadie mute el estado interno por referencia

func cloneClient(c repository.Client) *repository.Client {
	c.AllowedScopes = slices.Clone(c.AllowedScopes)
	if c.RateOverride != nil {
		o := *c.RateOverride
		c.RateOverride = &o
	}
	if c.LastUsedAt != nil {
		t := *c.LastUsedAt
		c.LastUsedAt = &t
	}
	return &c
}

func clonePair(p repository.TokenPair) *repository.TokenPair {
	p.Scopes = slices.Clone(p.Scopes)
	if p.RevokedAt != nil {
		t := *p.RevokedAt
		p.RevokedAt = &t
	}
	if p.LastUsedAt != nil {
		t := *p.LastUsedAt
		p.LastUsedAt = &t
	}
	return &p
}

// ─── Tenants ───

type tenantRepo struct{ s *Store }

func (r tenantRepo) GetByID(_ context.Context, id string) (*repository.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r tenantRepo) Create(_ context.Context, t *repository.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	for _, existing := range r.s.tenants {
		if existing.ID == t.ID || existing.Slug == t.Slug {
			return fmt.Errorf("tenant %s: %w", t.Slug, repository.ErrConflict)
		}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	r.s.tenants[t.ID] = *t
	return nil
}

func (r tenantRepo) SetActive(_ context.Context, id string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Active = active
	r.s.tenants[id] = t
	return nil
}

// ─── Clients ───

type clientRepo struct{ s *Store }

func (r clientRepo) GetByClientID(_ context.Context, clientID string) (*repository.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.clients {
		if c.ClientID == clientID {
			return cloneClient(c), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r clientRepo) GetByID(_ context.Context, id string) (*repository.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneClient(c), nil
}

func (r clientRepo) ListByTenant(_ context.Context, tenantID string) ([]repository.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []repository.Client
	for _, c := range r.s.clients {
		if tenantID == "" || c.TenantID == tenantID {
			out = append(out, *cloneClient(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r clientRepo) Create(_ context.Context, c *repository.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	for _, existing := range r.s.clients {
		if existing.ID == c.ID || existing.ClientID == c.ClientID {
			return fmt.Errorf("client %s: %w", c.ClientID, repository.ErrConflict)
		}
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	r.s.clients[c.ID] = *cloneClient(*c)
	return nil
}

func (r clientRepo) Update(_ context.Context, c *repository.Client) error {
	return r.mutate(c.ID, func(stored *repository.Client) {
		upd := cloneClient(*c)
		stored.Name = upd.Name
		stored.Description = upd.Description
		stored.AllowedScopes = upd.AllowedScopes
		stored.RateOverride = upd.RateOverride
	})
}

func (r clientRepo) SetActive(_ context.Context, id string, active bool) error {
	return r.mutate(id, func(c *repository.Client) { c.Active = active })
}

func (r clientRepo) UpdateSecret(_ context.Context, id, secretHash string) error {
	return r.mutate(id, func(c *repository.Client) { c.SecretHash = secretHash })
}

func (r clientRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clients[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.clients, id)
	for pid, p := range r.s.pairs {
		if p.ClientID == id {
			r.s.dropPair(pid)
		}
	}
	return nil
}

func (r clientRepo) IncrementUsage(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.TotalRequests++
	c.LastUsedAt = &at
	r.s.clients[id] = c
	return nil
}

func (r clientRepo) mutate(id string, fn func(*repository.Client)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&c)
	c.UpdatedAt = time.Now().UTC()
	r.s.clients[id] = c
	return nil
}

// ─── Tokens ───

type tokenRepo struct{ s *Store }

func (r tokenRepo) Create(_ context.Context, p *repository.TokenPair) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, dupID := r.s.pairs[p.ID]
	_, dupAccess := r.s.byAccess[p.AccessTokenHash]
	_, dupRefresh := r.s.byRefresh[p.RefreshTokenHash]
	if dupID || dupAccess || dupRefresh {
		return fmt.Errorf("token pair: %w", repository.ErrConflict)
	}
	r.s.pairs[p.ID] = *clonePair(*p)
	r.s.byAccess[p.AccessTokenHash] = p.ID
	r.s.byRefresh[p.RefreshTokenHash] = p.ID
	return nil
}

func (r tokenRepo) GetByAccessHash(_ context.Context, hash string) (*repository.TokenPair, error) {
	return r.find(r.s.byAccess, hash)
}

func (r tokenRepo) GetByRefreshHash(_ context.Context, hash string) (*repository.TokenPair, error) {
	return r.find(r.s.byRefresh, hash)
}

func (r tokenRepo) find(index map[string]string, hash string) (*repository.TokenPair, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.pairs[index[hash]]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePair(p), nil
}

func (r tokenRepo) RevokeByID(_ context.Context, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.pairs[id]
	if !ok || p.Revoked {
		return false, nil
	}
	p.Revoked = true
	p.RevokedAt = &at
	r.s.pairs[id] = p
	return true, nil
}

func (r tokenRepo) RevokeAllByClient(_ context.Context, clientID string, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, p := range r.s.pairs {
		if p.ClientID == clientID && !p.Revoked {
			p.Revoked = true
			p.RevokedAt = &at
			r.s.pairs[id] = p
			n++
		}
	}
	return n, nil
}

func (r tokenRepo) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.pairs[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.LastUsedAt = &at
	r.s.pairs[id] = p
	return nil
}

func (r tokenRepo) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, p := range r.s.pairs {
		if p.RefreshExpiresAt.Before(cutoff) {
			r.s.dropPair(id)
			n++
		}
	}
	return n, nil
}

// ─── Request logs ───

type requestLogRepo struct{ s *Store }

func (r requestLogRepo) Insert(_ context.Context, l *repository.APIRequestLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	r.s.logs = append(r.s.logs, *l)
	return nil
}

func (r requestLogRepo) StatsForClient(_ context.Context, clientID string, since time.Time) (*repository.ClientStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var st repository.ClientStats
	var total int64
	for _, l := range r.s.logs {
		if l.ClientID != clientID || l.CreatedAt.Before(since) {
			continue
		}
		st.TotalRequests++
		if l.Status < 400 {
			st.SuccessRequests++
		} else {
			st.ErrorRequests++
		}
		if l.RateLimitHit {
			st.RateLimitedCount++
		}
		total += l.DurationMs
	}
	if st.TotalRequests > 0 {
		st.AvgResponseTimeMs = float64(total) / float64(st.TotalRequests)
	}
	return &st, nil
}
