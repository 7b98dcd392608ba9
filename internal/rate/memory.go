package rate

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore es el fallback en proceso. Cada key tiene su propio mutex
// sobre el slice de timestamps; las keys expiran solas vía go-cache.
//
// No es consistente entre instancias: con varias réplicas cada una cuenta
// lo suyo. Solo se usa cuando Redis no está configurado o no responde al
// arrancar.
type MemoryStore struct {
	// mu serializa get-or-create y la renovación del TTL de cada key, así
	// una entry vencida nunca pisa a la que la reemplazó.
	mu sync.Mutex
	c  *gocache.Cache
}

type memEntry struct {
	mu sync.Mutex
	ts []time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: gocache.New(24*time.Hour, time.Minute)}
}

func (s *MemoryStore) Name() string { return "memory" }

// entry retorna la entry viva de key, o una nueva, y renueva su TTL.
func (s *MemoryStore) entry(key string, ttl time.Duration) *memEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &memEntry{}
	if v, ok := s.c.Get(key); ok {
		e = v.(*memEntry)
	}
	s.c.Set(key, e, ttl)
	return e
}

func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	e := s.entry(key, window)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.ts = evict(e.ts, now.Add(-window))
	e.ts = append(e.ts, now)
	return int64(len(e.ts)), nil
}

func (s *MemoryStore) Count(_ context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return 0, nil
	}
	e := v.(*memEntry)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.ts = evict(e.ts, now.Add(-window))
	return int64(len(e.ts)), nil
}

// evict descarta timestamps <= cutoff. Los hits concurrentes pueden
// llegar levemente desordenados, así que se filtra todo el slice.
func evict(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
