// Package idmap translates catalog string ids to storage ids and back.
package idmap

import (
	"context"
	"sync"
	"time"

	"github.com/gdg-garage/garage-fit-api/internal/apperr"
	"github.com/gdg-garage/garage-fit-api/internal/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type Entry struct {
	Code string
	ID   uuid.UUID
}

// Source loads the full mapping from the source of truth.
type Source interface {
	LoadAll(ctx context.Context) ([]Entry, error)
}

type snapshot struct {
	byCode   map[string]uuid.UUID
	byID     map[uuid.UUID]string
	loadedAt time.Time
}

// Mapper is a read-through TTL cache over a Source. Concurrent reloads
// collapse into one Source call.
type Mapper struct {
	src   Source
	ttl   time.Duration
	now   func() time.Time
	log   *logger.Logger
	group singleflight.Group

	mu   sync.RWMutex
	snap *snapshot
}

func New(src Source, ttl time.Duration, log *logger.Logger) *Mapper {
	return &Mapper{src: src, ttl: ttl, now: time.Now, log: log.With("service", "IDMapper")}
}

// Clear drops the cached mapping; the next lookup reloads it.
func (m *Mapper) Clear() {
	m.mu.Lock()
	m.snap = nil
	m.mu.Unlock()
}

func (m *Mapper) ToStorageID(ctx context.Context, code string) (uuid.UUID, error) {
	s, err := m.current(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	id, ok := s.byCode[code]
	if !ok {
		return uuid.Nil, apperr.New(apperr.ErrNotFound, "achievement %q has no storage id", code)
	}
	return id, nil
}

func (m *Mapper) ToStringID(ctx context.Context, id uuid.UUID) (string, error) {
	s, err := m.current(ctx)
	if err != nil {
		return "", err
	}
	code, ok := s.byID[id]
	if !ok {
		return "", apperr.New(apperr.ErrNotFound, "storage id %s has no achievement", id)
	}
	return code, nil
}

type Resolution struct {
	Resolved map[string]uuid.UUID
	Missing  []string
}

// BatchResolve maps every code it can. Unknown codes, or every code when
// the mapping cannot be loaded, end up in Missing.
func (m *Mapper) BatchResolve(ctx context.Context, codes []string) Resolution {
	res := Resolution{Resolved: make(map[string]uuid.UUID, len(codes))}
	s, err := m.current(ctx)
	if err != nil {
		m.log.Warn("batch resolve without mapping", "error", err)
		res.Missing = append(res.Missing, codes...)
		return res
	}
	for _, c := range codes {
		if id, ok := s.byCode[c]; ok {
			res.Resolved[c] = id
		} else {
			res.Missing = append(res.Missing, c)
		}
	}
	return res
}

// Normalize accepts either a catalog id or a storage id and returns both.
func (m *Mapper) Normalize(ctx context.Context, raw string) (string, uuid.UUID, error) {
	if raw == "" {
		return "", uuid.Nil, apperr.New(apperr.ErrValidation, "achievement id is required")
	}
	if id, err := uuid.Parse(raw); err == nil {
		code, err := m.ToStringID(ctx, id)
		if err != nil {
			return "", uuid.Nil, err
		}
		return code, id, nil
	}
	id, err := m.ToStorageID(ctx, raw)
	if err != nil {
		return "", uuid.Nil, err
	}
	return raw, id, nil
}

func (m *Mapper) current(ctx context.Context) (*snapshot, error) {
	m.mu.RLock()
	s := m.snap
	m.mu.RUnlock()
	if s != nil && m.now().Sub(s.loadedAt) < m.ttl {
		return s, nil
	}

	v, err, _ := m.group.Do("load", func() (interface{}, error) {
		entries, err := m.src.LoadAll(ctx)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrDataUnavailable, err)
		}
		fresh := &snapshot{
			byCode:   make(map[string]uuid.UUID, len(entries)),
			byID:     make(map[uuid.UUID]string, len(entries)),
			loadedAt: m.now(),
		}
		for _, e := range entries {
			fresh.byCode[e.Code] = e.ID
			fresh.byID[e.ID] = e.Code
		}
		m.mu.Lock()
		m.snap = fresh
		m.mu.Unlock()
		m.log.Debug("id mapping loaded", "entries", len(entries))
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}
