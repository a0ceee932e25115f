package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

// Ensure LogStore implements the interface.
var _ driven.LogStore = (*LogStore)(nil)

// LogStore is an in-memory implementation of driven.LogStore.
// Records are deep-copied on the way in and out.
type LogStore struct {
	mu   sync.RWMutex
	logs map[domain.Fingerprint]domain.LogRecord
}

// NewLogStore creates a new in-memory log store.
func NewLogStore() *LogStore {
	return &LogStore{
		logs: make(map[domain.Fingerprint]domain.LogRecord),
	}
}

// GetByFingerprint retrieves a record and its pages.
func (s *LogStore) GetByFingerprint(_ context.Context, fp domain.Fingerprint) (*domain.LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.logs[fp]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRecord(&rec), nil
}

// CreateIfAbsent stores the record unless its fingerprint is taken.
func (s *LogStore) CreateIfAbsent(ctx context.Context, record *domain.LogRecord) (bool, *domain.LogRecord, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.logs[record.Fingerprint]; ok {
		return false, cloneRecord(&existing), nil
	}
	s.logs[record.Fingerprint] = *cloneRecord(record)
	return true, cloneRecord(record), nil
}

// ListByOwner returns an owner's records, newest first, without pages.
func (s *LogStore) ListByOwner(_ context.Context, ownerID string) ([]domain.LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.LogRecord
	for _, rec := range s.logs {
		if rec.Owner != ownerID {
			continue
		}
		summary := *cloneRecord(&rec)
		summary.Pages = nil
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out, nil
}

// DeleteExpired removes records whose expiry is at or before now.
func (s *LogStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for fp, rec := range s.logs {
		if rec.Expired(now) {
			delete(s.logs, fp)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (s *LogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs)
}

// cloneRecord copies r deeply, down to message attachments, reactions,
// embeds and nested metadata values.
func cloneRecord(r *domain.LogRecord) *domain.LogRecord {
	c := *r
	c.GuildRef = clonePtr(r.GuildRef)
	c.ExpiresAt = clonePtr(r.ExpiresAt)
	c.StageProvenance = cloneSlice(r.StageProvenance)
	if r.Pages != nil {
		c.Pages = make([]domain.Page, len(r.Pages))
		for i, p := range r.Pages {
			c.Pages[i] = domain.Page{ID: p.ID, Index: p.Index}
			if p.Messages != nil {
				c.Pages[i].Messages = make([]domain.Message, len(p.Messages))
				for j := range p.Messages {
					c.Pages[i].Messages[j] = cloneMessage(&p.Messages[j])
				}
			}
		}
	}
	c.Metadata = cloneMap(r.Metadata)
	return &c
}

func cloneMessage(m *domain.Message) domain.Message {
	c := *m
	c.Timestamp = clonePtr(m.Timestamp)
	c.EditedAt = clonePtr(m.EditedAt)
	c.Attachments = cloneSlice(m.Attachments)
	c.Reactions = cloneSlice(m.Reactions)
	if m.Embeds != nil {
		c.Embeds = make([]map[string]any, len(m.Embeds))
		for i, e := range m.Embeds {
			c.Embeds[i] = cloneMap(e)
		}
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// cloneSlice copies a slice of plain values, keeping nil as nil.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

// cloneMap copies decoded JSON, recursing into nested objects and arrays.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		if x == nil {
			return x
		}
		c := make([]any, len(x))
		for i, item := range x {
			c[i] = cloneValue(item)
		}
		return c
	default:
		return v
	}
}
