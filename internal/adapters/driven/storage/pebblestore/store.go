// Package pebblestore provides a LogStore backed by the Pebble embedded
// key-value store.
//
// Key layout:
//
//	log:<fp>                     record header as JSON
//	page:<fp>:<index>            one page as JSON, index zero-padded
//	owner:<owner>\x00<fp>        owner index
//	exp:<unixnano>:<fp>          expiry index, nanoseconds zero-padded
package pebblestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.LogStore = (*Store)(nil)

// dirName is the database directory inside the data directory.
const dirName = "logs.pebble"

const (
	prefixLog   = "log:"
	prefixPage  = "page:"
	prefixOwner = "owner:"
	prefixExp   = "exp:"
)

// Store is a Pebble-backed LogStore. Writes are applied as synced
// batches, so a record and its pages become visible together.
type Store struct {
	db   *pebble.DB
	path string

	// mu makes the existence check and the batch commit one step.
	mu sync.Mutex
}

// NewStore opens or creates the database under dataDir.
// If dataDir is empty, defaults to ~/.chatlogs/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".chatlogs", "data")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dataDir, dirName)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database directory.
func (s *Store) Path() string {
	return s.path
}

// storedLog is the persisted record header.
type storedLog struct {
	Fingerprint     string             `json:"fingerprint"`
	Type            string             `json:"type"`
	Owner           string             `json:"owner"`
	Privacy         string             `json:"privacy"`
	GuildRef        *string            `json:"guild_ref,omitempty"`
	ExpiresAt       *time.Time         `json:"expires_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	StageProvenance []domain.StageName `json:"stage_provenance"`
	MessageCount    int                `json:"message_count"`
	PageCount       int                `json:"page_count"`
	Metadata        map[string]any     `json:"metadata,omitempty"`
}

// storedPage is one persisted page.
type storedPage struct {
	ID       string           `json:"id"`
	Index    int              `json:"index"`
	Messages []domain.Message `json:"messages"`
}

// GetByFingerprint retrieves a record and its pages.
func (s *Store) GetByFingerprint(ctx context.Context, fp domain.Fingerprint) (*domain.LogRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The header and pages come from one snapshot so a concurrent sweep
	// cannot leave a record without its pages.
	snap := s.db.NewSnapshot()
	defer snap.Close() //nolint:errcheck
	return get(snap, fp, true)
}

// CreateIfAbsent writes the record header, pages and index entries in
// one synced batch unless the fingerprint exists.
func (s *Store) CreateIfAbsent(ctx context.Context, record *domain.LogRecord) (bool, *domain.LogRecord, error) {
	if record == nil || record.Fingerprint == "" {
		return false, nil, domain.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := get(s.db, record.Fingerprint, true)
	switch {
	case err == nil:
		return false, existing, nil
	case !errors.Is(err, domain.ErrNotFound):
		return false, nil, err
	}

	header := storedLog{
		Fingerprint:     string(record.Fingerprint),
		Type:            record.Type,
		Owner:           record.Owner,
		Privacy:         string(record.Privacy),
		GuildRef:        record.GuildRef,
		CreatedAt:       record.CreatedAt.UTC(),
		StageProvenance: record.StageProvenance,
		MessageCount:    record.MessageCount,
		PageCount:       len(record.Pages),
		Metadata:        record.Metadata,
	}
	if record.ExpiresAt != nil {
		t := record.ExpiresAt.UTC()
		header.ExpiresAt = &t
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return false, nil, fmt.Errorf("marshalling log: %w", err)
	}

	b := s.db.NewBatch()
	defer b.Close()

	if err := b.Set(logKey(record.Fingerprint), headerJSON, nil); err != nil {
		return false, nil, err
	}
	for _, page := range record.Pages {
		pageJSON, err := json.Marshal(storedPage{ID: page.ID, Index: page.Index, Messages: page.Messages})
		if err != nil {
			return false, nil, fmt.Errorf("marshalling page %d: %w", page.Index, err)
		}
		if err := b.Set(pageKey(record.Fingerprint, page.Index), pageJSON, nil); err != nil {
			return false, nil, err
		}
	}
	if err := b.Set(ownerKey(record.Owner, record.Fingerprint), nil, nil); err != nil {
		return false, nil, err
	}
	if header.ExpiresAt != nil {
		if err := b.Set(expiryKey(*header.ExpiresAt, record.Fingerprint), nil, nil); err != nil {
			return false, nil, err
		}
	}

	if err := b.Commit(pebble.Sync); err != nil {
		return false, nil, fmt.Errorf("committing log %s: %w", record.Fingerprint.Short(), err)
	}

	stored, err := get(s.db, record.Fingerprint, true)
	if err != nil {
		return false, nil, err
	}
	return true, stored, nil
}

// ListByOwner returns an owner's records, newest first, without pages.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]domain.LogRecord, error) {
	snap := s.db.NewSnapshot()
	defer snap.Close() //nolint:errcheck

	prefix := []byte(prefixOwner + ownerID + "\x00")
	var fps []domain.Fingerprint
	err := scan(snap, prefix, upperBound(prefix), func(key []byte) error {
		fps = append(fps, domain.Fingerprint(key[len(prefix):]))
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}

	logs := make([]domain.LogRecord, 0, len(fps))
	for _, fp := range fps {
		rec, err := get(snap, fp, false)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		logs = append(logs, *rec)
	}

	sort.Slice(logs, func(i, j int) bool {
		if !logs[i].CreatedAt.Equal(logs[j].CreatedAt) {
			return logs[i].CreatedAt.After(logs[j].CreatedAt)
		}
		return logs[i].Fingerprint < logs[j].Fingerprint
	})
	return logs, nil
}

// DeleteExpired removes records whose expiry is at or before now.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Every key at or before now sorts below "exp:<now>;" since ':' < ';'.
	lower := []byte(prefixExp)
	upper := []byte(fmt.Sprintf("%s%020d;", prefixExp, now.UTC().UnixNano()))

	var expired [][]byte
	err := scan(s.db, lower, upper, func(key []byte) error {
		expired = append(expired, append([]byte(nil), key...))
		return ctx.Err()
	})
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	b := s.db.NewBatch()
	defer b.Close()

	n := 0
	for _, key := range expired {
		// exp:<20 digits>:<fp>
		fp := domain.Fingerprint(key[len(prefixExp)+21:])
		rec, err := get(s.db, fp, false)
		if errors.Is(err, domain.ErrNotFound) {
			if err := b.Delete(key, nil); err != nil {
				return 0, err
			}
			continue
		}
		if err != nil {
			return 0, err
		}

		if err := b.Delete(key, nil); err != nil {
			return 0, err
		}
		if err := b.Delete(logKey(fp), nil); err != nil {
			return 0, err
		}
		if err := b.Delete(ownerKey(rec.Owner, fp), nil); err != nil {
			return 0, err
		}
		pagePrefix := []byte(prefixPage + string(fp) + ":")
		if err := b.DeleteRange(pagePrefix, upperBound(pagePrefix), nil); err != nil {
			return 0, err
		}
		n++
	}

	if err := b.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("deleting expired logs: %w", err)
	}
	return n, nil
}

// get reads a record header and, optionally, its pages from r.
func get(r pebble.Reader, fp domain.Fingerprint, withPages bool) (*domain.LogRecord, error) {
	value, err := read(r, logKey(fp))
	if err != nil {
		return nil, err
	}

	var header storedLog
	if err := decodeJSON(value, &header); err != nil {
		return nil, fmt.Errorf("unmarshalling log %s: %w", fp.Short(), err)
	}

	rec := &domain.LogRecord{
		Fingerprint:     domain.Fingerprint(header.Fingerprint),
		Type:            header.Type,
		Owner:           header.Owner,
		Privacy:         domain.Privacy(header.Privacy),
		GuildRef:        header.GuildRef,
		ExpiresAt:       header.ExpiresAt,
		CreatedAt:       header.CreatedAt,
		StageProvenance: header.StageProvenance,
		MessageCount:    header.MessageCount,
		Metadata:        header.Metadata,
	}
	if !withPages {
		return rec, nil
	}

	rec.Pages = make([]domain.Page, 0, header.PageCount)
	prefix := []byte(prefixPage + string(fp) + ":")
	it, err := r.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	for ok := it.First(); ok; ok = it.Next() {
		var page storedPage
		if err := decodeJSON(it.Value(), &page); err != nil {
			return nil, fmt.Errorf("unmarshalling page of %s: %w", fp.Short(), err)
		}
		rec.Pages = append(rec.Pages, domain.Page{ID: page.ID, Index: page.Index, Messages: page.Messages})
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return rec, nil
}

// read returns a copy of the value at key.
func read(r pebble.Reader, key []byte) ([]byte, error) {
	v, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// scan calls fn with each key in [lower, upper).
func scan(r pebble.Reader, lower, upper []byte, fn func(key []byte) error) error {
	it, err := r.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	defer it.Close()

	for ok := it.First(); ok; ok = it.Next() {
		if err := fn(it.Key()); err != nil {
			return err
		}
	}
	return it.Error()
}

func logKey(fp domain.Fingerprint) []byte {
	return []byte(prefixLog + string(fp))
}

func pageKey(fp domain.Fingerprint, index int) []byte {
	return []byte(fmt.Sprintf("%s%s:%08d", prefixPage, fp, index))
}

func ownerKey(owner string, fp domain.Fingerprint) []byte {
	return []byte(prefixOwner + owner + "\x00" + string(fp))
}

func expiryKey(t time.Time, fp domain.Fingerprint) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixExp, t.UnixNano(), fp))
}

// upperBound returns the smallest key greater than every key with prefix.
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// decodeJSON unmarshals keeping numbers as json.Number.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
