package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/chatlogs/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

// jsonNull is the JSON representation of null.
const jsonNull = "null"

// dbFile is the database file name inside the data directory.
const dbFile = "chatlogs.db"

// Store is a SQLite-based storage that provides access to the log and
// scheduler stores through wrapper types.
type Store struct {
	db   *sql.DB
	path string

	// writeMu serialises write transactions. SQLite allows one writer;
	// taking the lock in process avoids SQLITE_BUSY on upgrade.
	writeMu sync.Mutex
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.chatlogs/data/chatlogs.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".chatlogs", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite",
		dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// LogStore returns a LogStore interface backed by this store.
func (s *Store) LogStore() driven.LogStore {
	return &logStore{store: s}
}

// SchedulerStore returns a SchedulerStore interface backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate runs all pending migrations and records each applied version.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	return v, err
}

// ==================== Log Store ====================

// logStore implements driven.LogStore.
type logStore struct {
	store *Store
}

var _ driven.LogStore = (*logStore)(nil)

const logColumns = `fingerprint, type, owner, privacy, guild_ref, expires_at, created_at,
	stage_provenance, message_count, metadata`

// GetByFingerprint retrieves a record and its pages. Both reads share one
// read transaction, so WAL serves them from the same snapshot and a
// concurrent sweep cannot leave the record without its pages.
func (s *logStore) GetByFingerprint(ctx context.Context, fp domain.Fingerprint) (*domain.LogRecord, error) {
	tx, err := s.store.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("beginning read: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	return getLog(ctx, tx, fp)
}

// CreateIfAbsent inserts the record and its pages in one transaction.
// The log row insert is a no-op when the fingerprint exists, in which
// case the stored record is read back within the same transaction.
func (s *logStore) CreateIfAbsent(ctx context.Context, record *domain.LogRecord) (bool, *domain.LogRecord, error) {
	if record == nil || record.Fingerprint == "" {
		return false, nil, domain.ErrInvalidInput
	}

	provenanceJSON, err := json.Marshal(record.StageProvenance)
	if err != nil {
		return false, nil, fmt.Errorf("marshalling provenance: %w", err)
	}
	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return false, nil, fmt.Errorf("marshalling metadata: %w", err)
	}

	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return false, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		INSERT INTO logs (`+logColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`, string(record.Fingerprint), record.Type, record.Owner, string(record.Privacy),
		nullableString(record.GuildRef), nullableUnixNano(record.ExpiresAt),
		record.CreatedAt.UTC().UnixNano(), string(provenanceJSON),
		record.MessageCount, string(metadataJSON))
	if err != nil {
		return false, nil, fmt.Errorf("inserting log: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("checking insert: %w", err)
	}
	if n == 0 {
		existing, err := getLog(ctx, tx, record.Fingerprint)
		if err != nil {
			return false, nil, err
		}
		return false, existing, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pages (id, fingerprint, page_index, messages)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return false, nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, page := range record.Pages {
		messagesJSON, err := json.Marshal(page.Messages)
		if err != nil {
			return false, nil, fmt.Errorf("marshalling page %d: %w", page.Index, err)
		}
		if _, err := stmt.ExecContext(ctx, page.ID, string(record.Fingerprint), page.Index, string(messagesJSON)); err != nil {
			return false, nil, fmt.Errorf("saving page %d: %w", page.Index, err)
		}
	}

	stored, err := getLog(ctx, tx, record.Fingerprint)
	if err != nil {
		return false, nil, err
	}

	if err := tx.Commit(); err != nil {
		return false, nil, fmt.Errorf("committing transaction: %w", err)
	}
	return true, stored, nil
}

// ListByOwner returns an owner's records, newest first, without pages.
func (s *logStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.LogRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+logColumns+`
		FROM logs WHERE owner = ?
		ORDER BY created_at DESC, fingerprint
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.LogRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating logs: %w", err)
	}

	return logs, nil
}

// DeleteExpired removes records whose expiry is at or before now.
// Pages are removed by the foreign key cascade.
func (s *logStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()

	res, err := s.store.db.ExecContext(ctx, `
		DELETE FROM logs WHERE expires_at IS NOT NULL AND expires_at <= ?
	`, now.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("deleting expired logs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting expired logs: %w", err)
	}
	return int(n), nil
}

// ==================== Helper Functions ====================

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// getLog reads a record and its pages.
func getLog(ctx context.Context, q querier, fp domain.Fingerprint) (*domain.LogRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+logColumns+` FROM logs WHERE fingerprint = ?`, string(fp))

	rec, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, page_index, messages
		FROM pages WHERE fingerprint = ?
		ORDER BY page_index
	`, string(fp))
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var page domain.Page
		var messagesJSON string
		if err := rows.Scan(&page.ID, &page.Index, &messagesJSON); err != nil {
			return nil, fmt.Errorf("scanning page: %w", err)
		}
		if err := decodeJSON(messagesJSON, &page.Messages); err != nil {
			return nil, fmt.Errorf("unmarshalling page %d: %w", page.Index, err)
		}
		rec.Pages = append(rec.Pages, page)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pages: %w", err)
	}

	return rec, nil
}

// scanLog scans a log row without pages.
func scanLog(row rowScanner) (*domain.LogRecord, error) {
	var rec domain.LogRecord
	var fp, privacy, provenanceJSON, metadataJSON string
	var guildRef sql.NullString
	var expiresAt sql.NullInt64
	var createdAt int64

	if err := row.Scan(&fp, &rec.Type, &rec.Owner, &privacy, &guildRef, &expiresAt,
		&createdAt, &provenanceJSON, &rec.MessageCount, &metadataJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning log: %w", err)
	}

	rec.Fingerprint = domain.Fingerprint(fp)
	rec.Privacy = domain.Privacy(privacy)
	if guildRef.Valid {
		g := guildRef.String
		rec.GuildRef = &g
	}
	if expiresAt.Valid {
		t := time.Unix(0, expiresAt.Int64).UTC()
		rec.ExpiresAt = &t
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()

	if err := decodeJSON(provenanceJSON, &rec.StageProvenance); err != nil {
		return nil, fmt.Errorf("unmarshalling provenance: %w", err)
	}
	if metadataJSON != jsonNull && metadataJSON != "" {
		if err := decodeJSON(metadataJSON, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}

	return &rec, nil
}

// decodeJSON unmarshals keeping numbers as json.Number.
func decodeJSON(data string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	return dec.Decode(v)
}

// nullableString returns nil for a nil pointer, otherwise the string.
func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// nullableUnixNano returns nil for a nil time, otherwise its UTC nanoseconds.
func nullableUnixNano(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixNano()
}
