package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/relaysync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all metadata store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.relaysync/data/relaysync.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".relaysync", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "relaysync.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
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

// AccountStore returns an AccountStore interface backed by this store.
func (s *Store) AccountStore() driven.AccountStore {
	return &accountStore{store: s}
}

// RecordStore returns a RecordStore interface backed by this store.
func (s *Store) RecordStore() driven.RecordStore {
	return &recordStore{store: s}
}

// SyncStateStore returns a SyncStateStore interface backed by this store.
func (s *Store) SyncStateStore() driven.SyncStateStore {
	return &syncStateStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Account Store ====================

// accountStore implements driven.AccountStore.
type accountStore struct {
	store *Store
}

var _ driven.AccountStore = (*accountStore)(nil)

// Save stores or updates an account.
func (s *accountStore) Save(ctx context.Context, account domain.Account) error {
	configJSON, err := json.Marshal(account.Config)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO accounts (id, provider, name, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			name = excluded.name,
			config = excluded.config,
			updated_at = excluded.updated_at
	`, account.ID, account.Provider, account.Name, string(configJSON),
		account.CreatedAt, account.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving account: %w", err)
	}
	return nil
}

// Get retrieves an account by ID.
func (s *accountStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, provider, name, config, created_at, updated_at
		FROM accounts WHERE id = ?
	`, id)

	var account domain.Account
	var configJSON string
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&account.ID, &account.Provider, &account.Name, &configJSON,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	if err := json.Unmarshal([]byte(configJSON), &account.Config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if createdAt.Valid {
		account.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		account.UpdatedAt = updatedAt.Time
	}

	return &account, nil
}

// List returns all configured accounts.
func (s *accountStore) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, provider, name, config, created_at, updated_at
		FROM accounts
	`)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account //nolint:prealloc // size unknown from query
	for rows.Next() {
		var account domain.Account
		var configJSON string
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&account.ID, &account.Provider, &account.Name, &configJSON,
			&createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}

		if err := json.Unmarshal([]byte(configJSON), &account.Config); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
		if createdAt.Valid {
			account.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			account.UpdatedAt = updatedAt.Time
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}

	return accounts, nil
}

// Delete removes an account.
func (s *accountStore) Delete(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	return nil
}

// ==================== Record Store ====================

// recordStore implements driven.RecordStore.
type recordStore struct {
	store *Store
}

var _ driven.RecordStore = (*recordStore)(nil)

const recordColumns = `id, account_id, kind, remote_id, fields, local_updated_at,
	remote_updated_at, sync_status, sync_error, is_deleted, version, remote_snapshot, created_at`

// Get retrieves a record by local ID.
func (s *recordStore) Get(ctx context.Context, id string) (*domain.Record, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE id = ?", id)
	return scanRecordRow(row)
}

// GetByRemoteID retrieves a record by provider identity.
func (s *recordStore) GetByRemoteID(ctx context.Context, accountID string, kind domain.RecordKind, remoteID string) (*domain.Record, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE account_id = ? AND kind = ? AND remote_id = ? AND remote_id != ''",
		accountID, kind, remoteID)
	return scanRecordRow(row)
}

// List returns all records for an account and kind.
func (s *recordStore) List(ctx context.Context, accountID string, kind domain.RecordKind) ([]domain.Record, error) {
	return s.queryRecords(ctx,
		"SELECT "+recordColumns+" FROM records WHERE account_id = ? AND kind = ?",
		accountID, kind)
}

// ListPending returns records awaiting push.
func (s *recordStore) ListPending(ctx context.Context, accountID string, kind domain.RecordKind) ([]domain.Record, error) {
	return s.queryRecords(ctx,
		"SELECT "+recordColumns+` FROM records
		WHERE account_id = ? AND kind = ?
		AND sync_status IN (?, ?, ?)`,
		accountID, kind,
		domain.StatusPendingCreate, domain.StatusPendingUpdate, domain.StatusPendingDelete)
}

// ListByStatus returns records in the given status.
func (s *recordStore) ListByStatus(ctx context.Context, accountID string, kind domain.RecordKind, status domain.SyncStatus) ([]domain.Record, error) {
	return s.queryRecords(ctx,
		"SELECT "+recordColumns+" FROM records WHERE account_id = ? AND kind = ? AND sync_status = ?",
		accountID, kind, status)
}

// CreateFromLocal stores a locally created record.
func (s *recordStore) CreateFromLocal(ctx context.Context, rec *domain.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: record id required", domain.ErrInvalidInput)
	}

	rec.SyncStatus = domain.StatusPendingCreate
	rec.Version = 1
	rec.LocalUpdatedAt = time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.LocalUpdatedAt
	}

	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshalling fields: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO records (id, account_id, kind, remote_id, fields, local_updated_at,
			remote_updated_at, sync_status, sync_error, is_deleted, version, remote_snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', 0, ?, NULL, ?)
	`, rec.ID, rec.AccountID, rec.Kind, rec.RemoteID, string(fieldsJSON),
		rec.LocalUpdatedAt, nullTime(rec.RemoteUpdatedAt), rec.SyncStatus, rec.Version, rec.CreatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("creating record: %w", err)
	}
	return nil
}

// UpdateFromLocal applies a local edit guarded by expectedVersion. A
// stale version returns *domain.ConflictError with the current row.
func (s *recordStore) UpdateFromLocal(ctx context.Context, id string, fields map[string]any, expectedVersion int64) (*domain.Record, error) {
	return s.mutateGuarded(ctx, id, expectedVersion, func(rec *domain.Record) {
		rec.Fields = fields
		rec.Version++
		rec.LocalUpdatedAt = time.Now().UTC()
		if rec.SyncStatus != domain.StatusPendingCreate {
			rec.SyncStatus = domain.StatusPendingUpdate
		}
		rec.SyncError = ""
	})
}

// SoftDelete marks the record deleted guarded by expectedVersion.
func (s *recordStore) SoftDelete(ctx context.Context, id string, expectedVersion int64) (*domain.Record, error) {
	return s.mutateGuarded(ctx, id, expectedVersion, func(rec *domain.Record) {
		rec.IsDeleted = true
		rec.SyncStatus = domain.StatusPendingDelete
		rec.Version++
		rec.LocalUpdatedAt = time.Now().UTC()
	})
}

// mutateGuarded reads, checks the version and writes back inside one
// transaction so concurrent local editors cannot interleave.
func (s *recordStore) mutateGuarded(ctx context.Context, id string, expectedVersion int64, apply func(*domain.Record)) (*domain.Record, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rec, err := scanRecordRow(tx.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE id = ?", id))
	if err != nil {
		return nil, err
	}
	if rec.Version != expectedVersion {
		return nil, &domain.ConflictError{Current: rec}
	}

	apply(rec)

	if err := writeRecordTx(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return rec, nil
}

// ApplyRemote upserts the local shadow with remote fields. Idempotent:
// re-applying the same change leaves the record unchanged.
func (s *recordStore) ApplyRemote(ctx context.Context, accountID string, kind domain.RecordKind, remoteID string, fields map[string]any, remoteUpdatedAt time.Time) (*domain.Record, error) {
	if remoteID == "" {
		return nil, fmt.Errorf("%w: remote id required", domain.ErrInvalidInput)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rec, err := scanRecordRow(tx.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE account_id = ? AND kind = ? AND remote_id = ? AND remote_id != ''",
		accountID, kind, remoteID))
	switch {
	case err == nil:
		// Re-check inside the transaction: a local edit or conflict that
		// landed after the caller's lookup must not be overwritten.
		if rec.SyncStatus.IsPending() || rec.SyncStatus == domain.StatusConflict {
			return nil, &domain.ConflictError{Current: rec}
		}
		rec.Fields = fields
		rec.RemoteUpdatedAt = remoteUpdatedAt
		rec.SyncStatus = domain.StatusSynced
		rec.RemoteSnapshot = nil
		rec.SyncError = ""
		rec.IsDeleted = false
		if err := writeRecordTx(ctx, tx, rec); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrNotFound):
		rec = &domain.Record{
			ID:              uuid.NewString(),
			AccountID:       accountID,
			Kind:            kind,
			RemoteID:        remoteID,
			Fields:          fields,
			RemoteUpdatedAt: remoteUpdatedAt,
			SyncStatus:      domain.StatusSynced,
			Version:         1,
			CreatedAt:       time.Now().UTC(),
		}
		fieldsJSON, err := json.Marshal(rec.Fields)
		if err != nil {
			return nil, fmt.Errorf("marshalling fields: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO records (id, account_id, kind, remote_id, fields, local_updated_at,
				remote_updated_at, sync_status, sync_error, is_deleted, version, remote_snapshot, created_at)
			VALUES (?, ?, ?, ?, ?, NULL, ?, ?, '', 0, ?, NULL, ?)
		`, rec.ID, rec.AccountID, rec.Kind, rec.RemoteID, string(fieldsJSON),
			rec.RemoteUpdatedAt, rec.SyncStatus, rec.Version, rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("inserting shadow record: %w", err)
		}
	default:
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return rec, nil
}

// ApplyRemoteDelete soft-deletes the local shadow for a remote tombstone.
// The status re-check and the write share one transaction so a racing
// local edit cannot be deleted out from under its author.
func (s *recordStore) ApplyRemoteDelete(ctx context.Context, id string, remoteUpdatedAt time.Time) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rec, err := scanRecordRow(tx.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE id = ?", id))
	if err != nil {
		return err
	}
	if rec.SyncStatus.IsPending() || rec.SyncStatus == domain.StatusConflict {
		return &domain.ConflictError{Current: rec}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE records SET is_deleted = 1, sync_status = ?, remote_updated_at = ?, remote_snapshot = NULL
		WHERE id = ?
	`, domain.StatusSynced, remoteUpdatedAt, id); err != nil {
		return fmt.Errorf("applying remote delete: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// MarkConflict preserves the remote snapshot alongside the local fields.
func (s *recordStore) MarkConflict(ctx context.Context, id string, snapshot domain.RemoteSnapshot) error {
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE records SET sync_status = ?, remote_snapshot = ?
		WHERE id = ?
	`, domain.StatusConflict, string(snapshotJSON), id)
	if err != nil {
		return fmt.Errorf("marking conflict: %w", err)
	}
	return requireRowAffected(res)
}

// MarkSynced clears a pending status after a successful push.
func (s *recordStore) MarkSynced(ctx context.Context, id string, remoteID string, remoteUpdatedAt time.Time) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE records SET sync_status = ?, remote_id = ?, remote_updated_at = ?, sync_error = ''
		WHERE id = ?
	`, domain.StatusSynced, remoteID, remoteUpdatedAt, id)
	if err != nil {
		return fmt.Errorf("marking synced: %w", err)
	}
	return requireRowAffected(res)
}

// MarkError records a permanent push failure.
func (s *recordStore) MarkError(ctx context.Context, id string, message string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE records SET sync_status = ?, sync_error = ?
		WHERE id = ?
	`, domain.StatusError, message, id)
	if err != nil {
		return fmt.Errorf("marking error: %w", err)
	}
	return requireRowAffected(res)
}

// ResolveConflict settles a conflicted record.
func (s *recordStore) ResolveConflict(ctx context.Context, id string, resolution domain.ConflictResolution) (*domain.Record, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rec, err := scanRecordRow(tx.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE id = ?", id))
	if err != nil {
		return nil, err
	}
	if rec.SyncStatus != domain.StatusConflict {
		return nil, domain.ErrNotConflicted
	}

	switch resolution {
	case domain.ResolutionKeepLocal:
		// The local edit wins and goes back in the push queue.
		rec.SyncStatus = domain.StatusPendingUpdate
		if rec.IsDeleted {
			rec.SyncStatus = domain.StatusPendingDelete
		}
		rec.Version++
		rec.LocalUpdatedAt = time.Now().UTC()
		rec.RemoteSnapshot = nil

	case domain.ResolutionAcceptRemote:
		if rec.RemoteSnapshot == nil {
			return nil, fmt.Errorf("%w: conflict has no remote snapshot", domain.ErrInvalidInput)
		}
		rec.Fields = rec.RemoteSnapshot.Fields
		rec.RemoteUpdatedAt = rec.RemoteSnapshot.RemoteUpdatedAt
		rec.SyncStatus = domain.StatusSynced
		rec.IsDeleted = false
		rec.RemoteSnapshot = nil

	default:
		return nil, fmt.Errorf("%w: unknown resolution %q", domain.ErrInvalidInput, resolution)
	}

	if err := writeRecordTx(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return rec, nil
}

// HardDelete removes the row.
func (s *recordStore) HardDelete(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}

func (s *recordStore) queryRecords(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// writeRecordTx overwrites all mutable columns of an existing row.
func writeRecordTx(ctx context.Context, tx *sql.Tx, rec *domain.Record) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshalling fields: %w", err)
	}

	var snapshotJSON sql.NullString
	if rec.RemoteSnapshot != nil {
		data, err := json.Marshal(rec.RemoteSnapshot)
		if err != nil {
			return fmt.Errorf("marshalling snapshot: %w", err)
		}
		snapshotJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE records SET remote_id = ?, fields = ?, local_updated_at = ?, remote_updated_at = ?,
			sync_status = ?, sync_error = ?, is_deleted = ?, version = ?, remote_snapshot = ?
		WHERE id = ?
	`, rec.RemoteID, string(fieldsJSON), nullTime(rec.LocalUpdatedAt), nullTime(rec.RemoteUpdatedAt),
		rec.SyncStatus, rec.SyncError, rec.IsDeleted, rec.Version, snapshotJSON, rec.ID)
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var fieldsJSON string
	var snapshotJSON sql.NullString
	var localUpdatedAt, remoteUpdatedAt, createdAt sql.NullTime

	if err := scanner.Scan(&rec.ID, &rec.AccountID, &rec.Kind, &rec.RemoteID, &fieldsJSON,
		&localUpdatedAt, &remoteUpdatedAt, &rec.SyncStatus, &rec.SyncError,
		&rec.IsDeleted, &rec.Version, &snapshotJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
		return nil, fmt.Errorf("unmarshaling fields: %w", err)
	}
	if snapshotJSON.Valid {
		var snap domain.RemoteSnapshot
		if err := json.Unmarshal([]byte(snapshotJSON.String), &snap); err != nil {
			return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
		}
		rec.RemoteSnapshot = &snap
	}
	if localUpdatedAt.Valid {
		rec.LocalUpdatedAt = localUpdatedAt.Time
	}
	if remoteUpdatedAt.Valid {
		rec.RemoteUpdatedAt = remoteUpdatedAt.Time
	}
	if createdAt.Valid {
		rec.CreatedAt = createdAt.Time
	}

	return &rec, nil
}

func scanRecordRow(row *sql.Row) (*domain.Record, error) {
	return scanRecord(row)
}

func scanRecordRows(rows *sql.Rows) (*domain.Record, error) {
	return scanRecord(rows)
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ==================== Sync State Store ====================

// syncStateStore implements driven.SyncStateStore.
type syncStateStore struct {
	store *Store
}

var _ driven.SyncStateStore = (*syncStateStore)(nil)

const syncStateColumns = `account_id, kind, status, total_records, synced_records,
	pending_records, error_records, conflict_records, cursor, last_successful_sync,
	last_sync_attempt, current_operation, progress_percentage, sync_error, sync_enabled, auto_sync`

// Get retrieves sync state for a pair.
func (s *syncStateStore) Get(ctx context.Context, accountID string, kind domain.RecordKind) (*domain.SyncState, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+syncStateColumns+" FROM sync_states WHERE account_id = ? AND kind = ?",
		accountID, kind)
	return scanSyncState(row)
}

// List returns all known sync states.
func (s *syncStateStore) List(ctx context.Context) ([]domain.SyncState, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+syncStateColumns+" FROM sync_states")
	if err != nil {
		return nil, fmt.Errorf("querying sync states: %w", err)
	}
	defer rows.Close()

	var states []domain.SyncState //nolint:prealloc // size unknown from query
	for rows.Next() {
		state, err := scanSyncState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync states: %w", err)
	}
	return states, nil
}

// Begin transitions the pair to syncing. The conditional UPDATE is the
// atomic guard: exactly one concurrent caller sees a row affected.
func (s *syncStateStore) Begin(ctx context.Context, accountID string, kind domain.RecordKind) (*domain.SyncState, error) {
	// Lazy-create the row; defaults leave the pair enabled and idle.
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_states (account_id, kind) VALUES (?, ?)
		ON CONFLICT(account_id, kind) DO NOTHING
	`, accountID, kind)
	if err != nil {
		return nil, fmt.Errorf("ensuring sync state: %w", err)
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE sync_states SET
			status = ?,
			total_records = 0, synced_records = 0, pending_records = 0,
			error_records = 0, conflict_records = 0,
			current_operation = 'starting',
			progress_percentage = 0,
			sync_error = '',
			last_sync_attempt = ?
		WHERE account_id = ? AND kind = ? AND status != ? AND sync_enabled = 1
	`, domain.RunSyncing, time.Now().UTC(), accountID, kind, domain.RunSyncing)
	if err != nil {
		return nil, fmt.Errorf("beginning sync: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		state, err := s.Get(ctx, accountID, kind)
		if err != nil {
			return nil, err
		}
		if !state.SyncEnabled {
			return nil, domain.ErrSyncDisabled
		}
		return nil, domain.ErrSyncInProgress
	}

	return s.Get(ctx, accountID, kind)
}

// SaveProgress updates in-flight counters and the phase label.
func (s *syncStateStore) SaveProgress(ctx context.Context, accountID string, kind domain.RecordKind, counters domain.SyncCounters, operation string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE sync_states SET
			total_records = ?, synced_records = ?, pending_records = ?,
			error_records = ?, conflict_records = ?,
			current_operation = ?, progress_percentage = ?
		WHERE account_id = ? AND kind = ?
	`, counters.TotalRecords, counters.SyncedRecords, counters.PendingRecords,
		counters.ErrorRecords, counters.ConflictRecords,
		operation, counters.Percent(), accountID, kind)
	if err != nil {
		return fmt.Errorf("saving progress: %w", err)
	}
	return requireRowAffected(res)
}

// Complete finishes a pass, committing counters and cursor together.
func (s *syncStateStore) Complete(ctx context.Context, accountID string, kind domain.RecordKind, counters domain.SyncCounters, cursor string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE sync_states SET
			status = ?,
			total_records = ?, synced_records = ?, pending_records = ?,
			error_records = ?, conflict_records = ?,
			cursor = ?, current_operation = '', progress_percentage = ?,
			sync_error = '', last_successful_sync = ?
		WHERE account_id = ? AND kind = ?
	`, domain.RunCompleted,
		counters.TotalRecords, counters.SyncedRecords, counters.PendingRecords,
		counters.ErrorRecords, counters.ConflictRecords,
		cursor, counters.Percent(), time.Now().UTC(), accountID, kind)
	if err != nil {
		return fmt.Errorf("completing sync: %w", err)
	}
	return requireRowAffected(res)
}

// Fail finishes a pass after a pass-fatal error, preserving the
// checkpoint cursor.
func (s *syncStateStore) Fail(ctx context.Context, accountID string, kind domain.RecordKind, counters domain.SyncCounters, message string, cursor string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE sync_states SET
			status = ?,
			total_records = ?, synced_records = ?, pending_records = ?,
			error_records = ?, conflict_records = ?,
			cursor = ?, current_operation = '', sync_error = ?
		WHERE account_id = ? AND kind = ?
	`, domain.RunError,
		counters.TotalRecords, counters.SyncedRecords, counters.PendingRecords,
		counters.ErrorRecords, counters.ConflictRecords,
		cursor, message, accountID, kind)
	if err != nil {
		return fmt.Errorf("failing sync: %w", err)
	}
	return requireRowAffected(res)
}

// SetEnabled toggles syncing for the pair, creating the row lazily.
func (s *syncStateStore) SetEnabled(ctx context.Context, accountID string, kind domain.RecordKind, enabled bool) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_states (account_id, kind, sync_enabled) VALUES (?, ?, ?)
		ON CONFLICT(account_id, kind) DO UPDATE SET sync_enabled = excluded.sync_enabled
	`, accountID, kind, enabled)
	if err != nil {
		return fmt.Errorf("setting enabled: %w", err)
	}
	return nil
}

// SetAutoSync toggles background scheduling for the pair.
func (s *syncStateStore) SetAutoSync(ctx context.Context, accountID string, kind domain.RecordKind, auto bool) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_states (account_id, kind, auto_sync) VALUES (?, ?, ?)
		ON CONFLICT(account_id, kind) DO UPDATE SET auto_sync = excluded.auto_sync
	`, accountID, kind, auto)
	if err != nil {
		return fmt.Errorf("setting auto sync: %w", err)
	}
	return nil
}

// Reset returns the pair to idle with counters and cursor cleared. The
// enabled and auto flags survive.
func (s *syncStateStore) Reset(ctx context.Context, accountID string, kind domain.RecordKind) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE sync_states SET
			status = ?,
			total_records = 0, synced_records = 0, pending_records = 0,
			error_records = 0, conflict_records = 0,
			cursor = '', last_successful_sync = NULL, last_sync_attempt = NULL,
			current_operation = '', progress_percentage = 0, sync_error = ''
		WHERE account_id = ? AND kind = ?
	`, domain.RunIdle, accountID, kind)
	if err != nil {
		return fmt.Errorf("resetting sync state: %w", err)
	}
	return requireRowAffected(res)
}

func scanSyncState(scanner rowScanner) (*domain.SyncState, error) {
	var state domain.SyncState
	var lastSuccess, lastAttempt sql.NullTime

	if err := scanner.Scan(&state.AccountID, &state.Kind, &state.Status,
		&state.Counters.TotalRecords, &state.Counters.SyncedRecords,
		&state.Counters.PendingRecords, &state.Counters.ErrorRecords,
		&state.Counters.ConflictRecords,
		&state.Cursor, &lastSuccess, &lastAttempt,
		&state.CurrentOperation, &state.ProgressPercentage, &state.SyncError,
		&state.SyncEnabled, &state.AutoSync); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning sync state: %w", err)
	}

	if lastSuccess.Valid {
		state.LastSuccessfulSyncAt = lastSuccess.Time
	}
	if lastAttempt.Valid {
		state.LastSyncAttemptAt = lastAttempt.Time
	}

	return &state, nil
}
