package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/loganmanery/cryptopack/pkg/models"
)

// ErrExists is returned when saving a key under a name that is taken
var ErrExists = errors.New("already exists")

// SQLiteStorage implements StorageService using SQLite
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// newSQLiteStorage creates a new SQLite storage service
func newSQLiteStorage(dbPath string) *SQLiteStorage {
	return &SQLiteStorage{
		dbPath: dbPath,
	}
}

// Initialize initializes the database connection and tables
func (s *SQLiteStorage) Initialize() error {
	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps writers from tripping over SQLITE_BUSY
	db.SetMaxOpenConns(1)
	s.db = db

	if err := s.initializeSchema(); err != nil {
		db.Close()
		s.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database connection. The handle is kept so that calls
// racing with Close get "database is closed" errors.
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveCredential inserts or replaces the stored password of a user
func (s *SQLiteStorage) SaveCredential(username, stored string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO credentials (username, stored, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET stored = excluded.stored, updated_at = excluded.updated_at
	`, username, stored, now, now)
	return err
}

// UpdateCredential replaces the stored password of an existing user
func (s *SQLiteStorage) UpdateCredential(username, stored string) error {
	result, err := s.db.Exec(`
		UPDATE credentials SET stored = ?, updated_at = ? WHERE username = ?
	`, stored, time.Now().UTC(), username)
	if err != nil {
		return err
	}
	return requireAffected(result, "credential", username)
}

// GetCredential retrieves a user's stored password
func (s *SQLiteStorage) GetCredential(username string) (*models.CredentialRecord, error) {
	var rec models.CredentialRecord
	err := s.db.QueryRow(`
		SELECT username, stored, created_at, updated_at
		FROM credentials WHERE username = ?
	`, username).Scan(&rec.Username, &rec.Stored, &rec.CreatedAt, &rec.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("credential %q: %w", username, ErrNotFound)
		}
		return nil, err
	}
	return &rec, nil
}

// DeleteCredential removes a user
func (s *SQLiteStorage) DeleteCredential(username string) error {
	result, err := s.db.Exec("DELETE FROM credentials WHERE username = ?", username)
	if err != nil {
		return err
	}
	return requireAffected(result, "credential", username)
}

// ListUsernames lists users in name order
func (s *SQLiteStorage) ListUsernames() ([]string, error) {
	rows, err := s.db.Query("SELECT username FROM credentials ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SaveKey inserts a signing key; names are unique
func (s *SQLiteStorage) SaveKey(key *models.KeyRecord) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO signing_keys (name, key_id, public_key, encrypted_private_key, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, key.Name, key.KeyID, key.PublicKey, key.EncryptedPrivateKey, key.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("key %q: %w", key.Name, ErrExists)
		}
		return err
	}
	return nil
}

// GetKey retrieves a signing key by name
func (s *SQLiteStorage) GetKey(name string) (*models.KeyRecord, error) {
	var key models.KeyRecord
	err := s.db.QueryRow(`
		SELECT name, key_id, public_key, encrypted_private_key, created_at
		FROM signing_keys WHERE name = ?
	`, name).Scan(&key.Name, &key.KeyID, &key.PublicKey, &key.EncryptedPrivateKey, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("key %q: %w", name, ErrNotFound)
		}
		return nil, err
	}
	return &key, nil
}

// ListKeys lists signing keys without their private part
func (s *SQLiteStorage) ListKeys() ([]models.KeyRecord, error) {
	rows, err := s.db.Query(`
		SELECT name, key_id, public_key, created_at
		FROM signing_keys ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []models.KeyRecord
	for rows.Next() {
		var key models.KeyRecord
		if err := rows.Scan(&key.Name, &key.KeyID, &key.PublicKey, &key.CreatedAt); err != nil {
			return nil, err
		}
		// Note: the encrypted private key is not loaded here
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeleteKey removes a signing key
func (s *SQLiteStorage) DeleteKey(name string) error {
	result, err := s.db.Exec("DELETE FROM signing_keys WHERE name = ?", name)
	if err != nil {
		return err
	}
	return requireAffected(result, "key", name)
}

// AppendAudit records an action and sets the entry ID
func (s *SQLiteStorage) AppendAudit(entry *models.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	result, err := s.db.Exec(`
		INSERT INTO audit_log (action, subject, details, created_at)
		VALUES (?, ?, ?, ?)
	`, entry.Action, entry.Subject, entry.Details, entry.CreatedAt)
	if err != nil {
		return err
	}
	entry.ID, err = result.LastInsertId()
	return err
}

// AuditTimes returns, oldest first, when action was recorded for subject at
// or after since
func (s *SQLiteStorage) AuditTimes(action, subject string, since time.Time) ([]time.Time, error) {
	rows, err := s.db.Query(`
		SELECT created_at FROM audit_log
		WHERE action = ? AND subject = ? AND created_at >= ?
		ORDER BY id
	`, action, subject, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, err
		}
		times = append(times, at)
	}
	return times, rows.Err()
}

// LastAudit returns when action was last recorded for subject, or the zero
// time if never
func (s *SQLiteStorage) LastAudit(action, subject string) (time.Time, error) {
	var at time.Time
	err := s.db.QueryRow(`
		SELECT created_at FROM audit_log
		WHERE action = ? AND subject = ?
		ORDER BY id DESC LIMIT 1
	`, action, subject).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	return at, err
}

// RecentAudit returns the newest audit entries first. A limit of zero or
// less returns every entry.
func (s *SQLiteStorage) RecentAudit(limit int) ([]models.AuditEntry, error) {
	query := `SELECT id, action, subject, details, created_at FROM audit_log ORDER BY id DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.Subject, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func requireAffected(result sql.Result, kind, name string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", kind, name, ErrNotFound)
	}
	return nil
}
