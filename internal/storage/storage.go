package storage

import (
	"errors"
	"time"

	"github.com/loganmanery/cryptopack/pkg/models"
)

// ErrNotFound is returned when a credential or key does not exist
var ErrNotFound = errors.New("not found")

// StorageService defines the interface for database operations
type StorageService interface {
	// Initialize opens the storage and creates the schema
	Initialize() error

	// Close closes the storage connection
	Close() error

	// SaveCredential inserts or replaces the stored password of a user
	SaveCredential(username, stored string) error

	// UpdateCredential replaces the stored password of an existing user,
	// returning ErrNotFound if there is none
	UpdateCredential(username, stored string) error

	// GetCredential retrieves a user's stored password
	GetCredential(username string) (*models.CredentialRecord, error)

	// DeleteCredential removes a user
	DeleteCredential(username string) error

	// ListUsernames lists users in name order
	ListUsernames() ([]string, error)

	// SaveKey inserts a signing key; names are unique
	SaveKey(key *models.KeyRecord) error

	// GetKey retrieves a signing key by name
	GetKey(name string) (*models.KeyRecord, error)

	// ListKeys lists signing keys without their private part
	ListKeys() ([]models.KeyRecord, error)

	// DeleteKey removes a signing key
	DeleteKey(name string) error

	// AppendAudit records an action; a zero CreatedAt means now
	AppendAudit(entry *models.AuditEntry) error

	// RecentAudit returns the newest audit entries first
	RecentAudit(limit int) ([]models.AuditEntry, error)

	// AuditTimes lists, oldest first, when action was recorded for subject since a time
	AuditTimes(action, subject string, since time.Time) ([]time.Time, error)

	// LastAudit returns when action was last recorded for subject, or the zero time
	LastAudit(action, subject string) (time.Time, error)
}

// NewStorageService creates a new instance of the default storage service
func NewStorageService(dbPath string) StorageService {
	return newSQLiteStorage(dbPath)
}
