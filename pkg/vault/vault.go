// Package vault keeps user credentials and passphrase-protected signing keys
// in a SQLite database.
//
// Passwords are stored with the passwords package and never leave the vault in
// clear form. Signing keys are RSA keys whose private JSON is encrypted with
// the symmetric codec under a passphrase chosen by the key owner; the public
// JSON and key ID are stored in clear so anyone can verify.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loganmanery/cryptopack/internal/logging"
	"github.com/loganmanery/cryptopack/internal/metrics"
	"github.com/loganmanery/cryptopack/internal/ratelimit"
	"github.com/loganmanery/cryptopack/internal/storage"
	"github.com/loganmanery/cryptopack/pkg/models"
	"github.com/loganmanery/cryptopack/pkg/passwords"
	"github.com/loganmanery/cryptopack/pkg/signatures"
	"github.com/loganmanery/cryptopack/pkg/symmetric"
)

// Audit actions
const (
	ActionRegister       = "register"
	ActionLogin          = "login"
	ActionLoginFailed    = "login_failed"
	ActionLoginThrottled = "login_throttled"
	ActionPasswordChange = "password_change"
	ActionRemoveUser     = "remove_user"
	ActionCreateKey      = "create_key"
	ActionRemoveKey      = "remove_key"
	ActionSign           = "sign"
)

// decoyPassword is checked for unknown users so they cost as much as known ones
var decoyPassword = passwords.New(passwords.DefaultIterations,
	make([]byte, passwords.SaltSize), make([]byte, passwords.KeySize))

// Vault handles credential and signing key operations
type Vault struct {
	storage storage.StorageService
	logger  *slog.Logger
	metrics *metrics.Metrics
	limiter *ratelimit.KeyLimiter
	keyBits int
	clock   func() time.Time

	// writeMu serializes check-then-write sequences
	writeMu sync.Mutex

	mu           sync.RWMutex
	initialized  bool
	lastActivity time.Time
}

// New creates a vault backed by the SQLite database at storagePath
func New(storagePath string, opts ...Option) *Vault {
	return NewWithStorage(storage.NewStorageService(storagePath), opts...)
}

// NewWithStorage creates a vault over an existing storage service
func NewWithStorage(s storage.StorageService, opts ...Option) *Vault {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.Discard()
	}
	if cfg.metrics == nil {
		cfg.metrics = metrics.New()
	}

	return &Vault{
		storage:      s,
		logger:       cfg.logger,
		metrics:      cfg.metrics,
		limiter:      cfg.limiter,
		keyBits:      cfg.keyBits,
		clock:        cfg.clock,
		lastActivity: cfg.clock(),
	}
}

// Initialize opens the database
func (v *Vault) Initialize() error {
	if err := v.storage.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	v.mu.Lock()
	v.initialized = true
	v.mu.Unlock()
	return nil
}

// Close closes the vault and its storage
func (v *Vault) Close() error {
	v.mu.Lock()
	v.initialized = false
	v.mu.Unlock()
	return v.storage.Close()
}

// Register stores a new user's password
func (v *Vault) Register(username, password string) error {
	if err := v.ready(); err != nil {
		return err
	}
	if err := validName(username); err != nil {
		return err
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	_, err := v.storage.GetCredential(username)
	switch {
	case err == nil:
		return ErrUserExists
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if err := v.saveCredential(username, password); err != nil {
		return err
	}

	v.logger.Info("user registered", "username", username)
	v.audit(ActionRegister, username, "")
	return nil
}

// Authenticate checks a user's password. Unknown users and wrong passwords
// both return ErrInvalidCredentials; repeated attempts for one username
// return ErrTooManyAttempts once the rate limit is reached. Failed attempts
// are read back from the audit log, so the limit holds across processes
// sharing one database.
func (v *Vault) Authenticate(username, password string) error {
	if err := v.ready(); err != nil {
		return err
	}

	now := v.clock()
	v.seedLimiter(username, now)
	if !v.limiter.Allow(username, now) {
		v.metrics.Throttled()
		v.logger.Warn("authentication throttled", "username", username)
		v.audit(ActionLoginThrottled, username, "")
		return ErrTooManyAttempts
	}

	ok, err := v.checkPassword(username, password)
	if err != nil {
		return err
	}
	v.metrics.CredentialCheck(ok)

	if !ok {
		v.logger.Warn("authentication failed", "username", username)
		v.audit(ActionLoginFailed, username, "")
		return ErrInvalidCredentials
	}

	v.limiter.Reset(username)
	v.logger.Debug("authenticated", "username", username)
	v.audit(ActionLogin, username, "")
	return nil
}

// ChangePassword replaces a user's password after checking the current one
func (v *Vault) ChangePassword(username, oldPassword, newPassword string) error {
	if err := v.Authenticate(username, oldPassword); err != nil {
		return err
	}

	stored, err := passwords.FromPlainText(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	// The user may have been removed since the check above
	if err := v.storage.UpdateCredential(username, stored.String()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to save credential: %w", err)
	}

	v.logger.Info("password changed", "username", username)
	v.audit(ActionPasswordChange, username, "")
	return nil
}

// RemoveUser deletes a user
func (v *Vault) RemoveUser(username string) error {
	if err := v.ready(); err != nil {
		return err
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	if err := v.storage.DeleteCredential(username); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	v.logger.Info("user removed", "username", username)
	v.audit(ActionRemoveUser, username, "")
	return nil
}

// Users lists registered usernames in order
func (v *Vault) Users() ([]string, error) {
	if err := v.ready(); err != nil {
		return nil, err
	}
	return v.storage.ListUsernames()
}

// CreateSigningKey generates an RSA key named name. The private key is
// stored encrypted under passphrase and is needed again only to sign.
func (v *Vault) CreateSigningKey(name, passphrase string) (models.KeyRecord, error) {
	if err := v.ready(); err != nil {
		return models.KeyRecord{}, err
	}
	if err := validName(name); err != nil {
		return models.KeyRecord{}, err
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	_, err := v.storage.GetKey(name)
	switch {
	case err == nil:
		return models.KeyRecord{}, ErrKeyExists
	case !errors.Is(err, storage.ErrNotFound):
		return models.KeyRecord{}, fmt.Errorf("failed to look up key: %w", err)
	}

	priv, err := signatures.GeneratePrivateKeyBits(v.keyBits)
	if err != nil {
		return models.KeyRecord{}, fmt.Errorf("failed to generate key: %w", err)
	}

	privJSON, err := json.Marshal(priv)
	if err != nil {
		return models.KeyRecord{}, fmt.Errorf("failed to encode private key: %w", err)
	}
	defer clear(privJSON)

	pubJSON, err := json.Marshal(priv.Public())
	if err != nil {
		return models.KeyRecord{}, fmt.Errorf("failed to encode public key: %w", err)
	}

	encrypted, err := symmetric.Encrypt(string(privJSON), passphrase)
	v.metrics.Symmetric(metrics.OpEncrypt, err == nil)
	if err != nil {
		return models.KeyRecord{}, fmt.Errorf("failed to encrypt private key: %w", err)
	}

	rec := models.KeyRecord{
		Name:                name,
		KeyID:               signatures.KeyID(priv.Public()),
		PublicKey:           string(pubJSON),
		EncryptedPrivateKey: encrypted,
		CreatedAt:           v.clock().UTC(),
	}
	if err := v.storage.SaveKey(&rec); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return models.KeyRecord{}, ErrKeyExists
		}
		return models.KeyRecord{}, fmt.Errorf("failed to save key: %w", err)
	}

	v.logger.Info("signing key created", "key_name", name, "key_id", rec.KeyID, "bits", priv.Bits())
	v.audit(ActionCreateKey, name, rec.KeyID)
	return rec, nil
}

// Sign signs data with the named key, unlocking it with passphrase
func (v *Vault) Sign(name, passphrase string, data []byte) (string, error) {
	return v.sign(name, passphrase, len(data), func(priv signatures.PrivateKey) (string, error) {
		return signatures.Sign(data, priv)
	})
}

// SignString signs the UTF-16LE encoding of text with the named key
func (v *Vault) SignString(name, passphrase, text string) (string, error) {
	return v.sign(name, passphrase, len(text), func(priv signatures.PrivateKey) (string, error) {
		return signatures.SignString(text, priv)
	})
}

func (v *Vault) sign(name, passphrase string, size int, fn func(signatures.PrivateKey) (string, error)) (string, error) {
	if err := v.ready(); err != nil {
		return "", err
	}

	rec, err := v.loadKey(name)
	if err != nil {
		return "", err
	}
	priv, err := v.unlock(rec, passphrase)
	if err != nil {
		v.metrics.Signature(metrics.OpSign, false)
		v.logger.Warn("signing key unlock failed", "key_name", name)
		return "", err
	}

	sig, err := fn(priv)
	v.metrics.Signature(metrics.OpSign, err == nil)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}

	v.audit(ActionSign, name, fmt.Sprintf("%d bytes", size))
	return sig, nil
}

// Verify checks a signature over data against the named key's public key
func (v *Vault) Verify(name string, data []byte, signature string) (bool, error) {
	return v.verify(name, func(pub signatures.PublicKey) bool {
		return signatures.Verify(data, signature, pub)
	})
}

// VerifyString checks a signature over the UTF-16LE encoding of text
func (v *Vault) VerifyString(name, text, signature string) (bool, error) {
	return v.verify(name, func(pub signatures.PublicKey) bool {
		return signatures.VerifyString(text, signature, pub)
	})
}

func (v *Vault) verify(name string, fn func(signatures.PublicKey) bool) (bool, error) {
	pub, err := v.PublicKey(name)
	if err != nil {
		return false, err
	}
	ok := fn(pub)
	v.metrics.Signature(metrics.OpVerify, ok)
	return ok, nil
}

// PublicKey returns the named key's public part
func (v *Vault) PublicKey(name string) (signatures.PublicKey, error) {
	if err := v.ready(); err != nil {
		return signatures.PublicKey{}, err
	}

	rec, err := v.loadKey(name)
	if err != nil {
		return signatures.PublicKey{}, err
	}
	pub, err := signatures.ParsePublicKey([]byte(rec.PublicKey))
	if err != nil {
		return signatures.PublicKey{}, fmt.Errorf("stored public key is unreadable: %w", err)
	}
	return pub, nil
}

// Keys lists signing keys without their encrypted private part
func (v *Vault) Keys() ([]models.KeyRecord, error) {
	if err := v.ready(); err != nil {
		return nil, err
	}
	return v.storage.ListKeys()
}

// RemoveKey deletes a signing key
func (v *Vault) RemoveKey(name string) error {
	if err := v.ready(); err != nil {
		return err
	}

	if err := v.storage.DeleteKey(name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to delete key: %w", err)
	}

	v.logger.Info("signing key removed", "key_name", name)
	v.audit(ActionRemoveKey, name, "")
	return nil
}

// Audit returns the newest audit entries first; limit <= 0 returns all
func (v *Vault) Audit(limit int) ([]models.AuditEntry, error) {
	if err := v.ready(); err != nil {
		return nil, err
	}
	return v.storage.RecentAudit(limit)
}

// Metrics returns the current operation counters
func (v *Vault) Metrics() (map[string]float64, error) {
	return v.metrics.Snapshot()
}

// LastActivity returns the time of the last vault operation
func (v *Vault) LastActivity() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastActivity
}

// ready fails with ErrNotInitialized when storage is closed, otherwise it
// records activity.
func (v *Vault) ready() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		return ErrNotInitialized
	}
	v.lastActivity = v.clock()
	return nil
}

func (v *Vault) saveCredential(username, password string) error {
	stored, err := passwords.FromPlainText(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := v.storage.SaveCredential(username, stored.String()); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (v *Vault) checkPassword(username, password string) (bool, error) {
	rec, err := v.storage.GetCredential(username)
	if errors.Is(err, storage.ErrNotFound) {
		decoyPassword.Check(password)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load credential: %w", err)
	}

	stored, err := passwords.Parse(rec.Stored)
	if err != nil {
		return false, fmt.Errorf("stored credential is unreadable: %w", err)
	}
	return stored.Check(password), nil
}

func (v *Vault) loadKey(name string) (*models.KeyRecord, error) {
	rec, err := v.storage.GetKey(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to load key: %w", err)
	}
	return rec, nil
}

// unlock decrypts a stored private key and checks it matches the stored public key
func (v *Vault) unlock(rec *models.KeyRecord, passphrase string) (signatures.PrivateKey, error) {
	plain, err := symmetric.Decrypt(rec.EncryptedPrivateKey, passphrase)
	v.metrics.Symmetric(metrics.OpDecrypt, err == nil)
	if err != nil {
		return signatures.PrivateKey{}, ErrInvalidPassphrase
	}

	priv, err := signatures.ParsePrivateKey([]byte(plain))
	if err != nil {
		return signatures.PrivateKey{}, ErrInvalidPassphrase
	}

	pub, err := signatures.ParsePublicKey([]byte(rec.PublicKey))
	if err != nil {
		return signatures.PrivateKey{}, fmt.Errorf("stored public key is unreadable: %w", err)
	}
	if !priv.Public().Equal(pub) {
		return signatures.PrivateKey{}, ErrInvalidPassphrase
	}
	return priv, nil
}

// seedLimiter replays the failures recorded since the last successful login
// into the bucket of a username this process has not tracked yet
func (v *Vault) seedLimiter(username string, now time.Time) {
	if v.limiter == nil || v.limiter.Tracks(username) {
		return
	}

	since := now.Add(-v.limiter.Window())
	last, err := v.storage.LastAudit(ActionLogin, username)
	if err != nil {
		v.logger.Warn("failed to read login history", "username", username, "error", err)
		return
	}
	if last.After(since) {
		since = last
	}

	attempts, err := v.storage.AuditTimes(ActionLoginFailed, username, since)
	if err != nil {
		v.logger.Warn("failed to read login history", "username", username, "error", err)
		return
	}
	v.limiter.Seed(username, attempts, now)
}

func (v *Vault) audit(action, subject, details string) {
	entry := &models.AuditEntry{
		Action:    action,
		Subject:   subject,
		Details:   details,
		CreatedAt: v.clock(),
	}
	if err := v.storage.AppendAudit(entry); err != nil {
		v.logger.Warn("failed to write audit entry", "action", action, "error", err)
	}
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	return nil
}
