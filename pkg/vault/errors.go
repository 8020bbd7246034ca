package vault

import "errors"

var (
	// ErrNotInitialized is returned when the vault is used before Initialize or after Close
	ErrNotInitialized = errors.New("vault not initialized")

	// ErrInvalidName is returned for an empty username or key name
	ErrInvalidName = errors.New("invalid name")

	// ErrUserExists is returned when registering a username that is taken
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound is returned when removing a user that does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials is returned when a username and password do not match.
	// Unknown users fail the same way.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTooManyAttempts is returned when a username is being throttled
	ErrTooManyAttempts = errors.New("too many attempts")

	// ErrKeyExists is returned when creating a signing key under a name that is taken
	ErrKeyExists = errors.New("signing key already exists")

	// ErrKeyNotFound is returned when a named signing key does not exist
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrInvalidPassphrase is returned when a signing key can not be unlocked
	ErrInvalidPassphrase = errors.New("invalid passphrase")
)
