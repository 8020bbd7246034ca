package models

import "time"

// CredentialRecord is a user's stored password in "iterations;salt;key" form
type CredentialRecord struct {
	Username    string
	Stored      string
	CreatedAt   time.Time
	LastUpdated time.Time
}

// KeyRecord is a named signing key. The private key JSON is kept only in
// encrypted form, as written by the symmetric codec.
type KeyRecord struct {
	Name                string
	KeyID               string
	PublicKey           string
	EncryptedPrivateKey string
	CreatedAt           time.Time
}

// AuditEntry is one line of the vault audit log
type AuditEntry struct {
	ID        int64
	Action    string
	Subject   string
	Details   string
	CreatedAt time.Time
}
