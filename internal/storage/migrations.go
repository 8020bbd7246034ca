package storage

// initializeSchema sets up the necessary database tables
func (s *SQLiteStorage) initializeSchema() error {
	// Create credentials table
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			username TEXT PRIMARY KEY,
			stored TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create signing keys table
	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS signing_keys (
			name TEXT PRIMARY KEY,
			key_id TEXT NOT NULL,
			public_key TEXT NOT NULL,
			encrypted_private_key TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create audit log table
	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			subject TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_signing_keys_key_id ON signing_keys(key_id)`)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_log_subject ON audit_log(subject)`)
	if err != nil {
		return err
	}

	return nil
}
