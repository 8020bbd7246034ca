package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/loganmanery/cryptopack/pkg/models"
)

func newTestStorage(t *testing.T) StorageService {
	t.Helper()
	s := NewStorageService(filepath.Join(t.TempDir(), "vault.db"))
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCredentials(t *testing.T) {
	s := newTestStorage(t)

	if _, err := s.GetCredential("alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.SaveCredential("alice", "10000;00;11"); err != nil {
		t.Fatalf("SaveCredential() error = %v", err)
	}
	if err := s.SaveCredential("bob", "10000;22;33"); err != nil {
		t.Fatal(err)
	}

	rec, err := s.GetCredential("alice")
	if err != nil {
		t.Fatalf("GetCredential() error = %v", err)
	}
	if rec.Stored != "10000;00;11" {
		t.Errorf("Stored = %q", rec.Stored)
	}
	if rec.CreatedAt.IsZero() || rec.LastUpdated.IsZero() {
		t.Error("timestamps not loaded")
	}

	// Saving again replaces the stored value and keeps the creation time
	if err := s.SaveCredential("alice", "10000;44;55"); err != nil {
		t.Fatal(err)
	}
	updated, err := s.GetCredential("alice")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Stored != "10000;44;55" {
		t.Errorf("Stored after update = %q", updated.Stored)
	}
	if !updated.CreatedAt.Equal(rec.CreatedAt) {
		t.Error("created_at changed on update")
	}

	names, err := s.ListUsernames()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "alice" || names[1] != "bob" {
		t.Errorf("ListUsernames() = %v", names)
	}

	if err := s.UpdateCredential("bob", "10000;66;77"); err != nil {
		t.Fatalf("UpdateCredential() error = %v", err)
	}
	if rec, _ := s.GetCredential("bob"); rec == nil || rec.Stored != "10000;66;77" {
		t.Errorf("UpdateCredential() did not replace the stored value: %+v", rec)
	}
	if err := s.UpdateCredential("carol", "10000;66;77"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateCredential(unknown): expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetCredential("carol"); !errors.Is(err, ErrNotFound) {
		t.Error("UpdateCredential created a missing user")
	}

	if err := s.DeleteCredential("alice"); err != nil {
		t.Fatalf("DeleteCredential() error = %v", err)
	}
	if err := s.DeleteCredential("alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestKeys(t *testing.T) {
	s := newTestStorage(t)

	key := &models.KeyRecord{
		Name:                "release",
		KeyID:               "QmExample",
		PublicKey:           `{"Exponent":"AQAB","Modulus":"AA=="}`,
		EncryptedPrivateKey: "00;11",
	}
	if err := s.SaveKey(key); err != nil {
		t.Fatalf("SaveKey() error = %v", err)
	}
	if key.CreatedAt.IsZero() {
		t.Error("SaveKey() did not stamp CreatedAt")
	}

	dup := *key
	if err := s.SaveKey(&dup); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate key: expected ErrExists, got %v", err)
	}

	got, err := s.GetKey("release")
	if err != nil {
		t.Fatalf("GetKey() error = %v", err)
	}
	if got.KeyID != key.KeyID || got.PublicKey != key.PublicKey || got.EncryptedPrivateKey != key.EncryptedPrivateKey {
		t.Errorf("GetKey() = %+v", got)
	}

	list, err := s.ListKeys()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "release" {
		t.Fatalf("ListKeys() = %+v", list)
	}
	if list[0].EncryptedPrivateKey != "" {
		t.Error("ListKeys() leaked the encrypted private key")
	}

	if _, err := s.GetKey("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteKey("release"); err != nil {
		t.Fatalf("DeleteKey() error = %v", err)
	}
	if err := s.DeleteKey("release"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAudit(t *testing.T) {
	s := newTestStorage(t)

	actions := []string{"register", "login", "sign"}
	var lastID int64
	for _, a := range actions {
		entry := &models.AuditEntry{Action: a, Subject: "alice", Details: "ok"}
		if err := s.AppendAudit(entry); err != nil {
			t.Fatalf("AppendAudit() error = %v", err)
		}
		if entry.ID <= lastID || entry.CreatedAt.IsZero() {
			t.Errorf("AppendAudit() left ID = %d, CreatedAt = %v", entry.ID, entry.CreatedAt)
		}
		lastID = entry.ID
	}

	entries, err := s.RecentAudit(2)
	if err != nil {
		t.Fatalf("RecentAudit() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("RecentAudit(2) returned %d entries", len(entries))
	}
	if entries[0].Action != "sign" || entries[1].Action != "login" {
		t.Errorf("unexpected order: %s, %s", entries[0].Action, entries[1].Action)
	}

	all, err := s.RecentAudit(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("RecentAudit(0) returned %d entries, want 3", len(all))
	}
}

func TestAuditTimes(t *testing.T) {
	s := newTestStorage(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []models.AuditEntry{
		{Action: "login_failed", Subject: "alice", CreatedAt: base},
		{Action: "login_failed", Subject: "alice", CreatedAt: base.Add(10 * time.Second)},
		{Action: "login_failed", Subject: "bob", CreatedAt: base.Add(15 * time.Second)},
		{Action: "login", Subject: "alice", CreatedAt: base.Add(20 * time.Second)},
		{Action: "login_failed", Subject: "alice", CreatedAt: base.Add(30*time.Second + 500*time.Millisecond)},
	}
	for i := range entries {
		if err := s.AppendAudit(&entries[i]); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		since time.Time
		want  []time.Time
	}{
		{"all", time.Time{}, []time.Time{base, base.Add(10 * time.Second), base.Add(30*time.Second + 500*time.Millisecond)}},
		{"inclusive bound", base.Add(10 * time.Second), []time.Time{base.Add(10 * time.Second), base.Add(30*time.Second + 500*time.Millisecond)}},
		{"fractional seconds", base.Add(30 * time.Second), []time.Time{base.Add(30*time.Second + 500*time.Millisecond)}},
		{"none", base.Add(time.Minute), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.AuditTimes("login_failed", "alice", tt.since)
			if err != nil {
				t.Fatalf("AuditTimes() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("AuditTimes() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if !got[i].Equal(tt.want[i]) {
					t.Errorf("AuditTimes()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}

	last, err := s.LastAudit("login", "alice")
	if err != nil {
		t.Fatalf("LastAudit() error = %v", err)
	}
	if !last.Equal(base.Add(20 * time.Second)) {
		t.Errorf("LastAudit() = %v", last)
	}
	if last, err := s.LastAudit("login", "bob"); err != nil || !last.IsZero() {
		t.Errorf("LastAudit(never) = %v, %v", last, err)
	}
}

func TestUseAfterClose(t *testing.T) {
	s := NewStorageService(filepath.Join(t.TempDir(), "vault.db"))
	if err := s.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ListUsernames(); err == nil {
		t.Error("ListUsernames() after Close succeeded")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")

	s := NewStorageService(path)
	if err := s.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveCredential("alice", "1;00;ff"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	again := NewStorageService(path)
	if err := again.Initialize(); err != nil {
		t.Fatalf("re-Initialize() error = %v", err)
	}
	defer again.Close()

	rec, err := again.GetCredential("alice")
	if err != nil {
		t.Fatalf("GetCredential() after reopen error = %v", err)
	}
	if rec.Stored != "1;00;ff" {
		t.Errorf("Stored = %q", rec.Stored)
	}
}
