package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func decodeJSON(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v (%s)", err, buf.String())
	}
	return payload
}

func TestRedactingHandler_SensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil)))

	logger.Info("register",
		"password", "123",
		"new_passphrase", "correct horse",
		"private_key", "{...}",
		"key_id", "QmKey",
		"status", "ok",
	)

	payload := decodeJSON(t, &buf)
	for _, key := range []string{"password", "new_passphrase", "private_key"} {
		if got, _ := payload[key].(string); got != Redacted {
			t.Errorf("%s = %q, want %q", key, got, Redacted)
		}
	}
	if payload["key_id"] != "QmKey" {
		t.Errorf("key_id = %v, want QmKey", payload["key_id"])
	}
	if payload["status"] != "ok" {
		t.Errorf("status = %v, want ok", payload["status"])
	}
}

func TestRedactingHandler_FingerprintsUsernames(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil)))

	logger.Info("login", "username", "alice")

	payload := decodeJSON(t, &buf)
	if _, ok := payload["username"]; ok {
		t.Fatal("plain username should not be present")
	}
	fp, _ := payload["username_fp"].(string)
	if !strings.HasPrefix(fp, "fp_") {
		t.Fatalf("username_fp = %q", fp)
	}
	if fp != Fingerprint("alice") {
		t.Error("fingerprint is not stable within the process")
	}
	if Fingerprint("bob") == fp {
		t.Error("different usernames share a fingerprint")
	}
	if Fingerprint("  ") != "" {
		t.Error("blank value should have an empty fingerprint")
	}
}

func TestRedactingHandler_WithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil))).
		With("secret", "s3cr3t")

	logger.Info("nested", slog.Group("request", slog.String("token", "abc"), slog.Int("size", 3)))

	out := buf.String()
	if strings.Contains(out, "s3cr3t") || strings.Contains(out, "abc") {
		t.Fatalf("secret leaked: %s", out)
	}

	payload := decodeJSON(t, &buf)
	group, ok := payload["request"].(map[string]any)
	if !ok {
		t.Fatalf("request group missing: %v", payload)
	}
	if group["size"] != float64(3) {
		t.Errorf("size = %v, want 3", group["size"])
	}
}

func TestRedactingHandler_Contract(t *testing.T) {
	var buf bytes.Buffer
	h := WrapHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}

	rec := slog.NewRecord(time.Now().UTC(), slog.LevelError, "msg", 0)
	rec.AddAttrs(slog.String("user", "bob"))
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !strings.Contains(buf.String(), "user_fp") {
		t.Errorf("expected user_fp, got %s", buf.String())
	}

	if WrapHandler(nil) != nil {
		t.Error("WrapHandler(nil) should be nil")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"defaults", "", "", false},
		{"json debug", "debug", "json", false},
		{"text warn", "WARN", "text", false},
		{"bad level", "loud", "text", true},
		{"bad format", "info", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(tt.level, tt.format, &buf)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			logger.Error("hello", "password", "pw")
			if strings.Contains(buf.String(), "pw\"") || !strings.Contains(buf.String(), Redacted) {
				t.Errorf("unexpected output %s", buf.String())
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	if Discard().Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard logger should not be enabled")
	}
}
