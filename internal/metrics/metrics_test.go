package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()

	m.CredentialCheck(true)
	m.CredentialCheck(false)
	m.CredentialCheck(false)
	m.Signature(OpSign, true)
	m.Signature(OpVerify, false)
	m.Symmetric(OpDecrypt, false)
	m.Throttled()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"checks ok", testutil.ToFloat64(m.CredentialChecks.WithLabelValues(ResultOK)), 1},
		{"checks failed", testutil.ToFloat64(m.CredentialChecks.WithLabelValues(ResultFailed)), 2},
		{"sign ok", testutil.ToFloat64(m.Signatures.WithLabelValues(OpSign, ResultOK)), 1},
		{"verify failed", testutil.ToFloat64(m.Signatures.WithLabelValues(OpVerify, ResultFailed)), 1},
		{"decrypt failed", testutil.ToFloat64(m.SymmetricOps.WithLabelValues(OpDecrypt, ResultFailed)), 1},
		{"throttled", testutil.ToFloat64(m.AuthThrottled), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if n := testutil.CollectAndCount(m.CredentialChecks); n != 2 {
		t.Errorf("credential check series = %d, want 2", n)
	}
}

func TestSnapshot(t *testing.T) {
	m := New()
	m.Signature(OpSign, true)
	m.Signature(OpSign, true)
	m.Throttled()

	snap, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	if got := snap[`cryptopack_signatures_total{op="sign",result="ok"}`]; got != 2 {
		t.Errorf("signatures = %v, want 2", got)
	}
	if got := snap["cryptopack_auth_throttled_total"]; got != 1 {
		t.Errorf("throttled = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	m.CredentialCheck(true)
	m.Signature(OpSign, true)
	m.Symmetric(OpEncrypt, true)
	m.Throttled()

	if m.Registry() != nil {
		t.Error("nil metrics should have no registry")
	}
	snap, err := m.Snapshot()
	if err != nil || len(snap) != 0 {
		t.Errorf("Snapshot() = %v, %v", snap, err)
	}
}
