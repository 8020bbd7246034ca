// Package metrics counts vault operations on a private Prometheus registry.
package metrics

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cryptopack"

// Result label values
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Op label values
const (
	OpSign    = "sign"
	OpVerify  = "verify"
	OpEncrypt = "encrypt"
	OpDecrypt = "decrypt"
)

// Metrics holds the vault counters. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CredentialChecks *prometheus.CounterVec
	Signatures       *prometheus.CounterVec
	SymmetricOps     *prometheus.CounterVec
	AuthThrottled    prometheus.Counter
}

// New creates the counters and registers them on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CredentialChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_checks_total",
			Help:      "Password checks against stored credentials, by result.",
		}, []string{"result"}),
		Signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signatures_total",
			Help:      "Signing and verification operations, by operation and result.",
		}, []string{"op", "result"}),
		SymmetricOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "symmetric_ops_total",
			Help:      "Symmetric encryptions and decryptions, by operation and result.",
		}, []string{"op", "result"}),
		AuthThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_throttled_total",
			Help:      "Authentication attempts rejected by the rate limiter.",
		}),
	}
	m.registry.MustRegister(m.CredentialChecks, m.Signatures, m.SymmetricOps, m.AuthThrottled)
	return m
}

// Registry exposes the underlying registry for exporters
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// CredentialCheck records the outcome of a password check
func (m *Metrics) CredentialCheck(ok bool) {
	if m == nil {
		return
	}
	m.CredentialChecks.WithLabelValues(result(ok)).Inc()
}

// Signature records a sign or verify operation
func (m *Metrics) Signature(op string, ok bool) {
	if m == nil {
		return
	}
	m.Signatures.WithLabelValues(op, result(ok)).Inc()
}

// Symmetric records an encrypt or decrypt operation
func (m *Metrics) Symmetric(op string, ok bool) {
	if m == nil {
		return
	}
	m.SymmetricOps.WithLabelValues(op, result(ok)).Inc()
}

// Throttled records a rate limited authentication attempt
func (m *Metrics) Throttled() {
	if m == nil {
		return
	}
	m.AuthThrottled.Inc()
}

// Snapshot returns every counter value keyed by metric name and sorted labels,
// e.g. `cryptopack_signatures_total{op="sign",result="ok"}`.
func (m *Metrics) Snapshot() (map[string]float64, error) {
	out := make(map[string]float64)
	if m == nil {
		return out, nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				labels = append(labels, lp.GetName()+`="`+lp.GetValue()+`"`)
			}
			sort.Strings(labels)

			key := mf.GetName()
			if len(labels) > 0 {
				key += "{" + strings.Join(labels, ",") + "}"
			}
			out[key] = metric.GetCounter().GetValue()
		}
	}
	return out, nil
}

func result(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultFailed
}
