package internal

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

type Metrics struct {
	connects         atomic.Uint64
	authFailures     atomic.Uint64
	activeConns      atomic.Int64
	delivered        atomic.Uint64
	deliveryFailures atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncConn() {
	m.connects.Add(1)
	m.activeConns.Add(1)
}

func (m *Metrics) DecConn() {
	m.activeConns.Add(-1)
}

func (m *Metrics) IncAuthFailure() {
	m.authFailures.Add(1)
}

func (m *Metrics) IncDelivered() {
	m.delivered.Add(1)
}

func (m *Metrics) IncDeliveryFailure() {
	m.deliveryFailures.Add(1)
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"connects_total":          m.connects.Load(),
		"auth_failures_total":     m.authFailures.Load(),
		"active_connections":      m.activeConns.Load(),
		"events_delivered_total":  m.delivered.Load(),
		"delivery_failures_total": m.deliveryFailures.Load(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
