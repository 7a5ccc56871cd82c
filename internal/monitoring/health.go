package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker tracks feed connectivity and bar freshness for the live
// monitor's health endpoint.
type HealthChecker struct {
	mu          sync.RWMutex
	lastBar     time.Time
	lastPrice   float64
	isConnected bool
	errors      []string
}

// HealthStatus is the JSON body of the health endpoint.
type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	LastBar     time.Time `json:"last_bar"`
	LastPrice   float64   `json:"last_price"`
	IsConnected bool      `json:"is_connected"`
	Uptime      string    `json:"uptime"`
	Errors      []string  `json:"errors,omitempty"`
}

// NewHealthChecker creates an empty health checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// SetConnected updates the feed connectivity flag.
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isConnected = connected
}

// RecordBar notes the latest closed bar seen on any stream.
func (h *HealthChecker) RecordBar(ts time.Time, price float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastBar = ts
	h.lastPrice = price
}

// RecordError appends a fatal error for the health report.
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if !h.isConnected || time.Since(h.lastBar) > time.Hour*24 {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if len(h.errors) > 0 {
		status = "unhealthy"
		w.WriteHeader(http.StatusInternalServerError)
	}

	health := HealthStatus{
		Status:      status,
		Timestamp:   time.Now(),
		LastBar:     h.lastBar,
		LastPrice:   h.lastPrice,
		IsConnected: h.isConnected,
		Uptime:      time.Since(startTime).String(),
		Errors:      h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
