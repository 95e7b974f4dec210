package model

import (
	"sync"
	"time"
)

// EndpointHealth is a point-in-time snapshot of one endpoint's circuit state.
type EndpointHealth struct {
	Available       bool      `json:"available"`
	LastSuccess     time.Time `json:"last_success,omitempty"`
	LastFailure     time.Time `json:"last_failure,omitempty"`
	FailureCount    int       `json:"failure_count"`
	CircuitOpen     bool      `json:"circuit_open"`
	CircuitOpenedAt time.Time `json:"circuit_opened_at,omitempty"`
}

// HealthConfig tunes the per-endpoint circuit breaker.
type HealthConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit blocks before a probe
	// request is allowed through.
	RecoveryTimeout time.Duration

	// HalfOpenRequests is how many probe requests the half-open state admits.
	HalfOpenRequests int
}

func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenRequests: 1,
	}
}

type healthTracker struct {
	mu        sync.RWMutex
	config    HealthConfig
	endpoints map[string]*EndpointHealth
}

func newHealthTracker(cfg HealthConfig) *healthTracker {
	return &healthTracker{
		config:    cfg,
		endpoints: make(map[string]*EndpointHealth),
	}
}

// tracker lazily initializes health tracking with defaults. Registries built
// from config may never call SetHealthConfig.
func (r *Registry) tracker() *healthTracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.health == nil {
		r.health = newHealthTracker(DefaultHealthConfig())
	}
	return r.health
}

func (h *healthTracker) ensure(name string) *EndpointHealth {
	if status, ok := h.endpoints[name]; ok {
		return status
	}
	status := &EndpointHealth{Available: true}
	h.endpoints[name] = status
	return status
}

// MarkEndpointSuccess resets the failure streak and closes the circuit.
func (r *Registry) MarkEndpointSuccess(name string) {
	h := r.tracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	status := h.ensure(name)
	status.LastSuccess = time.Now()
	status.FailureCount = 0
	status.Available = true
	status.CircuitOpen = false
}

// MarkEndpointFailure records a failure; the circuit opens once the streak
// reaches the configured threshold.
func (r *Registry) MarkEndpointFailure(name string) {
	h := r.tracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	status := h.ensure(name)
	status.LastFailure = time.Now()
	status.FailureCount++

	if status.FailureCount >= h.config.FailureThreshold {
		status.CircuitOpen = true
		status.CircuitOpenedAt = time.Now()
		status.Available = false
	}
}

// IsEndpointAvailable reports whether requests may be sent to the endpoint.
// Endpoints without history are available; an open circuit admits a probe
// once the recovery timeout has elapsed.
func (r *Registry) IsEndpointAvailable(name string) bool {
	r.mu.RLock()
	h := r.health
	r.mu.RUnlock()
	if h == nil {
		return true
	}

	h.mu.RLock()
	status, ok := h.endpoints[name]
	if !ok {
		h.mu.RUnlock()
		return true
	}
	open := status.CircuitOpen
	openedAt := status.CircuitOpenedAt
	timeout := h.config.RecoveryTimeout
	h.mu.RUnlock()

	if !open {
		return true
	}
	return time.Since(openedAt) > timeout
}

// GetEndpointHealth returns a copy of the endpoint's health, or nil when the
// endpoint has no recorded history.
func (r *Registry) GetEndpointHealth(name string) *EndpointHealth {
	r.mu.RLock()
	h := r.health
	r.mu.RUnlock()
	if h == nil {
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	status, ok := h.endpoints[name]
	if !ok {
		return nil
	}
	snapshot := *status
	return &snapshot
}

// GetAvailableFallbackChain filters the capability's fallback chain down to
// endpoints whose circuits admit requests. When every circuit is open the
// full chain is returned so the caller still has something to try.
func (r *Registry) GetAvailableFallbackChain(cap Capability) []string {
	chain := r.GetFallbackChain(cap)

	available := make([]string, 0, len(chain))
	for _, name := range chain {
		if r.IsEndpointAvailable(name) {
			available = append(available, name)
		}
	}
	if len(available) == 0 {
		return chain
	}
	return available
}

// SetHealthConfig replaces the circuit breaker tuning. Recorded endpoint
// state is preserved.
func (r *Registry) SetHealthConfig(cfg HealthConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.health == nil {
		r.health = newHealthTracker(cfg)
		return
	}
	r.health.mu.Lock()
	r.health.config = cfg
	r.health.mu.Unlock()
}

// ResetEndpointHealth forgets everything recorded about an endpoint.
func (r *Registry) ResetEndpointHealth(name string) {
	r.mu.RLock()
	h := r.health
	r.mu.RUnlock()
	if h == nil {
		return
	}

	h.mu.Lock()
	delete(h.endpoints, name)
	h.mu.Unlock()
}
