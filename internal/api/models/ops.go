package models

import "time"

// HealthStatus is the coarse state of the service or a dependency.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusDown     HealthStatus = "DOWN"
)

// Health is the body of the liveness and readiness endpoints.
type Health struct {
	Status  HealthStatus            `json:"status"`
	Time    time.Time               `json:"time"`
	Checks  map[string]HealthStatus `json:"checks,omitempty"`
	Details map[string]interface{}  `json:"details,omitempty"`
}

// ProviderStatus reports the circuit state of an upstream provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	Requests      uint32       `json:"requests"`
	Failures      uint32       `json:"consecutiveFailures"`
	LastSuccessAt *time.Time   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time   `json:"lastFailureAt,omitempty"`
	LastError     string       `json:"lastError,omitempty"`
}

// ProvidersResponse lists provider statuses.
type ProvidersResponse struct {
	Status    HealthStatus     `json:"status"`
	Providers []ProviderStatus `json:"providers"`
}
