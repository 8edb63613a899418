package webapi

import "time"

// Envelope is the standardized response wrapper every endpoint returns.
type Envelope struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Body      any       `json:"body"`
}

// HealthBody is the health check body.
type HealthBody struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Model   string `json:"model"`
}

// MetricInfo describes one catalog entry.
type MetricInfo struct {
	ID          string  `json:"id"`
	Weight      float64 `json:"weight"`
	Threshold   float64 `json:"threshold"`
	Kind        string  `json:"kind"`
	Description string  `json:"description"`
}

// MetricCatalogBody lists the active metric set.
type MetricCatalogBody struct {
	Metrics []MetricInfo `json:"metrics"`
}
