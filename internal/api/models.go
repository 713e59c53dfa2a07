// Package api provides the HTTP API for sweep service mode.
package api

import "github.com/m0h1nd4/parallel-ping-sweeper/internal/report"

// SweepRequest represents the request body for starting a sweep. Zero
// values fall back to the server's configured defaults.
type SweepRequest struct {
	Network     string  `json:"network" binding:"required"`
	Concurrency int     `json:"concurrency"`
	TimeoutS    float64 `json:"timeout_s"`
	Count       int     `json:"count"`
	OnlyOnline  bool    `json:"only_online"`
	RateLimit   int     `json:"rate_limit"`
	Probe       string  `json:"probe"`
}

// SweepAccepted is returned when a sweep job has been admitted.
type SweepAccepted struct {
	SweepID string `json:"sweep_id"`
	Status  string `json:"status"`
	Network string `json:"network"`
}

// SweepStatus describes one sweep job. Report is present once the job has
// completed and carries the same document as the JSON file export.
type SweepStatus struct {
	SweepID    string           `json:"sweep_id"`
	Status     string           `json:"status"`
	Network    string           `json:"network"`
	StartedAt  string           `json:"started_at"`
	FinishedAt string           `json:"finished_at,omitempty"`
	Error      string           `json:"error,omitempty"`
	Report     *report.Document `json:"report,omitempty"`
}
