// Package webhook posts sweep completion summaries to a configured URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/m0h1nd4/parallel-ping-sweeper/internal/sweeper"
)

// Notifier sends a single completion callback per sweep.
type Notifier struct {
	url    string
	logger *zap.SugaredLogger
	client *http.Client
}

// Completion is the callback payload.
type Completion struct {
	SweepID     string `json:"sweep_id"`
	Network     string `json:"network"`
	Hosts       int    `json:"hosts"`
	Online      int    `json:"online"`
	GeneratedAt string `json:"generated_at"`
}

// NewNotifier creates a notifier for the given URL.
func NewNotifier(url string, logger *zap.SugaredLogger) *Notifier {
	return &Notifier{
		url:    url,
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyComplete posts the sweep summary. Failures are reported to the
// caller but are never fatal to the sweep itself.
func (n *Notifier) NotifyComplete(sweepID string, result *sweeper.Result) error {
	payload := Completion{
		SweepID:     sweepID,
		Network:     result.Network.String(),
		Hosts:       len(result.Outcomes),
		Online:      result.OnlineCount,
		GeneratedAt: result.GeneratedAt.UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warnw("Webhook failed", "url", n.url, "error", err)
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		n.logger.Warnw("Webhook returned error", "url", n.url, "status", resp.StatusCode)
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
