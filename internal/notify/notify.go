// Package notify delivers best-effort review-decision events to an
// external endpoint. Delivery failures are logged and never block the
// decision itself.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/ewaste-pickup/internal/models"
)

// Decision describes a settled review of a pickup request.
type Decision struct {
	RequestID     string               `json:"request_id"`
	Status        models.RequestStatus `json:"status"`
	AdminID       string               `json:"admin_id"`
	PointsAwarded int                  `json:"points_awarded,omitempty"`
}

// Notifier publishes review decisions.
type Notifier interface {
	DecisionMade(ctx context.Context, d Decision)
}

// Webhook posts each decision as JSON to a configured endpoint.
type Webhook struct {
	Endpoint string
	Client   *http.Client
	Logger   *slog.Logger
}

func NewWebhook(endpoint string, logger *slog.Logger) *Webhook {
	return &Webhook{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 3 * time.Second},
		Logger:   logger,
	}
}

func (w *Webhook) DecisionMade(ctx context.Context, d Decision) {
	body, err := json.Marshal(d)
	if err != nil {
		w.Logger.Error("decision payload marshal failed", "error", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, bytes.NewReader(body))
	if err != nil {
		w.Logger.Error("decision notify failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		w.Logger.Warn("decision notify failed", "request_id", d.RequestID, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.Logger.Warn("decision notify rejected",
			"request_id", d.RequestID, "error", fmt.Errorf("status %d", resp.StatusCode))
	}
}

// Nop discards decisions; used when no webhook is configured.
type Nop struct{}

func (Nop) DecisionMade(context.Context, Decision) {}
