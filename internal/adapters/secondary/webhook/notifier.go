package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"ml-governance-service/internal/core/domain"
	ports "ml-governance-service/internal/core/ports/output"
)

// Notifier delivers governance notifications to an administrator webhook.
// A non-2xx response is a delivery failure; for promotions that aborts the
// production swap upstream.
type Notifier struct {
	endpoint string
	client   *http.Client
}

func NewNotifier(endpoint string, timeout time.Duration) *Notifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (n *Notifier) NotifyPromotion(ctx context.Context, notice ports.PromotionNotice) error {
	return n.post(ctx, "promotion", notice)
}

func (n *Notifier) NotifyRetraining(ctx context.Context, decision *domain.RetrainingDecision) error {
	return n.post(ctx, "retraining", decision)
}

func (n *Notifier) post(ctx context.Context, event string, payload interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"event":   event,
		"payload": payload,
		"sent_at": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", event, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s notification request: %w", event, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s notification: %w", event, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deliver %s notification: webhook returned %d", event, resp.StatusCode)
	}

	log.WithFields(log.Fields{"event": event, "endpoint": n.endpoint}).
		Debug("governance notification delivered")
	return nil
}
