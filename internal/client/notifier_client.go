package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// NotifierClient forwards domain events to the notification service,
// which owns webhook signing, retries and delivery history. Publishing
// is fire and forget: a failed delivery is logged, never surfaced to
// the operation that produced the event.
type NotifierClient struct {
	baseURL     string
	internalKey string
	httpClient  *http.Client
}

// NewNotifierClient creates a new notifier client
func NewNotifierClient(baseURL, internalKey string) *NotifierClient {
	return &NotifierClient{
		baseURL:     baseURL,
		internalKey: internalKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type eventEnvelope struct {
	Kind      string                 `json:"kind"`
	Payload   map[string]interface{} `json:"payload"`
	EmittedAt string                 `json:"emitted_at"`
}

// Publish implements service.EventSink.
func (c *NotifierClient) Publish(kind string, payload map[string]interface{}) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := c.send(ctx, kind, payload); err != nil {
			log.Printf("[notifier] Failed to publish %s: %v", kind, err)
		}
	}()
}

func (c *NotifierClient) send(ctx context.Context, kind string, payload map[string]interface{}) error {
	url := fmt.Sprintf("%s/api/internal/events", c.baseURL)

	body, err := json.Marshal(&eventEnvelope{
		Kind:      kind,
		Payload:   payload,
		EmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Secret", c.internalKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notifier returned status %d", resp.StatusCode)
	}

	return nil
}
