package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const SignatureHeader = "X-Signature"

type WebhookPayload struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Webhook posts events to one configured URL. A nil or URL-less Webhook is
// a no-op.
type Webhook struct {
	url    string
	secret string
	client *http.Client
	log    zerolog.Logger
	wg     sync.WaitGroup
}

func NewWebhook(url, secret string, logger zerolog.Logger) *Webhook {
	return &Webhook{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger.With().Str("component", "webhook").Logger(),
	}
}

func (w *Webhook) Enabled() bool {
	return w != nil && w.url != ""
}

// Notify sends the event in the background.
func (w *Webhook) Notify(event string, data any) {
	if !w.Enabled() {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := w.Send(ctx, event, data); err != nil {
			w.log.Warn().Err(err).Str("event", event).Msg("webhook delivery failed")
		}
	}()
}

// Send posts the event and waits for the response.
func (w *Webhook) Send(ctx context.Context, event string, data any) error {
	body, err := json.Marshal(WebhookPayload{Event: event, Timestamp: time.Now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		req.Header.Set(SignatureHeader, Sign(w.secret, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, respBody)
	}
	w.log.Debug().Str("event", event).Msg("webhook delivered")
	return nil
}

// Wait blocks until background deliveries finish.
func (w *Webhook) Wait() {
	if w != nil {
		w.wg.Wait()
	}
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
