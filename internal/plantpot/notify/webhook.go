package notify

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/imroc/req/v3"
)

// Webhook posts notices as JSON to an arbitrary HTTP endpoint
type Webhook struct {
	url    string
	token  string
	client *req.Client
}

// NewWebhook creates a JSON webhook notifier. A non-empty token is sent as a bearer token.
func NewWebhook(url, token string) *Webhook {
	return &Webhook{
		url:    url,
		token:  token,
		client: req.C().SetUserAgent("plantpot").SetTimeout(15 * time.Second),
	}
}

// Name implements Notifier
func (w *Webhook) Name() string { return "webhook" }

// Notify implements Notifier. Client errors (4xx) are not retried.
func (w *Webhook) Notify(ctx context.Context, n Notice) error {
	r := w.client.R().SetContext(ctx).SetBodyJsonMarshal(n)
	if w.token != "" {
		r.SetBearerAuthToken(w.token)
	}
	resp, err := r.Post(w.url)
	if err != nil {
		return fmt.Errorf("POST %s failed: %w", w.url, err)
	}
	if resp.IsSuccessState() {
		return nil
	}
	err = fmt.Errorf("POST %s returned status %d: %s", w.url, resp.StatusCode, resp.String())
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return backoff.Permanent(err)
	}
	return err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
