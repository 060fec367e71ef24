package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
)

type fakeNotifier struct {
	mu       sync.Mutex
	failures int
	sent     []Notice
	attempts int
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Notify(_ context.Context, n Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return errors.New("temporary failure")
	}
	f.sent = append(f.sent, n)
	return nil
}

func newTestDispatcher(minInterval time.Duration, n ...Notifier) *Dispatcher {
	d := NewDispatcher(minInterval, n...)
	d.retryDelay = time.Millisecond
	d.maxElapsed = time.Second
	return d
}

func TestDispatcher_Throttle(t *testing.T) {
	fake := &fakeNotifier{}
	d := newTestDispatcher(time.Hour, fake)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	notices := []Notice{
		{Kind: KindSkipped, Title: "skipped", Time: base},
		{Kind: KindSkipped, Title: "skipped again", Time: base.Add(time.Minute)},
		{Kind: KindRefill, Title: "refill", Time: base.Add(2 * time.Minute)},
		{Kind: KindSkipped, Title: "skipped later", Time: base.Add(2 * time.Hour)},
	}
	for _, n := range notices {
		if err := d.Notify(context.Background(), n); err != nil {
			t.Fatalf("Notify() failed: %v", err)
		}
	}

	if len(fake.sent) != 3 {
		t.Fatalf("sent %d notices, want 3", len(fake.sent))
	}
	if fake.sent[1].Kind != KindRefill || fake.sent[2].Title != "skipped later" {
		t.Errorf("unexpected notices sent: %+v", fake.sent)
	}
}

func TestDispatcher_Retries(t *testing.T) {
	fake := &fakeNotifier{failures: 2}
	d := newTestDispatcher(0, fake)

	if err := d.Notify(context.Background(), Notice{Kind: KindPumpFailure, Title: "pump"}); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
	if fake.attempts != 3 || len(fake.sent) != 1 {
		t.Errorf("attempts = %d, sent = %d; want 3 attempts and 1 delivery", fake.attempts, len(fake.sent))
	}
}

func TestDispatcher_Disabled(t *testing.T) {
	d := FromConfig(config.Default().Notify)
	if d.Enabled() {
		t.Fatal("dispatcher with no destinations should be disabled")
	}
	if err := d.Notify(context.Background(), Notice{Kind: KindRefill}); err != nil {
		t.Errorf("Notify() on disabled dispatcher = %v, want nil", err)
	}
}

func TestWebhook_Notify(t *testing.T) {
	var (
		gotAuth   string
		gotNotice Notice
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotNotice); err != nil {
			t.Errorf("Decode() failed: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "secret")
	n := Notice{Kind: KindRefill, Title: "Tank empty", Message: "Refill the reservoir", Fields: map[string]string{"remaining": "0"}}
	if err := wh.Notify(context.Background(), n); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotNotice.Title != "Tank empty" || gotNotice.Fields["remaining"] != "0" {
		t.Errorf("received notice %+v", gotNotice)
	}
}

func TestWebhook_ClientErrorNotRetried(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	d := newTestDispatcher(0, NewWebhook(srv.URL, ""))
	err := d.Notify(context.Background(), Notice{Kind: KindSkipped, Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("Notify() error = %v, want 403", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("webhook called %d times, want 1", calls)
	}
}

func TestNewDiscord_InvalidURL(t *testing.T) {
	if _, err := NewDiscord("https://example.com/not-a-webhook"); err == nil {
		t.Error("NewDiscord() should reject a URL without id and token")
	}
}

func TestNewDiscord_ValidURL(t *testing.T) {
	d, err := NewDiscord("https://discord.com/api/webhooks/123456789012345678/secret-token")
	if err != nil {
		t.Fatalf("NewDiscord() failed: %v", err)
	}
	var n Notifier = d
	if n.Name() != "discord" {
		t.Errorf("Name() = %q, want discord", n.Name())
	}
}

func TestEmailBody(t *testing.T) {
	body := emailBody(Notice{
		Title:   "Watering skipped <soil moist>",
		Message: "moisture 45%",
		Time:    time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		Fields:  map[string]string{"threshold": "30"},
	})
	if !strings.Contains(body, "&lt;soil moist&gt;") {
		t.Errorf("title not escaped: %s", body)
	}
	if !strings.Contains(body, "<strong>threshold:</strong> 30") {
		t.Errorf("fields missing: %s", body)
	}
}
