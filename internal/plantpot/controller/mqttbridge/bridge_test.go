package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/saturnblock/pythonplantpot/internal/plantpot/command"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/engine"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/status"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  string
}

type fakeClient struct {
	mu           sync.Mutex
	connectErrs  []error
	connects     int
	published    []published
	subscribed   []string
	disconnected bool
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if len(c.connectErrs) > 0 {
		err := c.connectErrs[0]
		c.connectErrs = c.connectErrs[1:]
		return doneToken{err: err}
	}
	return doneToken{}
}
func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}
func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	var s string
	switch p := payload.(type) {
	case string:
		s = p
	case []byte:
		s = string(p)
	}
	c.published = append(c.published, published{topic: topic, retained: retained, payload: s})
	return doneToken{}
}
func (c *fakeClient) Subscribe(topic string, _ byte, _ mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, topic)
	return doneToken{}
}
func (c *fakeClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return doneToken{}
}
func (c *fakeClient) Unsubscribe(...string) mqtt.Token        { return doneToken{} }
func (c *fakeClient) AddRoute(string, mqtt.MessageHandler)    {}
func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func (c *fakeClient) snapshot() ([]published, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.published...), c.disconnected
}

type stubBackend struct {
	mu     sync.Mutex
	issued []command.Command
}

func (b *stubBackend) Snapshot() engine.Snapshot {
	return engine.Snapshot{State: "running", Status: status.CycleStatus{RemainingCycles: 7}}
}

func (b *stubBackend) Issue(cmd command.Command) (command.Command, error) {
	if err := cmd.Validate(); err != nil {
		return cmd, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.issued = append(b.issued, cmd)
	return cmd, nil
}

func newTestBridge() (*Bridge, *stubBackend) {
	backend := &stubBackend{}
	cfg := config.Default().MQTT
	cfg.TopicPrefix = "balcony"
	return New(cfg, backend), backend
}

func TestTopics(t *testing.T) {
	b, _ := newTestBridge()
	if b.StatusTopic() != "balcony/status" || b.CommandTopic() != "balcony/command" || b.AvailabilityTopic() != "balcony/availability" {
		t.Errorf("topics = %s %s %s", b.StatusTopic(), b.CommandTopic(), b.AvailabilityTopic())
	}
}

func TestHandleMessage(t *testing.T) {
	b, backend := newTestBridge()

	if err := b.HandleMessage([]byte(`{"id":"a1","action":"manual_pump","amountMl":30}`)); err != nil {
		t.Fatalf("HandleMessage() failed: %v", err)
	}
	// Redelivery of the same message
	if err := b.HandleMessage([]byte(`{"id":"a1","action":"manual_pump","amountMl":30}`)); err != nil {
		t.Fatalf("HandleMessage() redelivery failed: %v", err)
	}
	if err := b.HandleMessage([]byte(`{"action":"timed_pump","durationSeconds":5}`)); err != nil {
		t.Fatalf("HandleMessage() failed: %v", err)
	}

	if len(backend.issued) != 2 {
		t.Fatalf("issued %d commands, want 2: %+v", len(backend.issued), backend.issued)
	}
	if backend.issued[0].AmountMl != 30 || backend.issued[1].Duration() != 5*time.Second {
		t.Errorf("issued = %+v", backend.issued)
	}

	for _, bad := range []string{`not json`, `{"action":"flood"}`, `{"action":"manual_pump"}`} {
		if err := b.HandleMessage([]byte(bad)); err == nil {
			t.Errorf("HandleMessage(%s) succeeded", bad)
		}
	}
}

func TestDeduper_Expires(t *testing.T) {
	d := newDeduper(time.Minute, 10)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	if !d.shouldProcess("x") || d.shouldProcess("x") {
		t.Fatal("second delivery within ttl was processed")
	}
	now = now.Add(2 * time.Minute)
	if !d.shouldProcess("x") {
		t.Error("delivery after ttl was dropped")
	}
	if !d.shouldProcess("") || !d.shouldProcess("") {
		t.Error("messages without an id must always be processed")
	}
}

func TestLoop_PublishesAndShutsDown(t *testing.T) {
	b, _ := newTestBridge()
	b.Interval = 10 * time.Millisecond
	client := &fakeClient{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.loop(ctx, client) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		pubs, _ := client.snapshot()
		if len(pubs) >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("published %d messages, want at least 2", len(pubs))
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("loop() = %v", err)
	}

	pubs, disconnected := client.snapshot()
	if !disconnected {
		t.Error("client was not disconnected")
	}
	first := pubs[0]
	if first.topic != "balcony/status" || !first.retained {
		t.Errorf("first publish = %+v", first)
	}
	var snap engine.Snapshot
	if err := json.Unmarshal([]byte(first.payload), &snap); err != nil || snap.Status.RemainingCycles != 7 {
		t.Errorf("status payload = %q (%v)", first.payload, err)
	}
	last := pubs[len(pubs)-1]
	if last.topic != "balcony/availability" || last.payload != Offline {
		t.Errorf("last publish = %+v, want offline availability", last)
	}
}

func TestConnect_RetriesUntilBrokerAnswers(t *testing.T) {
	b, _ := newTestBridge()
	client := &fakeClient{connectErrs: []error{errors.New("connection refused")}}
	b.newClient = func(*mqtt.ClientOptions) mqtt.Client { return client }

	got, err := b.connect(context.Background())
	if err != nil {
		t.Fatalf("connect() failed: %v", err)
	}
	if got != client || client.connects != 2 {
		t.Errorf("connects = %d, want 2", client.connects)
	}
}

func TestRun_CancelledWhileConnecting(t *testing.T) {
	b, _ := newTestBridge()
	client := &fakeClient{}
	for i := 0; i < 100; i++ {
		client.connectErrs = append(client.connectErrs, errors.New("connection refused"))
	}
	b.newClient = func(*mqtt.ClientOptions) mqtt.Client { return client }

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := b.Run(ctx); err != nil {
		t.Errorf("Run() = %v, want nil when cancelled", err)
	}
}
