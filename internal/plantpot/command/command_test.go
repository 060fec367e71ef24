package command

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	perrors "github.com/saturnblock/pythonplantpot/internal/plantpot/errors"
)

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "command.json"))
}

func writeRaw(t *testing.T, ch *Channel, content string) {
	t.Helper()
	if err := os.WriteFile(ch.Path(), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
}

func TestPeek_EmptyInbox(t *testing.T) {
	ch := newTestChannel(t)
	if cmd := ch.Peek(); !cmd.IsNone() {
		t.Errorf("Peek() on missing inbox = %v, want none", cmd)
	}
}

func TestPeek_Unreadable(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "torn write", content: `{"action": "manual_pu`},
		{name: "empty file", content: ""},
		{name: "unknown action", content: `{"action": "flood", "issuedAt": 5}`},
		{name: "manual pump without amount", content: `{"action": "manual_pump", "issuedAt": 5}`},
		{name: "timed pump without duration", content: `{"action": "timed_pump", "issuedAt": 5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := newTestChannel(t)
			writeRaw(t, ch, tt.content)
			if cmd := ch.Peek(); !cmd.IsNone() {
				t.Errorf("Peek() = %v, want none", cmd)
			}
		})
	}
}

func TestIssuePeekConsume(t *testing.T) {
	ch := newTestChannel(t)

	issued, err := ch.Issue(ManualPump(20))
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	if issued.IssuedAt == 0 {
		t.Fatal("Issue() did not stamp issuedAt")
	}

	cmd := ch.Peek()
	if cmd != issued {
		t.Fatalf("Peek() = %+v, want %+v", cmd, issued)
	}
	if again := ch.Peek(); again != issued {
		t.Errorf("second Peek() = %+v, Peek must not consume", again)
	}

	if err := ch.Consume(cmd); err != nil {
		t.Fatalf("Consume() failed: %v", err)
	}
	if after := ch.Peek(); !after.IsNone() {
		t.Errorf("Peek() after Consume() = %v, want none", after)
	}
}

// TestPeek_DuplicateToken tests that a re-delivered command with a consumed token is ignored
func TestPeek_DuplicateToken(t *testing.T) {
	ch := newTestChannel(t)
	writeRaw(t, ch, `{"action": "manual_pump", "amountMl": 20, "issuedAt": 1000}`)

	cmd := ch.Peek()
	if cmd.Action != ActionManualPump {
		t.Fatalf("Peek() = %v, want manual_pump", cmd)
	}
	if err := ch.Consume(cmd); err != nil {
		t.Fatalf("Consume() failed: %v", err)
	}

	writeRaw(t, ch, `{"action": "manual_pump", "amountMl": 20, "issuedAt": 1000}`)
	if dup := ch.Peek(); !dup.IsNone() {
		t.Errorf("Peek() of a consumed token = %v, want none", dup)
	}

	reopened := Open(ch.Path())
	if dup := reopened.Peek(); dup.Action != ActionManualPump {
		t.Errorf("new process Peek() = %v; the file no longer records consumption", dup)
	}
}

func TestOpen_SeedsTokenFromDisk(t *testing.T) {
	ch := newTestChannel(t)
	writeRaw(t, ch, `{"action": "none", "issuedAt": 5000}`)

	reopened := Open(ch.Path())
	writeRaw(t, ch, `{"action": "repot_reset", "issuedAt": 4000}`)
	if cmd := reopened.Peek(); !cmd.IsNone() {
		t.Errorf("Peek() of a stale token = %v, want none", cmd)
	}
}

func TestIssue_TokensIncrease(t *testing.T) {
	ch := newTestChannel(t)
	fixed := time.UnixMilli(1000)
	ch.now = func() time.Time { return fixed }

	first, err := ch.Issue(RepotReset())
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	second, err := ch.Issue(TimedPump(5 * time.Second))
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	if second.IssuedAt <= first.IssuedAt {
		t.Errorf("issuedAt did not increase: %d then %d", first.IssuedAt, second.IssuedAt)
	}
	if got := ch.Peek(); got != second {
		t.Errorf("Peek() = %+v, want the latest command %+v", got, second)
	}
}

func TestIssue_Invalid(t *testing.T) {
	ch := newTestChannel(t)
	if _, err := ch.Issue(ManualPump(0)); err == nil {
		t.Error("Issue(ManualPump(0)) should fail")
	}
	if _, err := ch.Issue(Command{Action: "flood"}); !perrors.Is(err, perrors.ErrUnknownCommand) {
		t.Errorf("Issue(flood) error = %v, want ErrUnknownCommand", err)
	}
	if _, err := ch.Issue(None); err == nil {
		t.Error("Issue(None) should fail")
	}
}

func TestConsume_KeepsNewerCommand(t *testing.T) {
	ch := newTestChannel(t)
	old, err := ch.Issue(ManualPump(10))
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	newer, err := ch.Issue(ManualPump(30))
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	if err := ch.Consume(old); err != nil {
		t.Fatalf("Consume() failed: %v", err)
	}
	if got := ch.Peek(); got != newer {
		t.Errorf("Peek() = %+v, want newer command %+v", got, newer)
	}
}

// TestIssueDuringConsume tests that a command issued while the engine consumes the
// previous one stays pending, both from this process and from a second writer
func TestIssueDuringConsume(t *testing.T) {
	tests := []struct {
		name   string
		writer func(engine *Channel) *Channel
	}{
		{name: "shared channel", writer: func(engine *Channel) *Channel { return engine }},
		{name: "second process", writer: func(engine *Channel) *Channel { return Open(engine.Path()) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestChannel(t)
			writer := tt.writer(engine)

			lost := 0
			for i := 0; i < 300; i++ {
				first, err := writer.Issue(ManualPump(20))
				if err != nil {
					t.Fatalf("Issue() failed: %v", err)
				}
				if got := engine.Peek(); got != first {
					t.Fatalf("Peek() = %+v, want %+v", got, first)
				}

				var wg sync.WaitGroup
				var second Command
				var issueErr, consumeErr error
				wg.Add(2)
				go func() {
					defer wg.Done()
					second, issueErr = writer.Issue(RepotReset())
				}()
				go func() {
					defer wg.Done()
					consumeErr = engine.Consume(first)
				}()
				wg.Wait()
				if issueErr != nil || consumeErr != nil {
					t.Fatalf("Issue() = %v, Consume() = %v", issueErr, consumeErr)
				}

				pending := engine.Peek()
				if pending != second {
					lost++
					continue
				}
				if err := engine.Consume(pending); err != nil {
					t.Fatalf("Consume() failed: %v", err)
				}
			}
			if lost > 0 {
				t.Errorf("%d of 300 commands issued during Consume() were dropped", lost)
			}
		})
	}
}
