package socket

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/types"
)

type fakeHandler struct {
	mu   sync.Mutex
	last types.Command
}

func (f *fakeHandler) lastCommand() types.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeHandler) reply(name string, cmd types.Command) types.Response {
	f.mu.Lock()
	f.last = cmd
	f.mu.Unlock()
	return types.Response{Success: true, Message: name, Data: map[string]interface{}{"state": "running"}}
}

func (f *fakeHandler) HandleStatusCommand(cmd types.Command) types.Response {
	return f.reply("status", cmd)
}
func (f *fakeHandler) HandlePumpCommand(cmd types.Command) types.Response {
	return f.reply("pump", cmd)
}
func (f *fakeHandler) HandleTimedPumpCommand(cmd types.Command) types.Response {
	return f.reply("timed", cmd)
}
func (f *fakeHandler) HandleRepotCommand(cmd types.Command) types.Response {
	return f.reply("repot", cmd)
}
func (f *fakeHandler) HandlePumpOnCommand(cmd types.Command) types.Response {
	return f.reply("on", cmd)
}
func (f *fakeHandler) HandlePumpOffCommand(cmd types.Command) types.Response {
	return f.reply("off", cmd)
}
func (f *fakeHandler) HandleGetHistoryCommand(cmd types.Command) types.Response {
	return f.reply("history", cmd)
}
func (f *fakeHandler) HandleGetLogsCommand(cmd types.Command) types.Response {
	return f.reply("logs", cmd)
}
func (f *fakeHandler) HandleGetMetricsCommand(cmd types.Command) types.Response {
	return f.reply("metrics", cmd)
}
func (f *fakeHandler) HandleSensorsCommand(cmd types.Command) types.Response {
	return f.reply("sensors", cmd)
}

func socketPath(t *testing.T) string {
	t.Helper()
	// Unix socket paths are limited to ~100 bytes
	dir, err := os.MkdirTemp("", "pp")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "pp.sock")
}

func startServer(t *testing.T, h Handler) *Client {
	t.Helper()
	path := socketPath(t)
	srv := NewServer(path, true, NewDefaultCommandHandler(h))
	if err := srv.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		_ = srv.Close()
		<-done
	})

	client := NewClient(path)
	client.SetTimeout(2 * time.Second)
	return client
}

func TestDefaultCommandHandler_Routes(t *testing.T) {
	h := &fakeHandler{}
	router := NewDefaultCommandHandler(h)

	actions := map[string]string{
		types.ActionStatus:     "status",
		types.ActionPump:       "pump",
		types.ActionTimedPump:  "timed",
		types.ActionRepot:      "repot",
		types.ActionPumpOn:     "on",
		types.ActionPumpOff:    "off",
		types.ActionGetHistory: "history",
		types.ActionGetLogs:    "logs",
		types.ActionGetMetrics: "metrics",
		types.ActionSensors:    "sensors",
	}
	for action, want := range actions {
		resp := router.HandleCommand(types.Command{Action: action})
		if !resp.Success || resp.Message != want {
			t.Errorf("HandleCommand(%s) = %+v, want handler %s", action, resp, want)
		}
	}

	resp := router.HandleCommand(types.Command{Action: "water_everything"})
	if resp.Success || resp.Error != "Unknown command: water_everything" {
		t.Errorf("unknown action response = %+v", resp)
	}
}

func TestClientServer_RoundTrip(t *testing.T) {
	h := &fakeHandler{}
	client := startServer(t, h)

	if !client.IsRunning() {
		t.Fatal("IsRunning() = false with a live server")
	}

	resp, err := client.Pump(50)
	if err != nil {
		t.Fatalf("Pump() failed: %v", err)
	}
	if !resp.Success || resp.Message != "pump" {
		t.Errorf("Pump() response = %+v", resp)
	}
	if got := IntArg(h.lastCommand(), "amount_ml", 0); got != 50 {
		t.Errorf("amount_ml on the wire = %d, want 50", got)
	}

	if _, err := client.TimedPump(90 * time.Second); err != nil {
		t.Fatalf("TimedPump() failed: %v", err)
	}
	if got := IntArg(h.lastCommand(), "duration_seconds", 0); got != 90 {
		t.Errorf("duration_seconds on the wire = %d, want 90", got)
	}

	if _, err := client.GetHistory("skipped", 5); err != nil {
		t.Fatalf("GetHistory() failed: %v", err)
	}
	if StringArg(h.lastCommand(), "kind") != "skipped" || IntArg(h.lastCommand(), "limit", 0) != 5 {
		t.Errorf("history args = %+v", h.lastCommand().Data)
	}
}

func TestServer_BadRequest(t *testing.T) {
	client := startServer(t, &fakeHandler{})

	conn, err := net.Dial("unix", client.socketPath)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write([]byte("not json\n")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 512)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if got := string(buf[:n]); !strings.Contains(got, "Failed to decode command") {
		t.Errorf("response = %q", got)
	}
}

func TestServer_Disabled(t *testing.T) {
	path := socketPath(t)
	srv := NewServer(path, false, NewDefaultCommandHandler(&fakeHandler{}))
	if err := srv.Init(); err != nil {
		t.Fatalf("Init() on disabled server should not error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("socket file created for a disabled server")
	}
	// Run returns immediately without a listener
	srv.Run(context.Background())
	if err := srv.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestClient_NotRunning(t *testing.T) {
	client := NewClient(socketPath(t))
	client.SetTimeout(100 * time.Millisecond)
	if client.IsRunning() {
		t.Error("IsRunning() = true without a server")
	}
	if err := client.WaitFor(200 * time.Millisecond); err == nil {
		t.Error("WaitFor() succeeded without a server")
	}
}

func TestIntArg(t *testing.T) {
	cmd := types.Command{Data: map[string]interface{}{"f": float64(7), "i": 3, "s": "x"}}
	if IntArg(cmd, "f", 0) != 7 || IntArg(cmd, "i", 0) != 3 {
		t.Error("IntArg() did not read numeric values")
	}
	if IntArg(cmd, "s", 9) != 9 || IntArg(cmd, "missing", 9) != 9 {
		t.Error("IntArg() did not fall back to the default")
	}
}
