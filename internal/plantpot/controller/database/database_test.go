package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/saturnblock/pythonplantpot/internal/plantpot/engine"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db := New(filepath.Join(t.TempDir(), "history", "plantpot.db"), true)
	if err := db.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// TestDB_Init_TablesCreated tests that all tables are created
func TestDB_Init_TablesCreated(t *testing.T) {
	db := newTestDB(t)

	for _, table := range []string{"engine_logs", "watering_events"} {
		var name string
		err := db.GetDB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}
}

// TestDB_Init_DisabledDatabase tests disabled database doesn't create files
func TestDB_Init_DisabledDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db := New(dbPath, false)
	defer func() { _ = db.Close() }()

	if err := db.Init(); err != nil {
		t.Fatalf("Init() on disabled database should not error: %v", err)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Error("Database file should not be created when disabled")
	}
	if err := db.RecordEvent(engine.Event{ID: "x", Kind: engine.KindManual}); err != nil {
		t.Errorf("RecordEvent() on disabled database = %v, want nil", err)
	}
	if err := db.LogEntry("info", "ignored"); err != nil {
		t.Errorf("LogEntry() on disabled database = %v, want nil", err)
	}
}

func TestDB_LogEntry(t *testing.T) {
	db := newTestDB(t)

	for _, msg := range []string{"engine started", "watered 50ml", "engine stopped"} {
		if err := db.LogEntry("info", msg); err != nil {
			t.Fatalf("LogEntry() failed: %v", err)
		}
	}

	logs, err := db.GetRecentLogs(2)
	if err != nil {
		t.Fatalf("GetRecentLogs() failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("GetRecentLogs(2) returned %d entries", len(logs))
	}
	if logs[0].Message != "engine stopped" || logs[1].Message != "watered 50ml" {
		t.Errorf("GetRecentLogs() order = %q, %q", logs[0].Message, logs[1].Message)
	}
	if logs[0].Timestamp == "" {
		t.Error("log timestamp is empty")
	}
}

func TestDB_Events(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	events := []engine.Event{
		{ID: "a", Time: base, Kind: engine.KindScheduled, AmountMl: 50, Duration: 20 * time.Second, RemainingCycles: 9},
		{ID: "b", Time: base.Add(time.Hour), Kind: engine.KindSkipped, AmountMl: 50, Reason: "soil moist", RemainingCycles: 9},
		{ID: "c", Time: base.Add(2 * time.Hour), Kind: engine.KindManual, AmountMl: 20, Duration: 8 * time.Second, RemainingCycles: 9},
		{ID: "d", Time: base.Add(3 * time.Hour), Kind: engine.KindScheduled, AmountMl: 50, RemainingCycles: 8, Error: "relay stuck"},
		{ID: "e", Time: base.Add(4 * time.Hour), Kind: engine.KindRepot, RemainingCycles: 10},
	}
	for _, ev := range events {
		if err := db.RecordEvent(ev); err != nil {
			t.Fatalf("RecordEvent(%s) failed: %v", ev.ID, err)
		}
	}

	all, err := db.GetEvents("", 10)
	if err != nil {
		t.Fatalf("GetEvents() failed: %v", err)
	}
	if len(all) != 5 || all[0].ID != "e" {
		t.Fatalf("GetEvents() = %d events starting with %q, want 5 starting with e", len(all), all[0].ID)
	}
	if !all[4].Time.Equal(base) || all[4].Duration != 20*time.Second {
		t.Errorf("oldest event = %+v", all[4])
	}

	skipped, err := db.GetEvents(string(engine.KindSkipped), 10)
	if err != nil {
		t.Fatalf("GetEvents(skipped) failed: %v", err)
	}
	if len(skipped) != 1 || skipped[0].Reason != "soil moist" {
		t.Errorf("GetEvents(skipped) = %+v", skipped)
	}

	summary, err := db.GetSummary(time.Time{})
	if err != nil {
		t.Fatalf("GetSummary() failed: %v", err)
	}
	if summary.Waterings != 3 || summary.Skips != 1 || summary.TotalMl != 120 || summary.PumpFailures != 1 {
		t.Errorf("GetSummary() = %+v", summary)
	}
	if summary.LastWateredAt != base.Add(2*time.Hour).Format(timeLayout) {
		t.Errorf("LastWateredAt = %q, want the manual watering", summary.LastWateredAt)
	}

	recent, err := db.GetSummary(base.Add(90 * time.Minute))
	if err != nil {
		t.Fatalf("GetSummary(since) failed: %v", err)
	}
	if recent.Waterings != 2 || recent.Skips != 0 {
		t.Errorf("GetSummary(since) = %+v", recent)
	}
}

func TestDB_RecordEventUpsert(t *testing.T) {
	db := newTestDB(t)
	ev := engine.Event{ID: "same", Time: time.Now(), Kind: engine.KindTimed}
	if err := db.RecordEvent(ev); err != nil {
		t.Fatalf("RecordEvent() failed: %v", err)
	}
	ev.Error = "context canceled"
	if err := db.RecordEvent(ev); err != nil {
		t.Fatalf("second RecordEvent() failed: %v", err)
	}

	events, err := db.GetEvents("", 10)
	if err != nil {
		t.Fatalf("GetEvents() failed: %v", err)
	}
	if len(events) != 1 || events[0].Error != "context canceled" {
		t.Errorf("GetEvents() = %+v, want one updated event", events)
	}
}

func TestDB_QueriesBeforeInit(t *testing.T) {
	db := New(filepath.Join(t.TempDir(), "x.db"), true)
	if _, err := db.GetRecentLogs(10); err == nil {
		t.Error("GetRecentLogs() before Init() should fail")
	}
	if _, err := db.GetEvents("", 10); err == nil {
		t.Error("GetEvents() before Init() should fail")
	}
}
