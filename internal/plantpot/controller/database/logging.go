package database

import (
	"fmt"

	"github.com/saturnblock/pythonplantpot/internal/plantpot/engine"
)

// LogEntry appends a line to the engine log. It implements engine.Recorder.
func (d *DB) LogEntry(level, message string) error {
	db := d.GetDB()
	if !d.enabled || db == nil {
		return nil
	}

	_, err := db.Exec(`INSERT INTO engine_logs (level, message) VALUES (?, ?)`, level, message)
	if err != nil {
		return fmt.Errorf("failed to write engine log: %w", err)
	}
	return nil
}

// RecordEvent stores a history entry. It implements engine.Recorder.
func (d *DB) RecordEvent(ev engine.Event) error {
	db := d.GetDB()
	if !d.enabled || db == nil {
		return nil
	}

	query := `
		INSERT INTO watering_events (id, occurred_at, kind, amount_ml, duration_ms, reason, remaining_cycles, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET error = excluded.error
	`
	_, err := db.Exec(query,
		ev.ID,
		ev.Time.UTC().Format(timeLayout),
		string(ev.Kind),
		ev.AmountMl,
		ev.Duration.Milliseconds(),
		ev.Reason,
		ev.RemainingCycles,
		ev.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record %s event: %w", ev.Kind, err)
	}
	return nil
}
