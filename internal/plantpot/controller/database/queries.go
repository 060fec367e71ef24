package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/types"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/engine"
)

// GetRecentLogs retrieves recent engine log entries, newest first
func (d *DB) GetRecentLogs(limit int) ([]types.EngineLog, error) {
	db := d.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := db.Query(`
		SELECT id, timestamp, level, message
		FROM engine_logs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var logs []types.EngineLog
	for rows.Next() {
		var entry types.EngineLog
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Level, &entry.Message); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// GetEvents retrieves history entries, newest first. An empty kind returns every kind.
func (d *DB) GetEvents(kind string, limit int) ([]engine.Event, error) {
	db := d.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT id, occurred_at, kind, amount_ml, duration_ms, reason, remaining_cycles, error
		FROM watering_events
	`
	args := []interface{}{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY occurred_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var events []engine.Event
	for rows.Next() {
		var (
			ev         engine.Event
			occurredAt string
			kindStr    string
			durationMs int64
			reason     sql.NullString
			errMsg     sql.NullString
		)
		if err := rows.Scan(&ev.ID, &occurredAt, &kindStr, &ev.AmountMl, &durationMs, &reason, &ev.RemainingCycles, &errMsg); err != nil {
			return nil, err
		}
		ev.Time, err = time.Parse(timeLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("event %s has a malformed time %q: %w", ev.ID, occurredAt, err)
		}
		ev.Kind = engine.EventKind(kindStr)
		ev.Duration = time.Duration(durationMs) * time.Millisecond
		ev.Reason = reason.String
		ev.Error = errMsg.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GetSummary aggregates history since the given time. A zero time covers everything.
func (d *DB) GetSummary(since time.Time) (types.Summary, error) {
	summary := types.Summary{ByKind: map[string]int{}}
	db := d.GetDB()
	if db == nil {
		return summary, fmt.Errorf("database not initialized")
	}

	from := ""
	if !since.IsZero() {
		from = since.UTC().Format(timeLayout)
	}

	rows, err := db.Query(`
		SELECT kind, COUNT(*), COALESCE(SUM(amount_ml), 0),
		       SUM(CASE WHEN error IS NOT NULL AND error != '' THEN 1 ELSE 0 END)
		FROM watering_events
		WHERE occurred_at >= ?
		GROUP BY kind
	`, from)
	if err != nil {
		return summary, err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var kind string
		var count, ml, failures int
		if err := rows.Scan(&kind, &count, &ml, &failures); err != nil {
			return summary, err
		}
		summary.ByKind[kind] = count
		summary.PumpFailures += failures
		if engine.EventKind(kind) == engine.KindSkipped {
			summary.Skips += count
			continue
		}
		if engine.EventKind(kind) != engine.KindRepot {
			summary.Waterings += count
			summary.TotalMl += ml
		}
	}
	if err := rows.Err(); err != nil {
		return summary, err
	}

	var last sql.NullString
	err = db.QueryRow(`
		SELECT MAX(occurred_at) FROM watering_events
		WHERE kind IN (?, ?, ?) AND (error IS NULL OR error = '')
	`, string(engine.KindScheduled), string(engine.KindManual), string(engine.KindTimed)).Scan(&last)
	if err != nil {
		return summary, err
	}
	summary.LastWateredAt = last.String
	return summary, nil
}

// Prune deletes history and log rows older than the given age
func (d *DB) Prune(olderThan time.Duration) (int64, error) {
	db := d.GetDB()
	if db == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	cutoff := time.Now().Add(-olderThan)

	res, err := db.Exec(`DELETE FROM watering_events WHERE occurred_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	n, _ := res.RowsAffected()

	if _, err := db.Exec(`DELETE FROM engine_logs WHERE timestamp < ?`, cutoff.UTC().Format("2006-01-02 15:04:05")); err != nil {
		return n, fmt.Errorf("failed to prune logs: %w", err)
	}
	return n, nil
}
