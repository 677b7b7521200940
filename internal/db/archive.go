package db

import (
	"encoding/json"
	"fmt"
	"time"
)

// MatchRecord archives the outcome of one ended match.
type MatchRecord struct {
	ID             string
	RoomCode       string
	CrewA          string
	CrewB          string
	Winner         string
	ScoreA         int
	ScoreB         int
	BroadcastScore int
	BroadcastTier  string
	SwingCount     int
	StartedAt      time.Time
	EndedAt        time.Time
}

func (d *DB) RecordMatch(m MatchRecord) error {
	_, err := d.conn.Exec(`
		INSERT INTO matches (id, room_code, crew_a, crew_b, winner, score_a, score_b, broadcast_score, broadcast_tier, swing_count, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`, m.ID, m.RoomCode, m.CrewA, m.CrewB, m.Winner, m.ScoreA, m.ScoreB, m.BroadcastScore, m.BroadcastTier, m.SwingCount, m.StartedAt, m.EndedAt)
	if err != nil {
		return fmt.Errorf("recording match: %w", err)
	}
	return nil
}

// EventRecord archives one accepted telemetry event.
type EventRecord struct {
	EventID       string
	RoomCode      string
	MatchID       string
	ParticipantID string
	EventType     string
	Intensity     int
	Ts            int64
	StatDelta     map[string]float64
}

func (d *DB) BatchRecordEvents(events []EventRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO telemetry_events (event_id, room_code, match_id, participant_id, event_type, intensity, ts, stat_delta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		delta, err := json.Marshal(ev.StatDelta)
		if err != nil {
			return fmt.Errorf("encoding stat delta: %w", err)
		}
		if _, err := stmt.Exec(ev.EventID, ev.RoomCode, ev.MatchID, ev.ParticipantID, ev.EventType, ev.Intensity, ev.Ts, delta); err != nil {
			return fmt.Errorf("recording event in batch: %w", err)
		}
	}

	return tx.Commit()
}
