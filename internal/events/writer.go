// Package events is the append-only audit trail behind the history store.
// Every state change (task added, status moved, blocker recorded, escalation
// raised) leaves one row, written inside the same transaction as the change.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Audit event kinds.
const (
	KindTaskAdded        = "task_added"
	KindTaskStatusMoved  = "task_status_moved"
	KindBlockerRecorded  = "blocker_recorded"
	KindEscalationRaised = "escalation_raised"
)

type Writer struct {
	Now func() time.Time
}

type Payload map[string]any

// Entry is one audit row as read back.
type Entry struct {
	ID      int64   `json:"id"`
	TS      string  `json:"ts"`
	Kind    string  `json:"kind"`
	ActorID string  `json:"actor_id"`
	TaskID  string  `json:"task_id,omitempty"`
	Payload Payload `json:"payload"`
}

// Append writes one audit row on the caller's transaction.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, kind, actorID, taskID string, payload Payload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO audit_events(ts,kind,actor_id,task_id,payload_json) VALUES (?,?,?,?,?)`,
		ts, kind, actorID, nullable(taskID), string(data))
	return err
}

// Recent returns the latest audit entries, newest first.
func Recent(ctx context.Context, db *sql.DB, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id,ts,kind,actor_id,COALESCE(task_id,'') AS task_id,payload_json FROM audit_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		var e Entry
		var payload string
		if err := rows.Scan(&e.ID, &e.TS, &e.Kind, &e.ActorID, &e.TaskID, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("decode audit payload %d: %w", e.ID, err)
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
