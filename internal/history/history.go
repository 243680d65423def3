// Package history is the persistence collaborator the agent core is
// documented against but never touches. It stores known tasks and recorded
// blocker events, hands out fresh read-only snapshots before each
// classification, and owns id assignment for stored events.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"briefline/internal/blocker"
	"briefline/internal/events"
)

type Store struct {
	DB  *sql.DB
	Now func() time.Time
}

func (s Store) audit() events.Writer {
	return events.Writer{Now: s.Now}
}

var ErrNotFound = errors.New("not found")

func (s Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Task is a tracker work item the classifier checks blocker linkage against.
type Task struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	AssigneeID string `json:"assignee_id,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

// StoredEvent is a blocker event with the identity and authorship the caller
// attaches on storage.
type StoredEvent struct {
	ID        string `json:"id"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at" format:"date-time"`
	blocker.Event
}

// StoredEscalation is a persisted escalation linked to its source event.
type StoredEscalation struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	CreatedAt string `json:"created_at" format:"date-time"`
	blocker.Escalation
}

// AddTask registers a tracker task. Empty id gets a generated one.
func (s Store) AddTask(ctx context.Context, t Task) (Task, error) {
	if t.Title == "" {
		return t, errors.New("title is required")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = "open"
	}
	t.CreatedAt = s.now().UTC().Format(time.RFC3339)
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,title,status,assignee_id,created_at) VALUES (?,?,?,?,?)`,
		t.ID, t.Title, t.Status, nullable(t.AssigneeID), t.CreatedAt); err != nil {
		return t, fmt.Errorf("insert task: %w", err)
	}
	if err := s.audit().Append(ctx, tx, events.KindTaskAdded, t.AssigneeID, t.ID, events.Payload{
		"title":  t.Title,
		"status": t.Status,
	}); err != nil {
		return t, fmt.Errorf("audit task: %w", err)
	}
	return t, tx.Commit()
}

// SetTaskStatus updates a task's status.
func (s Store) SetTaskStatus(ctx context.Context, id, status string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	if err := s.audit().Append(ctx, tx, events.KindTaskStatusMoved, "", id, events.Payload{"status": status}); err != nil {
		return fmt.Errorf("audit status move: %w", err)
	}
	return tx.Commit()
}

// ListTasks returns all tasks, newest first.
func (s Store) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id,title,status,COALESCE(assignee_id,'') AS assignee_id,created_at FROM tasks ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Status, &t.AssigneeID, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// KnownTasks returns a fresh snapshot of tracker task ids.
func (s Store) KnownTasks(ctx context.Context) (map[string]bool, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id FROM tasks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	known := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = true
	}
	return known, rows.Err()
}

// ExistingBlockers returns a fresh snapshot of every normalized blocker text
// recorded so far, the repeat-detection set for the next classification.
func (s Store) ExistingBlockers(ctx context.Context) (map[string]bool, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT DISTINCT normalized_text FROM blocker_events`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	existing := map[string]bool{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		existing[text] = true
	}
	return existing, rows.Err()
}

// RecordEvents persists classified events, assigning each a uuid and the
// author id, and writes an escalation row for every event whose severity
// escalates. One transaction per report.
func (s Store) RecordEvents(ctx context.Context, authorID string, evs []blocker.Event) error {
	if len(evs) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now().UTC().Format(time.RFC3339)
	for _, ev := range evs {
		eventID := uuid.New().String()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO blocker_events(id,author_id,author_role,text,normalized_text,task_id,task_exists,severity,is_repeat,source,created_at)
			 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			eventID, authorID, ev.AuthorRole, ev.Text, ev.NormalizedText, ev.TaskID,
			boolInt(ev.TaskExists), string(ev.Severity), boolInt(ev.IsRepeat), ev.Source, now); err != nil {
			return fmt.Errorf("insert blocker event: %w", err)
		}
		if err := s.audit().Append(ctx, tx, events.KindBlockerRecorded, authorID, ev.TaskID, events.Payload{
			"event_id": eventID,
			"severity": string(ev.Severity),
			"repeat":   ev.IsRepeat,
		}); err != nil {
			return fmt.Errorf("audit blocker: %w", err)
		}
		if ev.Severity.Escalates() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO escalations(id,event_id,severity,text,task_id,author_role,created_at) VALUES (?,?,?,?,?,?,?)`,
				uuid.New().String(), eventID, string(ev.Severity), ev.Text, ev.TaskID, ev.AuthorRole, now); err != nil {
				return fmt.Errorf("insert escalation: %w", err)
			}
			if err := s.audit().Append(ctx, tx, events.KindEscalationRaised, authorID, ev.TaskID, events.Payload{
				"event_id": eventID,
				"severity": string(ev.Severity),
			}); err != nil {
				return fmt.Errorf("audit escalation: %w", err)
			}
		}
	}
	return tx.Commit()
}

// ListEvents returns recorded events, newest first.
func (s Store) ListEvents(ctx context.Context, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id,author_id,author_role,text,normalized_text,task_id,task_exists,severity,is_repeat,source,created_at
		 FROM blocker_events ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		var taskExists, isRepeat int
		var severity string
		if err := rows.Scan(&ev.ID, &ev.AuthorID, &ev.AuthorRole, &ev.Text, &ev.NormalizedText,
			&ev.TaskID, &taskExists, &severity, &isRepeat, &ev.Source, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.TaskExists = taskExists != 0
		ev.IsRepeat = isRepeat != 0
		ev.Severity = blocker.Severity(severity)
		res = append(res, ev)
	}
	return res, rows.Err()
}

// ListEscalations returns recorded escalations, newest first.
func (s Store) ListEscalations(ctx context.Context, limit int) ([]StoredEscalation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id,event_id,severity,text,task_id,author_role,created_at
		 FROM escalations ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []StoredEscalation
	for rows.Next() {
		var e StoredEscalation
		var severity string
		if err := rows.Scan(&e.ID, &e.EventID, &severity, &e.Text, &e.TaskID, &e.AuthorRole, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Severity = blocker.Severity(severity)
		e.Type = blocker.EscalationType
		res = append(res, e)
	}
	return res, rows.Err()
}

// TaskCountsByStatus aggregates tasks per status for metrics.
func (s Store) TaskCountsByStatus(ctx context.Context) (map[string]int, error) {
	return s.countBy(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
}

// BlockerCountsBySeverity aggregates recorded events per severity.
func (s Store) BlockerCountsBySeverity(ctx context.Context) (map[string]int, error) {
	return s.countBy(ctx, `SELECT severity, COUNT(*) FROM blocker_events GROUP BY severity`)
}

// RepeatBlockerCount counts events flagged as repeats.
func (s Store) RepeatBlockerCount(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocker_events WHERE is_repeat=1`).Scan(&n)
	return n, err
}

func (s Store) countBy(ctx context.Context, query string) (map[string]int, error) {
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
