// Package blocker turns the raw blocker list of a validated daily report
// into severity-ranked events and the escalation-worthy subset. Classify is
// a pure function: no I/O, no oracle, no mutation of its inputs, identical
// output for identical input, event order matching blocker order.
package blocker

import (
	"strings"

	"briefline/internal/agent"
)

// Severity levels, ordered low to critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Escalates reports whether the severity warrants an escalation payload.
func (s Severity) Escalates() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// NoTaskID is the sentinel for blockers with no task linkage.
const NoTaskID = "NO_TASK_ID"

// EscalationType tags every escalation payload.
const EscalationType = "BLOCKER_ESCALATION"

// Event is a classified blocker. Identity is structural; the caller assigns
// an id when it stores the event.
type Event struct {
	AuthorRole     string   `json:"author_role"`
	Text           string   `json:"text"`
	NormalizedText string   `json:"normalized_text"`
	TaskID         string   `json:"task_id"`
	TaskExists     bool     `json:"task_exists"`
	Severity       Severity `json:"severity"`
	IsRepeat       bool     `json:"is_repeat"`
	Source         string   `json:"source"`
}

// Escalation is the subset of an Event routed for immediate attention.
type Escalation struct {
	Type       string   `json:"type"`
	Severity   Severity `json:"severity"`
	Text       string   `json:"text"`
	TaskID     string   `json:"task_id"`
	AuthorRole string   `json:"author_role"`
}

// Normalize is the canonical blocker text form used for repeat detection:
// lowercase, surrounding whitespace trimmed. Idempotent.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// severityFor is the fixed severity matrix over the author's critical flag
// and tracker task existence.
func severityFor(critical, taskExists bool) Severity {
	switch {
	case critical && taskExists:
		return SeverityCritical
	case critical:
		return SeverityHigh
	case taskExists:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Classify converts the report's blockers into events plus the escalation
// subset. knownTasks and existingBlockers are read-only snapshots the caller
// refreshes before every call; repeat detection is exact membership of the
// normalized text, nothing fuzzier.
func Classify(daily agent.DailyReport, knownTasks, existingBlockers map[string]bool) ([]Event, []Escalation) {
	events := make([]Event, 0, len(daily.Blockers))
	escalations := make([]Escalation, 0)
	for _, raw := range daily.Blockers {
		text := strings.TrimSpace(raw.Text)
		taskID := strings.TrimSpace(raw.RelatedTaskID)
		if taskID == "" {
			taskID = NoTaskID
		}
		taskExists := taskID != NoTaskID && knownTasks[taskID]
		ev := Event{
			AuthorRole:     string(daily.Role),
			Text:           text,
			NormalizedText: Normalize(text),
			TaskID:         taskID,
			TaskExists:     taskExists,
			Severity:       severityFor(raw.Critical, taskExists),
			IsRepeat:       existingBlockers[Normalize(text)],
			Source:         "daily",
		}
		events = append(events, ev)
		if ev.Severity.Escalates() {
			escalations = append(escalations, Escalation{
				Type:       EscalationType,
				Severity:   ev.Severity,
				Text:       ev.Text,
				TaskID:     ev.TaskID,
				AuthorRole: ev.AuthorRole,
			})
		}
	}
	return events, escalations
}
