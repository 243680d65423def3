// Package session is the reference caller of the agent core. It owns
// everything the core refuses to: per-conversation state, the technical and
// quality retry loops, the clarification loop, snapshot refresh, and
// persistence of classified events. The core stays a pure function
// underneath.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"briefline/internal/agent"
	"briefline/internal/blocker"
	"briefline/internal/config"
	"briefline/internal/oracle"
)

// Fixed user-facing messages. TechnicalFallbackMessage is the literal text
// surfaced when the oracle keeps returning unparseable output;
// QualityRepromptMessage is sent to the human instead of another oracle
// call when an update is too thin.
const (
	TechnicalFallbackMessage = "Sorry, I could not process that update. Please try again later."
	QualityRepromptMessage   = "That update is a bit thin. Please describe what you worked on, which tasks it touched, and anything blocking you."
)

// HistoryStore is what the session needs from the persistence collaborator:
// fresh snapshots in, classified events out, plus the aggregates that feed
// analytics reports. internal/history implements it.
type HistoryStore interface {
	KnownTasks(ctx context.Context) (map[string]bool, error)
	ExistingBlockers(ctx context.Context) (map[string]bool, error)
	RecordEvents(ctx context.Context, authorID string, events []blocker.Event) error
	TaskCountsByStatus(ctx context.Context) (map[string]int, error)
	BlockerCountsBySeverity(ctx context.Context) (map[string]int, error)
	RepeatBlockerCount(ctx context.Context) (int, error)
}

// Runner drives conversations against the agent core.
type Runner struct {
	Oracle  oracle.Client
	History HistoryStore
	Limits  config.Limits
	Logger  *zap.Logger
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}

// Conversation is the caller-owned state of one daily dialogue. The two
// loop counters are deliberately separate fields: QualityRetries counts
// re-prompts for thin updates, ClarificationRounds counts follow-up
// questions. Conflating them was a known ambiguity in earlier designs.
type Conversation struct {
	AuthorID            string
	Role                agent.Role
	Phase               agent.Phase
	QualityRetries      int
	ClarificationRounds int
	PreviousDaily       *agent.DailyResult
}

// NewConversation starts a daily dialogue for one author.
func NewConversation(authorID string, role agent.Role) *Conversation {
	return &Conversation{AuthorID: authorID, Role: role, Phase: agent.PhaseInitial}
}

func (c *Conversation) reset() {
	c.Phase = agent.PhaseInitial
	c.QualityRetries = 0
	c.ClarificationRounds = 0
	c.PreviousDaily = nil
}

// OutcomeKind discriminates what a daily submission produced.
type OutcomeKind string

const (
	OutcomeAccepted OutcomeKind = "accepted"
	OutcomeClarify  OutcomeKind = "clarify"
	OutcomeReprompt OutcomeKind = "reprompt"
	OutcomeFailed   OutcomeKind = "failed"
)

// Outcome is the result of one daily submission. Question is set for
// clarify, Message for reprompt and failed, the report and classification
// results for accepted.
type Outcome struct {
	Kind        OutcomeKind
	Question    string
	Message     string
	Daily       *agent.DailyResult
	Events      []blocker.Event
	Escalations []blocker.Escalation
}

// SubmitDaily processes one message of a daily conversation and advances
// its state. Transport and configuration errors propagate; everything else
// maps onto an Outcome.
func (r *Runner) SubmitDaily(ctx context.Context, conv *Conversation, message string) (Outcome, error) {
	req := agent.Request{
		Mode: agent.ModeDaily,
		Daily: &agent.DailyPayload{
			Message:       message,
			Role:          conv.Role,
			Phase:         conv.Phase,
			PreviousDaily: conv.PreviousDaily,
		},
	}
	res, err := r.processWithRetries(ctx, req)
	if err != nil {
		if agent.IsValidation(err) {
			r.logger().Warn("daily attempt discarded after technical retries", zap.Error(err))
			return Outcome{Kind: OutcomeFailed, Message: TechnicalFallbackMessage}, nil
		}
		return Outcome{}, err
	}
	daily, ok := res.Data.(*agent.DailyResult)
	if !ok {
		return Outcome{}, fmt.Errorf("session: unexpected daily result payload %T", res.Data)
	}

	if daily.Clarification.NeedsClarification && conv.ClarificationRounds < r.Limits.ClarificationRounds {
		conv.ClarificationRounds++
		conv.Phase = agent.PhaseClarification
		conv.PreviousDaily = daily
		r.logger().Debug("clarification requested",
			zap.Int("round", conv.ClarificationRounds),
			zap.String("author", conv.AuthorID))
		return Outcome{Kind: OutcomeClarify, Question: daily.Clarification.Question, Daily: daily}, nil
	}

	if daily.Daily.Quality.Low() && conv.QualityRetries < r.Limits.QualityRetries {
		conv.QualityRetries++
		conv.Phase = agent.PhaseInitial
		conv.PreviousDaily = nil
		r.logger().Debug("low-quality report, re-prompting",
			zap.String("quality", string(daily.Daily.Quality)),
			zap.Int("retry", conv.QualityRetries))
		return Outcome{Kind: OutcomeReprompt, Message: QualityRepromptMessage, Daily: daily}, nil
	}

	return r.accept(ctx, conv, daily)
}

// accept classifies the report's blockers against fresh snapshots, persists
// the events, and closes the conversation.
func (r *Runner) accept(ctx context.Context, conv *Conversation, daily *agent.DailyResult) (Outcome, error) {
	known, err := r.History.KnownTasks(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("session: known tasks snapshot: %w", err)
	}
	existing, err := r.History.ExistingBlockers(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("session: existing blockers snapshot: %w", err)
	}
	events, escalations := blocker.Classify(daily.Daily, known, existing)
	if err := r.History.RecordEvents(ctx, conv.AuthorID, events); err != nil {
		return Outcome{}, fmt.Errorf("session: record events: %w", err)
	}
	r.logger().Info("daily accepted",
		zap.String("author", conv.AuthorID),
		zap.Int("events", len(events)),
		zap.Int("escalations", len(escalations)))
	conv.reset()
	return Outcome{
		Kind:        OutcomeAccepted,
		Daily:       daily,
		Events:      events,
		Escalations: escalations,
	}, nil
}

// processWithRetries re-issues the identical call while the oracle output
// fails schema validation, up to the configured total attempts. The last
// validation error is returned on exhaustion; other errors abort at once.
func (r *Runner) processWithRetries(ctx context.Context, req agent.Request) (agent.Result, error) {
	attempts := r.Limits.TechnicalAttempts
	if attempts < 1 {
		attempts = 1
	}
	var res agent.Result
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err = agent.Process(ctx, req, r.Oracle)
		if err == nil {
			return res, nil
		}
		if !agent.IsValidation(err) {
			return agent.Result{}, err
		}
		r.logger().Warn("oracle output failed validation",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err))
	}
	return agent.Result{}, err
}

// AskAnalytics runs the full two-step analytics flow for a leader question
// and returns the report text, or the unsupported/fallback message.
func (r *Runner) AskAnalytics(ctx context.Context, message string) (string, error) {
	res, err := r.processWithRetries(ctx, agent.Request{
		Mode:      agent.ModeAnalytics,
		Analytics: &agent.AnalyticsPayload{Message: message},
	})
	if err != nil {
		if agent.IsValidation(err) {
			return TechnicalFallbackMessage, nil
		}
		return "", err
	}
	if res.Type == agent.ResultText {
		return res.Text(), nil
	}
	intent, ok := res.Data.(*agent.AnalyticsIntent)
	if !ok {
		return "", fmt.Errorf("session: unexpected intent payload %T", res.Data)
	}
	metrics, err := r.computeMetrics(ctx, intent)
	if err != nil {
		return "", err
	}
	report, err := agent.Process(ctx, agent.Request{
		Mode: agent.ModeAnalytics,
		Analytics: &agent.AnalyticsPayload{
			Metrics:       metrics,
			LeaderMessage: message,
		},
	}, r.Oracle)
	if err != nil {
		return "", err
	}
	return report.Text(), nil
}

// computeMetrics aggregates the numbers the report is rendered from. All
// arithmetic happens here, never in the core, so the figures are exactly
// reproducible without an oracle.
func (r *Runner) computeMetrics(ctx context.Context, intent *agent.AnalyticsIntent) (json.RawMessage, error) {
	taskCounts, err := r.History.TaskCountsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: task counts: %w", err)
	}
	severityCounts, err := r.History.BlockerCountsBySeverity(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: blocker counts: %w", err)
	}
	repeats, err := r.History.RepeatBlockerCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: repeat count: %w", err)
	}
	payload := map[string]any{
		"intent":                intent.Intent,
		"task_counts_by_status": taskCounts,
		"blockers_by_severity":  severityCounts,
		"repeat_blockers":       repeats,
	}
	if intent.Intent == agent.IntentTeamOverview {
		payload["detail_level"] = intent.DetailLevel()
	}
	return json.Marshal(payload)
}

// AskFAQ answers a general process question.
func (r *Runner) AskFAQ(ctx context.Context, question string) (string, error) {
	res, err := agent.Process(ctx, agent.Request{
		Mode: agent.ModeFAQ,
		FAQ:  &agent.FAQPayload{Question: question},
	}, r.Oracle)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}

// Digest renders a personal digest from the current store contents.
func (r *Runner) Digest(ctx context.Context, role agent.Role) (string, error) {
	snapshot, err := r.buildDigestSnapshot(ctx, role)
	if err != nil {
		return "", err
	}
	res, err := agent.Process(ctx, agent.Request{
		Mode:   agent.ModeDigest,
		Digest: &agent.DigestPayload{Snapshot: snapshot},
	}, r.Oracle)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}

func (r *Runner) buildDigestSnapshot(ctx context.Context, role agent.Role) (agent.DigestSnapshot, error) {
	taskCounts, err := r.History.TaskCountsByStatus(ctx)
	if err != nil {
		return agent.DigestSnapshot{}, fmt.Errorf("session: task counts: %w", err)
	}
	severityCounts, err := r.History.BlockerCountsBySeverity(ctx)
	if err != nil {
		return agent.DigestSnapshot{}, fmt.Errorf("session: blocker counts: %w", err)
	}
	blockers := make([]string, 0, len(severityCounts))
	for severity, n := range severityCounts {
		blockers = append(blockers, fmt.Sprintf("%d %s", n, severity))
	}
	sort.Strings(blockers)
	return agent.DigestSnapshot{
		Role:       role,
		TaskCounts: taskCounts,
		Blockers:   blockers,
	}, nil
}
