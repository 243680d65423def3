package agent

import "encoding/json"

// Mode selects the sub-protocol applied to a request. The set is closed;
// Process rejects anything else with a *ConfigurationError.
type Mode string

const (
	ModeDaily     Mode = "DAILY"
	ModeAnalytics Mode = "ANALYTICS"
	ModeFAQ       Mode = "FAQ"
	ModeDigest    Mode = "DIGEST"
)

// Phase of the daily conversation. INITIAL is a first status submission;
// CLARIFICATION carries the human's answer to a previously raised question.
type Phase string

const (
	PhaseInitial       Phase = "INITIAL"
	PhaseClarification Phase = "CLARIFICATION"
)

// Role of the report author.
type Role string

const (
	RoleDev Role = "DEV"
	RoleQA  Role = "QA"
)

// Quality is the oracle's judgement of how informative a daily update is.
type Quality string

const (
	QualityEmpty            Quality = "EMPTY"
	QualityTooShort         Quality = "TOO_SHORT"
	QualityNoTasksMentioned Quality = "NO_TASKS_MENTIONED"
	QualityDetailOK         Quality = "DETAIL_OK"
	QualityGreat            Quality = "GREAT"
)

// Low reports whether the quality grade should trigger the caller's
// re-prompt loop.
func (q Quality) Low() bool {
	return q == QualityEmpty || q == QualityTooShort || q == QualityNoTasksMentioned
}

// TaskNote is one yesterday/today line of a daily report.
type TaskNote struct {
	TaskID  string `json:"task_id"`
	Summary string `json:"summary"`
}

// RawBlocker is a blocker exactly as the oracle extracted it, before
// classification.
type RawBlocker struct {
	Text          string `json:"text"`
	Critical      bool   `json:"critical"`
	RelatedTaskID string `json:"related_task_id"`
}

// DailyReport is the structured form of a personal status update.
type DailyReport struct {
	Role      Role         `json:"role"`
	Yesterday []TaskNote   `json:"yesterday"`
	Today     []TaskNote   `json:"today"`
	Blockers  []RawBlocker `json:"blockers"`
	Quality   Quality      `json:"quality"`
}

// Clarification is the oracle's verdict on whether the update needs a
// follow-up question. Question is empty exactly when NeedsClarification is
// false.
type Clarification struct {
	NeedsClarification bool   `json:"needs_clarification"`
	Question           string `json:"question"`
}

// DailyResult is the full validated oracle output for DAILY mode.
type DailyResult struct {
	Daily         DailyReport   `json:"daily"`
	Clarification Clarification `json:"clarification"`
}

// Intent is an analytics query category.
type Intent string

const (
	IntentTeamOverview    Intent = "TEAM_OVERVIEW"
	IntentTeamRisks       Intent = "TEAM_RISKS"
	IntentWorkload        Intent = "WORKLOAD"
	IntentReleaseBlockers Intent = "RELEASE_BLOCKERS"
)

// Detail levels for TEAM_OVERVIEW.
const (
	DetailBasic    = "BASIC"
	DetailExtended = "EXTENDED"
)

// AnalyticsIntent is the validated step-1 output of the analytics protocol.
// Params stays empty for every intent except TEAM_OVERVIEW, which may carry
// detail_level.
type AnalyticsIntent struct {
	Intent Intent            `json:"intent"`
	Params map[string]string `json:"params"`
}

// DetailLevel returns the requested overview detail, defaulting to BASIC.
func (a AnalyticsIntent) DetailLevel() string {
	if v, ok := a.Params["detail_level"]; ok {
		return v
	}
	return DetailBasic
}

// DigestSnapshot is the caller-assembled data a personal digest is rendered
// from. The core templates it into prose and adds nothing of its own.
type DigestSnapshot struct {
	Role         Role           `json:"role"`
	TaskCounts   map[string]int `json:"task_counts"`
	CurrentTasks []string       `json:"current_tasks"`
	Blockers     []string       `json:"blockers"`
	Notes        string         `json:"notes,omitempty"`
}

// DailyPayload is the per-call input for DAILY mode. PreviousDaily must be
// set when Phase is CLARIFICATION; the caller owns this state across turns.
type DailyPayload struct {
	Message       string
	Role          Role
	Phase         Phase
	PreviousDaily *DailyResult
}

// AnalyticsPayload drives both analytics steps. Metrics nil selects intent
// detection from Message; Metrics set selects report rendering, with
// LeaderMessage as optional phrasing context. Metrics is an opaque,
// caller-computed blob.
type AnalyticsPayload struct {
	Message       string
	Metrics       json.RawMessage
	LeaderMessage string
}

// FAQPayload is the input for FAQ mode.
type FAQPayload struct {
	Question string
	Context  string
}

// DigestPayload is the input for DIGEST mode.
type DigestPayload struct {
	Snapshot DigestSnapshot
}

// Request is the tagged union handed to Process. Exactly the payload
// matching Mode must be set.
type Request struct {
	Mode      Mode
	Daily     *DailyPayload
	Analytics *AnalyticsPayload
	FAQ       *FAQPayload
	Digest    *DigestPayload
}

// ResultType discriminates Result.Data.
type ResultType string

const (
	ResultJSON ResultType = "json"
	ResultText ResultType = "text"
)

// Result is what every mode returns: structured data (*DailyResult or
// *AnalyticsIntent) when Type is json, a prose string when Type is text.
type Result struct {
	Type ResultType
	Data any
}

// Text returns the prose payload of a text result.
func (r Result) Text() string {
	s, _ := r.Data.(string)
	return s
}

func jsonResult(data any) Result { return Result{Type: ResultJSON, Data: data} }
func textResult(text string) Result { return Result{Type: ResultText, Data: text} }
