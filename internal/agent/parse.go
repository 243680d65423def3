package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON cuts the outermost JSON object out of raw oracle text, which
// may be wrapped in prose or code fences.
func extractJSON(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", validationErr("no JSON object in oracle output")
	}
	return raw[start : end+1], nil
}

type rawTaskNote struct {
	TaskID  *string `json:"task_id"`
	Summary *string `json:"summary"`
}

type rawBlockerItem struct {
	Text          *string `json:"text"`
	Critical      *bool   `json:"critical"`
	RelatedTaskID *string `json:"related_task_id"`
}

type rawDailyResponse struct {
	Daily *struct {
		Role      *string          `json:"role"`
		Yesterday []rawTaskNote    `json:"yesterday"`
		Today     []rawTaskNote    `json:"today"`
		Blockers  []rawBlockerItem `json:"blockers"`
		Quality   *string          `json:"quality"`
	} `json:"daily"`
	Clarification *struct {
		NeedsClarification *bool   `json:"needs_clarification"`
		Question           *string `json:"question"`
	} `json:"clarification"`
}

// parseDailyResponse validates raw oracle text against the DAILY output
// shape and returns the typed result. Any deviation is a *ValidationError.
func parseDailyResponse(raw string) (*DailyResult, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var parsed rawDailyResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, validationErr(fmt.Sprintf("decode daily JSON: %v", err))
	}
	if parsed.Daily == nil {
		return nil, validationErr("missing 'daily' object")
	}
	if parsed.Clarification == nil {
		return nil, validationErr("missing 'clarification' object")
	}
	d := parsed.Daily
	if d.Role == nil {
		return nil, validationErr("missing daily.role")
	}
	role := Role(*d.Role)
	if role != RoleDev && role != RoleQA {
		return nil, validationErr(fmt.Sprintf("daily.role must be DEV or QA, got %q", *d.Role))
	}
	if d.Quality == nil {
		return nil, validationErr("missing daily.quality")
	}
	quality := Quality(*d.Quality)
	switch quality {
	case QualityEmpty, QualityTooShort, QualityNoTasksMentioned, QualityDetailOK, QualityGreat:
	default:
		return nil, validationErr(fmt.Sprintf("unknown daily.quality %q", *d.Quality))
	}
	yesterday, err := parseTaskNotes("yesterday", d.Yesterday)
	if err != nil {
		return nil, err
	}
	today, err := parseTaskNotes("today", d.Today)
	if err != nil {
		return nil, err
	}
	blockers := make([]RawBlocker, 0, len(d.Blockers))
	for i, b := range d.Blockers {
		if b.Text == nil {
			return nil, validationErr(fmt.Sprintf("blockers[%d] missing text", i))
		}
		if b.Critical == nil {
			return nil, validationErr(fmt.Sprintf("blockers[%d] missing critical", i))
		}
		if b.RelatedTaskID == nil {
			return nil, validationErr(fmt.Sprintf("blockers[%d] missing related_task_id", i))
		}
		blockers = append(blockers, RawBlocker{
			Text:          *b.Text,
			Critical:      *b.Critical,
			RelatedTaskID: *b.RelatedTaskID,
		})
	}
	c := parsed.Clarification
	if c.NeedsClarification == nil {
		return nil, validationErr("missing clarification.needs_clarification")
	}
	if c.Question == nil {
		return nil, validationErr("missing clarification.question")
	}
	needs := *c.NeedsClarification
	question := *c.Question
	if !needs && question != "" {
		return nil, validationErr("clarification.question must be empty when needs_clarification is false")
	}
	if needs && strings.TrimSpace(question) == "" {
		return nil, validationErr("clarification.question must be non-empty when needs_clarification is true")
	}
	return &DailyResult{
		Daily: DailyReport{
			Role:      role,
			Yesterday: yesterday,
			Today:     today,
			Blockers:  blockers,
			Quality:   quality,
		},
		Clarification: Clarification{
			NeedsClarification: needs,
			Question:           question,
		},
	}, nil
}

func parseTaskNotes(field string, items []rawTaskNote) ([]TaskNote, error) {
	notes := make([]TaskNote, 0, len(items))
	for i, item := range items {
		if item.TaskID == nil || item.Summary == nil {
			return nil, validationErr(fmt.Sprintf("%s[%d] must have task_id and summary", field, i))
		}
		notes = append(notes, TaskNote{TaskID: *item.TaskID, Summary: *item.Summary})
	}
	return notes, nil
}

type rawIntentResponse struct {
	Intent *string           `json:"intent"`
	Params map[string]string `json:"params"`
}

// parseIntentResponse validates step-1 analytics output. An intent outside
// the known set is not a technical failure; it returns supported=false so
// the caller can fall back to the unsupported message.
func parseIntentResponse(raw string) (intent *AnalyticsIntent, supported bool, err error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, false, err
	}
	var parsed rawIntentResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, false, validationErr(fmt.Sprintf("decode intent JSON: %v", err))
	}
	if parsed.Intent == nil {
		return nil, false, validationErr("missing 'intent'")
	}
	params := parsed.Params
	if params == nil {
		params = map[string]string{}
	}
	in := Intent(*parsed.Intent)
	switch in {
	case IntentTeamOverview:
		for k, v := range params {
			if k != "detail_level" {
				return nil, false, validationErr(fmt.Sprintf("unexpected intent param %q", k))
			}
			if v != DetailBasic && v != DetailExtended {
				return nil, false, validationErr(fmt.Sprintf("detail_level must be BASIC or EXTENDED, got %q", v))
			}
		}
	case IntentTeamRisks, IntentWorkload, IntentReleaseBlockers:
		if len(params) > 0 {
			return nil, false, validationErr(fmt.Sprintf("params must be empty for intent %s", in))
		}
	default:
		return nil, false, nil
	}
	return &AnalyticsIntent{Intent: in, Params: params}, true, nil
}
