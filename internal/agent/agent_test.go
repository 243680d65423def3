package agent_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"briefline/internal/agent"
	"briefline/internal/oracle"
)

func fixed(response string) oracle.Client {
	return oracle.ClientFunc(func(ctx context.Context, system, user string) (string, error) {
		return response, nil
	})
}

const validDailyJSON = `{
  "daily": {
    "role": "DEV",
    "yesterday": [{"task_id": "TASK-1", "summary": "finished auth flow"}],
    "today": [{"task_id": "TASK-2", "summary": "start payment retries"}],
    "blockers": [{"text": "staging is down", "critical": true, "related_task_id": "TASK-2"}],
    "quality": "DETAIL_OK"
  },
  "clarification": {"needs_clarification": false, "question": ""}
}`

func TestProcessRejectsNilClient(t *testing.T) {
	_, err := agent.Process(context.Background(), agent.Request{Mode: agent.ModeDaily, Daily: &agent.DailyPayload{}}, nil)
	if !agent.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestProcessRejectsUnknownMode(t *testing.T) {
	_, err := agent.Process(context.Background(), agent.Request{Mode: "SUMMARY"}, fixed("{}"))
	if !agent.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestProcessRejectsMissingPayload(t *testing.T) {
	for _, mode := range []agent.Mode{agent.ModeDaily, agent.ModeAnalytics, agent.ModeFAQ, agent.ModeDigest} {
		_, err := agent.Process(context.Background(), agent.Request{Mode: mode}, fixed("{}"))
		if !agent.IsConfiguration(err) {
			t.Fatalf("mode %s: expected configuration error, got %v", mode, err)
		}
	}
}

func TestDailyInitialParsesWrappedJSON(t *testing.T) {
	// oracles love prose and code fences around the object
	raw := "Here is the result:\n```json\n" + validDailyJSON + "\n```\nHope that helps."
	res, err := agent.Process(context.Background(), agent.Request{
		Mode:  agent.ModeDaily,
		Daily: &agent.DailyPayload{Message: "did auth, staging down", Role: agent.RoleDev},
	}, fixed(raw))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Type != agent.ResultJSON {
		t.Fatalf("result type %s", res.Type)
	}
	daily, ok := res.Data.(*agent.DailyResult)
	if !ok {
		t.Fatalf("data type %T", res.Data)
	}
	if daily.Daily.Role != agent.RoleDev || daily.Daily.Quality != agent.QualityDetailOK {
		t.Fatalf("unexpected report: %+v", daily.Daily)
	}
	if len(daily.Daily.Blockers) != 1 || daily.Daily.Blockers[0].Text != "staging is down" {
		t.Fatalf("unexpected blockers: %+v", daily.Daily.Blockers)
	}
	if daily.Clarification.NeedsClarification {
		t.Fatalf("unexpected clarification: %+v", daily.Clarification)
	}
}

func TestDailyValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"no json at all", "I could not produce a report."},
		{"broken json", `{"daily": {`},
		{"missing daily", `{"clarification": {"needs_clarification": false, "question": ""}}`},
		{"missing clarification", `{"daily": {"role": "DEV", "yesterday": [], "today": [], "blockers": [], "quality": "GREAT"}}`},
		{"bad role", `{"daily": {"role": "PM", "yesterday": [], "today": [], "blockers": [], "quality": "GREAT"}, "clarification": {"needs_clarification": false, "question": ""}}`},
		{"bad quality", `{"daily": {"role": "DEV", "yesterday": [], "today": [], "blockers": [], "quality": "AMAZING"}, "clarification": {"needs_clarification": false, "question": ""}}`},
		{"blocker missing critical", `{"daily": {"role": "DEV", "yesterday": [], "today": [], "blockers": [{"text": "x", "related_task_id": ""}], "quality": "GREAT"}, "clarification": {"needs_clarification": false, "question": ""}}`},
		{"note missing summary", `{"daily": {"role": "DEV", "yesterday": [{"task_id": "TASK-1"}], "today": [], "blockers": [], "quality": "GREAT"}, "clarification": {"needs_clarification": false, "question": ""}}`},
		{"question without need", `{"daily": {"role": "DEV", "yesterday": [], "today": [], "blockers": [], "quality": "GREAT"}, "clarification": {"needs_clarification": false, "question": "what else?"}}`},
		{"need without question", `{"daily": {"role": "DEV", "yesterday": [], "today": [], "blockers": [], "quality": "GREAT"}, "clarification": {"needs_clarification": true, "question": "   "}}`},
	}
	for _, tc := range cases {
		_, err := agent.Process(context.Background(), agent.Request{
			Mode:  agent.ModeDaily,
			Daily: &agent.DailyPayload{Message: "hi", Role: agent.RoleDev},
		}, fixed(tc.raw))
		if !agent.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		if agent.IsConfiguration(err) {
			t.Fatalf("%s: validation must not double as configuration", tc.name)
		}
	}
}

func TestDailyClarificationRequiresPreviousResult(t *testing.T) {
	_, err := agent.Process(context.Background(), agent.Request{
		Mode: agent.ModeDaily,
		Daily: &agent.DailyPayload{
			Message: "it was TASK-3",
			Role:    agent.RoleDev,
			Phase:   agent.PhaseClarification,
		},
	}, fixed(validDailyJSON))
	if !agent.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDailyClarificationMergesPreviousIntoPrompt(t *testing.T) {
	previous := &agent.DailyResult{
		Daily: agent.DailyReport{Role: agent.RoleDev, Quality: agent.QualityTooShort},
		Clarification: agent.Clarification{
			NeedsClarification: true,
			Question:           "which task was blocked?",
		},
	}
	var gotUser string
	client := oracle.ClientFunc(func(ctx context.Context, system, user string) (string, error) {
		gotUser = user
		return validDailyJSON, nil
	})
	_, err := agent.Process(context.Background(), agent.Request{
		Mode: agent.ModeDaily,
		Daily: &agent.DailyPayload{
			Message:       "it was TASK-3",
			Role:          agent.RoleDev,
			Phase:         agent.PhaseClarification,
			PreviousDaily: previous,
		},
	}, client)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.Contains(gotUser, "which task was blocked?") {
		t.Fatalf("clarification prompt lost the question: %q", gotUser)
	}
	if !strings.Contains(gotUser, "it was TASK-3") {
		t.Fatalf("clarification prompt lost the answer: %q", gotUser)
	}
}

func TestDailyUnknownPhase(t *testing.T) {
	_, err := agent.Process(context.Background(), agent.Request{
		Mode:  agent.ModeDaily,
		Daily: &agent.DailyPayload{Message: "hi", Role: agent.RoleDev, Phase: "FOLLOWUP"},
	}, fixed(validDailyJSON))
	if !agent.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDailyTransportErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	client := oracle.ClientFunc(func(ctx context.Context, system, user string) (string, error) {
		return "", boom
	})
	_, err := agent.Process(context.Background(), agent.Request{
		Mode:  agent.ModeDaily,
		Daily: &agent.DailyPayload{Message: "hi", Role: agent.RoleDev},
	}, client)
	if !errors.Is(err, boom) {
		t.Fatalf("transport error lost: %v", err)
	}
	if agent.IsValidation(err) || agent.IsConfiguration(err) {
		t.Fatalf("transport error misclassified: %v", err)
	}
}

func TestAnalyticsIntentStep(t *testing.T) {
	res, err := agent.Process(context.Background(), agent.Request{
		Mode:      agent.ModeAnalytics,
		Analytics: &agent.AnalyticsPayload{Message: "what are the current risks?"},
	}, fixed(`{"intent": "TEAM_RISKS", "params": {}}`))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	intent, ok := res.Data.(*agent.AnalyticsIntent)
	if !ok {
		t.Fatalf("data type %T", res.Data)
	}
	if intent.Intent != agent.IntentTeamRisks || len(intent.Params) != 0 {
		t.Fatalf("unexpected intent: %+v", intent)
	}
}

func TestAnalyticsIntentParamRules(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"params on risks", `{"intent": "TEAM_RISKS", "params": {"detail_level": "BASIC"}}`},
		{"foreign overview param", `{"intent": "TEAM_OVERVIEW", "params": {"sprint": "42"}}`},
		{"bad detail level", `{"intent": "TEAM_OVERVIEW", "params": {"detail_level": "FULL"}}`},
		{"missing intent", `{"params": {}}`},
	}
	for _, tc := range cases {
		_, err := agent.Process(context.Background(), agent.Request{
			Mode:      agent.ModeAnalytics,
			Analytics: &agent.AnalyticsPayload{Message: "overview please"},
		}, fixed(tc.raw))
		if !agent.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestAnalyticsOverviewDetailLevel(t *testing.T) {
	res, err := agent.Process(context.Background(), agent.Request{
		Mode:      agent.ModeAnalytics,
		Analytics: &agent.AnalyticsPayload{Message: "full overview"},
	}, fixed(`{"intent": "TEAM_OVERVIEW", "params": {"detail_level": "EXTENDED"}}`))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	intent := res.Data.(*agent.AnalyticsIntent)
	if intent.DetailLevel() != agent.DetailExtended {
		t.Fatalf("detail level %q", intent.DetailLevel())
	}

	res, err = agent.Process(context.Background(), agent.Request{
		Mode:      agent.ModeAnalytics,
		Analytics: &agent.AnalyticsPayload{Message: "overview"},
	}, fixed(`{"intent": "TEAM_OVERVIEW", "params": {}}`))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Data.(*agent.AnalyticsIntent).DetailLevel() != agent.DetailBasic {
		t.Fatalf("missing detail_level must default to BASIC")
	}
}

func TestAnalyticsUnknownIntentFallsBack(t *testing.T) {
	res, err := agent.Process(context.Background(), agent.Request{
		Mode:      agent.ModeAnalytics,
		Analytics: &agent.AnalyticsPayload{Message: "predict next quarter velocity"},
	}, fixed(`{"intent": "VELOCITY_FORECAST", "params": {}}`))
	if err != nil {
		t.Fatalf("unknown intent must not be an error: %v", err)
	}
	if res.Type != agent.ResultText || res.Text() != agent.UnsupportedAnalyticsMessage {
		t.Fatalf("unexpected fallback: %+v", res)
	}
}

func TestAnalyticsReportStepIsPassthrough(t *testing.T) {
	var gotUser string
	client := oracle.ClientFunc(func(ctx context.Context, system, user string) (string, error) {
		gotUser = user
		return "Two critical blockers, both on TASK-9.", nil
	})
	res, err := agent.Process(context.Background(), agent.Request{
		Mode: agent.ModeAnalytics,
		Analytics: &agent.AnalyticsPayload{
			Metrics:       []byte(`{"blockers_by_severity": {"critical": 2}}`),
			LeaderMessage: "what are the risks?",
		},
	}, client)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Type != agent.ResultText || res.Text() != "Two critical blockers, both on TASK-9." {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(gotUser, `"critical": 2`) {
		t.Fatalf("metrics blob not handed to the oracle: %q", gotUser)
	}
}

func TestFAQAndDigestAreProse(t *testing.T) {
	res, err := agent.Process(context.Background(), agent.Request{
		Mode: agent.ModeFAQ,
		FAQ:  &agent.FAQPayload{Question: "how do I report a blocker?"},
	}, fixed("Mention it in your daily update and mark it critical if work is stopped."))
	if err != nil {
		t.Fatalf("faq: %v", err)
	}
	if res.Type != agent.ResultText || res.Text() == "" {
		t.Fatalf("unexpected faq result: %+v", res)
	}

	res, err = agent.Process(context.Background(), agent.Request{
		Mode: agent.ModeDigest,
		Digest: &agent.DigestPayload{Snapshot: agent.DigestSnapshot{
			Role:       agent.RoleQA,
			TaskCounts: map[string]int{"open": 3},
			Blockers:   []string{"1 critical"},
		}},
	}, fixed("You have 3 open tasks and one critical blocker."))
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if res.Type != agent.ResultText {
		t.Fatalf("unexpected digest result: %+v", res)
	}
}
