package agent

import (
	"context"
	"fmt"

	"briefline/internal/oracle"
)

// processDaily runs one turn of the daily protocol. Phase picks the prompt:
// INITIAL parses a fresh message, CLARIFICATION merges the author's answer
// into the previous report, which the caller must supply.
func processDaily(ctx context.Context, p *DailyPayload, client oracle.Client) (Result, error) {
	var system, user string
	switch p.Phase {
	case PhaseInitial, "":
		system = dailySystemPrompt
		user = buildDailyInitialPrompt(p)
	case PhaseClarification:
		if p.PreviousDaily == nil {
			return Result{}, configErr("CLARIFICATION phase requires the previous daily result")
		}
		system = dailyClarificationSystemPrompt
		user = buildDailyClarificationPrompt(p)
	default:
		return Result{}, configErr(fmt.Sprintf("unknown daily phase %q", p.Phase))
	}
	raw, err := client.Complete(ctx, system, user)
	if err != nil {
		return Result{}, fmt.Errorf("daily: %w", err)
	}
	parsed, err := parseDailyResponse(raw)
	if err != nil {
		return Result{}, err
	}
	return jsonResult(parsed), nil
}
