package agent

import (
	"context"
	"fmt"

	"briefline/internal/oracle"
)

// UnsupportedAnalyticsMessage is returned as a text result when the oracle
// cannot map a leader's question onto any known intent.
const UnsupportedAnalyticsMessage = "Sorry, that type of analytics question is not supported yet."

// processAnalytics runs one step of the two-step analytics protocol.
// Without metrics it classifies the leader's message into an intent; with
// metrics it renders the prose report. Aggregation itself is strictly the
// caller's job.
func processAnalytics(ctx context.Context, p *AnalyticsPayload, client oracle.Client) (Result, error) {
	if p.Metrics != nil {
		raw, err := client.Complete(ctx, analyticsReportSystemPrompt, buildReportPrompt(p))
		if err != nil {
			return Result{}, fmt.Errorf("analytics report: %w", err)
		}
		return textResult(raw), nil
	}
	raw, err := client.Complete(ctx, analyticsIntentSystemPrompt, buildIntentPrompt(p.Message))
	if err != nil {
		return Result{}, fmt.Errorf("analytics intent: %w", err)
	}
	intent, supported, err := parseIntentResponse(raw)
	if err != nil {
		return Result{}, err
	}
	if !supported {
		return textResult(UnsupportedAnalyticsMessage), nil
	}
	return jsonResult(intent), nil
}
