package agent

import (
	"context"
	"fmt"

	"briefline/internal/oracle"
)

// FAQ and DIGEST are single-shot prose modes. Their content constraints
// (no team-specific claims in FAQ, no invented data in digests) live in the
// system prompts; the core cannot check them mechanically.

func processFAQ(ctx context.Context, p *FAQPayload, client oracle.Client) (Result, error) {
	raw, err := client.Complete(ctx, faqSystemPrompt, buildFAQPrompt(p))
	if err != nil {
		return Result{}, fmt.Errorf("faq: %w", err)
	}
	return textResult(raw), nil
}

func processDigest(ctx context.Context, p *DigestPayload, client oracle.Client) (Result, error) {
	raw, err := client.Complete(ctx, digestSystemPrompt, buildDigestPrompt(p))
	if err != nil {
		return Result{}, fmt.Errorf("digest: %w", err)
	}
	return textResult(raw), nil
}
