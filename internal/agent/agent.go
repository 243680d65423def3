// Package agent is the stateless decision layer between callers and the
// text-generation oracle. Every call is a pure function of its request plus
// one oracle round-trip; no state survives between calls and retry loops
// belong to the caller.
package agent

import (
	"context"
	"fmt"

	"briefline/internal/oracle"
)

// Process dispatches one request to the sub-protocol selected by its mode
// and returns the validated result. It performs at most one oracle call and
// no business logic of its own.
//
// Error taxonomy: *ConfigurationError for contract violations (fatal),
// *ValidationError for malformed oracle output (retryable); anything else is
// a transport failure owned by the gateway's owner.
func Process(ctx context.Context, req Request, client oracle.Client) (Result, error) {
	if client == nil {
		return Result{}, configErr("oracle client is required")
	}
	switch req.Mode {
	case ModeDaily:
		if req.Daily == nil {
			return Result{}, configErr("DAILY mode requires a daily payload")
		}
		return processDaily(ctx, req.Daily, client)
	case ModeAnalytics:
		if req.Analytics == nil {
			return Result{}, configErr("ANALYTICS mode requires an analytics payload")
		}
		return processAnalytics(ctx, req.Analytics, client)
	case ModeFAQ:
		if req.FAQ == nil {
			return Result{}, configErr("FAQ mode requires a faq payload")
		}
		return processFAQ(ctx, req.FAQ, client)
	case ModeDigest:
		if req.Digest == nil {
			return Result{}, configErr("DIGEST mode requires a digest payload")
		}
		return processDigest(ctx, req.Digest, client)
	default:
		return Result{}, configErr(fmt.Sprintf("unknown mode %q", req.Mode))
	}
}
