package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

const dailySystemPrompt = `You parse a developer's daily stand-up message into strict JSON.
Respond with a single JSON object and nothing else, in exactly this shape:

{
  "daily": {
    "role": "DEV" | "QA",
    "yesterday": [{"task_id": "...", "summary": "..."}],
    "today": [{"task_id": "...", "summary": "..."}],
    "blockers": [{"text": "...", "critical": true|false, "related_task_id": "..."}],
    "quality": "EMPTY" | "TOO_SHORT" | "NO_TASKS_MENTIONED" | "DETAIL_OK" | "GREAT"
  },
  "clarification": {
    "needs_clarification": true|false,
    "question": "..."
  }
}

Rules:
- Use "" for related_task_id when the blocker names no task.
- Set quality honestly: EMPTY for no content, TOO_SHORT for one-liners,
  NO_TASKS_MENTIONED when no task is identifiable, DETAIL_OK or GREAT otherwise.
- Ask a clarification question only when the update is genuinely ambiguous.
- question must be "" when needs_clarification is false.`

const dailyClarificationSystemPrompt = `You update a previously parsed daily stand-up JSON with the author's
clarification. Keep the exact same JSON shape, merge the new information in,
and re-assess quality. Set needs_clarification to false unless something is
still genuinely ambiguous. Respond with the JSON object only.`

const analyticsIntentSystemPrompt = `You classify a team leader's free-text analytics question.
Respond with a single JSON object and nothing else:

{"intent": "TEAM_OVERVIEW" | "TEAM_RISKS" | "WORKLOAD" | "RELEASE_BLOCKERS", "params": {}}

TEAM_OVERVIEW may carry {"detail_level": "BASIC"} or {"detail_level": "EXTENDED"};
every other intent must have empty params. If the question fits none of the
four intents, respond with {"intent": "UNSUPPORTED", "params": {}}.`

const analyticsReportSystemPrompt = `You write a short prose report for a team leader from pre-computed metrics.
Use only the numbers you are given; never invent or recompute figures.
Be direct, a few sentences per section, no markdown tables.`

const faqSystemPrompt = `You answer general questions about development process terminology
(stand-ups, sprints, blockers, kanban, reviews). Answer only from common
knowledge of process practice. Never make claims about this specific team,
its tools, people, or timelines, and never invent tool names or dates.`

const digestSystemPrompt = `You render a personal work digest from a structured snapshot.
Follow this template per person: current task counts, the tasks in progress,
open blockers, then notes. Use only the supplied data; add no advice and
invent nothing. Keep it short and plain.`

func buildDailyInitialPrompt(p *DailyPayload) string {
	return fmt.Sprintf("Author role: %s\n\nDaily stand-up message:\n\"\"\"\n%s\n\"\"\"\n\nParse it per the instructions.", p.Role, p.Message)
}

func buildDailyClarificationPrompt(p *DailyPayload) string {
	prev, _ := json.Marshal(p.PreviousDaily)
	return fmt.Sprintf("Previous daily JSON:\n%s\n\nAuthor's clarification:\n\"\"\"\n%s\n\"\"\"\n\nUpdate the JSON, keeping its structure.", prev, p.Message)
}

func buildIntentPrompt(message string) string {
	return fmt.Sprintf("Leader's question:\n\"\"\"\n%s\n\"\"\"\n\nClassify the analytics intent.", message)
}

func buildReportPrompt(p *AnalyticsPayload) string {
	var b strings.Builder
	b.WriteString("Pre-computed team metrics:\n")
	b.Write(p.Metrics)
	if p.LeaderMessage != "" {
		fmt.Fprintf(&b, "\n\nThe leader originally asked:\n\"\"\"\n%s\n\"\"\"", p.LeaderMessage)
	}
	b.WriteString("\n\nWrite the report.")
	return b.String()
}

func buildFAQPrompt(p *FAQPayload) string {
	if p.Context != "" {
		return fmt.Sprintf("Context:\n%s\n\nQuestion:\n%s", p.Context, p.Question)
	}
	return fmt.Sprintf("Question:\n%s", p.Question)
}

func buildDigestPrompt(p *DigestPayload) string {
	data, _ := json.Marshal(p.Snapshot)
	return fmt.Sprintf("Snapshot for the digest:\n%s\n\nRender the digest.", data)
}
