package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Bekzhanizb/LifeQuestBackend/llm"
)

const classifyPrompt = `You route messages for a student productivity assistant.
Specialists:
- calendar: create, list, update or delete events on the user's Google Calendar.
- syllabus: extract assignments and due dates from an uploaded syllabus PDF.
- unhandled: anything else (motivation, planning advice, small talk).

Output ONLY a JSON object with these fields:
- intent: "calendar", "syllabus" or "unhandled"
- confidence: number 0 to 1
- rationale: one short sentence
- payload: object. For calendar use
  {"action": "create"|"list"|"update"|"delete", "summary": string, "start": RFC3339, "end": RFC3339, "event_id": string, "max_results": number}
  and include only the fields the user gave. For other intents use {}.

Rules:
1. Resolve relative dates against the current time below. Use UTC.
2. Never invent event ids.
3. Use strict JSON numbers (0.8, never .8). No markdown.

Current time: %s
%s
Message:
%s`

// LLMClassifier asks the completion model for a Decision.
type LLMClassifier struct {
	client llm.Client
	now    func() time.Time
}

func NewLLMClassifier(client llm.Client) *LLMClassifier {
	return &LLMClassifier{client: client, now: time.Now}
}

func (c *LLMClassifier) Classify(ctx context.Context, req Request) (Decision, error) {
	attachment := ""
	if req.FilePath != "" {
		attachment = "A PDF file is attached to this message.\n"
	}
	prompt := fmt.Sprintf(classifyPrompt, c.now().UTC().Format(time.RFC3339), attachment, req.Message)

	resp, err := c.client.Generate(ctx, llm.GenerateRequest{Task: llm.TaskClassify, Prompt: prompt, JSON: true})
	if err != nil {
		return Decision{}, fmt.Errorf("classify: %w", err)
	}

	dec, err := llm.ExtractJSON[Decision](resp.Text, validateDecision)
	if err != nil {
		return Decision{}, fmt.Errorf("classify: %w", err)
	}
	dec.Intent = Intent(strings.ToLower(string(dec.Intent)))
	return dec, nil
}

func validateDecision(d Decision) error {
	if !Intent(strings.ToLower(string(d.Intent))).Valid() {
		return fmt.Errorf("unknown intent: %q", d.Intent)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %f", d.Confidence)
	}
	return nil
}
