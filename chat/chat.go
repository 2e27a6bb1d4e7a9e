// Package chat builds taskmaster prompts and turns completion failures into
// replies a user can read.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/calendar"
	"github.com/Bekzhanizb/LifeQuestBackend/llm"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"go.uber.org/zap"
)

// MissingKeyMessage is returned in place of a completion when no API key is set.
const MissingKeyMessage = "Gemini API key missing. Set GEMINI_API_KEY."

const eventTimeLayout = "2006-01-02T15:04:05"

type Service struct {
	client llm.Client
}

func NewService(client llm.Client) *Service {
	return &Service{client: client}
}

// Generate runs one completion. A missing API key is not an error for the
// caller: the explanatory MissingKeyMessage is returned instead.
func (s *Service) Generate(ctx context.Context, task llm.TaskType, prompt string) (string, error) {
	const op = "chat.generate"

	resp, err := s.client.Generate(ctx, llm.GenerateRequest{Task: task, Prompt: prompt})
	switch {
	case err == nil:
		return resp.Text, nil
	case errors.Is(err, llm.ErrMissingCredential):
		utils.Logger.Warn("llm_missing_credential", zap.String("task", string(task)))
		return MissingKeyMessage, nil
	case errors.Is(err, llm.ErrTimeout):
		return "", apperr.Wrap(apperr.KindUpstream, op, "the assistant took too long to answer", err)
	default:
		return "", apperr.Wrap(apperr.KindUpstream, op, "the assistant is unavailable right now", err)
	}
}

// BuildRoutinePrompt asks for a weekly routine around the given events.
func BuildRoutinePrompt(events []calendar.Event) string {
	bullets := make([]string, 0, len(events))
	for _, e := range events {
		bullets = append(bullets, fmt.Sprintf("- %s %s–%s",
			e.Summary,
			e.Start.Format(eventTimeLayout),
			e.End.Format(eventTimeLayout),
		))
	}
	return "You are a taskmaster agent helping a student design weekly routines.\n" +
		"Given upcoming calendar events, propose a weekly routine with specific times for: " +
		"wake-up, gym 3x/week, study blocks, and self-care. " +
		"Output JSON with keys: routines[], proposed_events[].\n" +
		"Upcoming events:\n" + strings.Join(bullets, "\n")
}

func BuildTaskmasterPrompt(message string) string {
	return "You are a supportive but firm taskmaster. The user said:\n" +
		message + "\n" +
		"Respond concisely with next actions and proposed calendar entries if relevant."
}

// HandleMessage answers a free-form message in the taskmaster voice.
func (s *Service) HandleMessage(ctx context.Context, userID, message string) (string, error) {
	utils.Logger.Debug("chat_message", zap.String("user_id", userID), zap.Int("chars", len(message)))
	return s.Generate(ctx, llm.TaskChat, BuildTaskmasterPrompt(message))
}

// ProposeRoutine sends the routine prompt for the given events.
func (s *Service) ProposeRoutine(ctx context.Context, events []calendar.Event) (string, error) {
	return s.Generate(ctx, llm.TaskRoutine, BuildRoutinePrompt(events))
}
