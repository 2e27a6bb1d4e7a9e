package agent

import (
	"context"
	"fmt"
)

// Responder answers free-form messages.
type Responder interface {
	HandleMessage(ctx context.Context, userID, message string) (string, error)
}

// UnhandledSpecialist is the fallback. Uncertain classifications get a
// clarifying question; everything else goes to the taskmaster chat.
type UnhandledSpecialist struct {
	chat Responder
}

func NewUnhandledSpecialist(chat Responder) *UnhandledSpecialist {
	return &UnhandledSpecialist{chat: chat}
}

func (s *UnhandledSpecialist) Intent() Intent { return IntentUnhandled }

func (s *UnhandledSpecialist) Handle(ctx context.Context, req Request, dec Decision) (string, error) {
	if dec.Clarify {
		return fmt.Sprintf("I'm not sure I understood. Did you want help with your %s? "+
			"You can ask me to add, list, update or delete calendar events, or upload a syllabus PDF.", guessLabel(dec.Guess)), nil
	}
	if req.Message == "" {
		return "What would you like to work on?", nil
	}
	return s.chat.HandleMessage(ctx, req.UserID, req.Message)
}

func guessLabel(intent Intent) string {
	switch intent {
	case IntentSyllabus:
		return "syllabus"
	default:
		return "calendar"
	}
}
