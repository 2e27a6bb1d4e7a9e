package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/calendar"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"go.uber.org/zap"
)

const (
	actionCreate = "create"
	actionList   = "list"
	actionUpdate = "update"
	actionDelete = "delete"
)

type calendarPayload struct {
	Action     string `json:"action"`
	Summary    string `json:"summary"`
	Start      string `json:"start"`
	End        string `json:"end"`
	EventID    string `json:"event_id"`
	MaxResults int    `json:"max_results"`
}

// CalendarSpecialist turns a calendar decision into one gateway call.
type CalendarSpecialist struct {
	gateways calendar.Provider
}

func NewCalendarSpecialist(gateways calendar.Provider) *CalendarSpecialist {
	return &CalendarSpecialist{gateways: gateways}
}

func (s *CalendarSpecialist) Intent() Intent { return IntentCalendar }

func (s *CalendarSpecialist) Handle(ctx context.Context, req Request, dec Decision) (string, error) {
	var p calendarPayload
	if len(dec.Payload) > 0 {
		if err := json.Unmarshal(dec.Payload, &p); err != nil {
			utils.Logger.Warn("calendar_payload_invalid", zap.String("user_id", req.UserID), zap.Error(err))
			return "I couldn't understand the calendar details. Could you say what to schedule and when?", nil
		}
	}
	p.Action = strings.ToLower(strings.TrimSpace(p.Action))

	reply, missing := s.missingDetails(p)
	if missing {
		return reply, nil
	}

	gw, err := s.gateways.ForUser(ctx, req.UserID)
	if err != nil {
		return userFacing(err)
	}

	utils.Logger.Info("calendar_tool_call",
		zap.String("user_id", req.UserID),
		zap.String("action", p.Action),
	)

	switch p.Action {
	case actionCreate:
		start, _ := parseEventTime(p.Start)
		end, _ := parseEventTime(p.End)
		ref, err := gw.CreateEvent(ctx, p.Summary, start, end)
		if err != nil {
			return userFacing(err)
		}
		reply := fmt.Sprintf("Added %q on %s - %s UTC.", p.Summary,
			start.UTC().Format("Mon Jan 2 15:04"), end.UTC().Format("15:04"))
		if ref.HtmlLink != "" {
			reply += " " + ref.HtmlLink
		}
		return reply, nil

	case actionList:
		events, err := gw.ListUpcoming(ctx, p.MaxResults)
		if err != nil {
			return userFacing(err)
		}
		return formatEventList(events), nil

	case actionUpdate:
		patch := calendar.EventPatch{}
		if p.Summary != "" {
			patch.Summary = &p.Summary
		}
		if t, ok := parseEventTime(p.Start); ok {
			patch.Start = &t
		}
		if t, ok := parseEventTime(p.End); ok {
			patch.End = &t
		}
		ev, err := gw.UpdateEvent(ctx, p.EventID, patch)
		if err != nil {
			return userFacing(err)
		}
		return fmt.Sprintf("Updated the event. It is now %s.", ev.FormatEventSummary()), nil

	default: // actionDelete
		if err := gw.DeleteEvent(ctx, p.EventID); err != nil {
			return userFacing(err)
		}
		return "Deleted the event from your calendar.", nil
	}
}

// missingDetails returns a follow-up question when the payload cannot
// drive a gateway call.
func (s *CalendarSpecialist) missingDetails(p calendarPayload) (string, bool) {
	switch p.Action {
	case actionCreate:
		if strings.TrimSpace(p.Summary) == "" {
			return "What should I call the event?", true
		}
		if _, ok := parseEventTime(p.Start); !ok {
			return fmt.Sprintf("When should %q start?", p.Summary), true
		}
		if _, ok := parseEventTime(p.End); !ok {
			return fmt.Sprintf("When should %q end?", p.Summary), true
		}
	case actionList:
	case actionUpdate:
		if p.EventID == "" {
			return "Which event should I update? List your events first so I can find its id.", true
		}
		_, hasStart := parseEventTime(p.Start)
		_, hasEnd := parseEventTime(p.End)
		if p.Summary == "" && !hasStart && !hasEnd {
			return "What should I change about the event?", true
		}
	case actionDelete:
		if p.EventID == "" {
			return "Which event should I delete? List your events first so I can find its id.", true
		}
	default:
		return "Do you want me to add, list, update or delete a calendar event?", true
	}
	return "", false
}

func parseEventTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func formatEventList(events []calendar.Event) string {
	if len(events) == 0 {
		return "You have no upcoming events."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Here are your next %d events:", len(events))
	for i, ev := range events {
		fmt.Fprintf(&b, "\n%d. %s [id: %s]", i+1, ev.FormatEventSummary(), ev.ID)
	}
	return b.String()
}

// userFacing turns errors the user can act on into reply text. Everything
// else is returned as an error.
func userFacing(err error) (string, error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotFound, apperr.KindAuth, apperr.KindMissingCredential:
		return apperr.Message(err), nil
	default:
		return "", err
	}
}
