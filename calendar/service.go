package calendar

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"go.uber.org/zap"
)

// Service implements Gateway over an Upstream. It validates input before
// any provider call, classifies provider errors and retries exactly once
// after refreshing credentials when the provider rejects authorization.
type Service struct {
	up    Upstream
	creds Credentials
	now   func() time.Time
}

func NewService(up Upstream, creds Credentials) *Service {
	return &Service{up: up, creds: creds, now: time.Now}
}

func (s *Service) CreateEvent(ctx context.Context, summary string, start, end time.Time) (EventRef, error) {
	const op = "calendar.create"
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return EventRef{}, apperr.Validation(op, "event summary is required")
	}
	if !start.Before(end) {
		return EventRef{}, apperr.Wrap(apperr.KindValidation, op, ErrInvalidRange.Error(), ErrInvalidRange)
	}

	var created Event
	err := s.call(ctx, op, func() error {
		var err error
		created, err = s.up.Insert(ctx, Event{Summary: summary, Start: start.UTC(), End: end.UTC()})
		return err
	})
	if err != nil {
		return EventRef{}, err
	}

	utils.Logger.Info("calendar_event_created",
		zap.String("event_id", created.ID),
		zap.Time("start", start),
	)
	return EventRef{ID: created.ID, HtmlLink: created.HtmlLink}, nil
}

// ListUpcoming returns at most maxResults future events, earliest first.
func (s *Service) ListUpcoming(ctx context.Context, maxResults int) ([]Event, error) {
	const op = "calendar.list"
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > MaxResultsCap {
		maxResults = MaxResultsCap
	}

	var events []Event
	err := s.call(ctx, op, func() error {
		var err error
		events, err = s.up.List(ctx, s.now().UTC(), maxResults)
		return err
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	if len(events) > maxResults {
		events = events[:maxResults]
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}

func (s *Service) UpdateEvent(ctx context.Context, id string, patch EventPatch) (Event, error) {
	const op = "calendar.update"
	if strings.TrimSpace(id) == "" {
		return Event{}, apperr.Validation(op, "event id is required")
	}
	if patch.Empty() {
		return Event{}, apperr.Validation(op, "nothing to update")
	}
	if patch.Summary != nil && strings.TrimSpace(*patch.Summary) == "" {
		return Event{}, apperr.Validation(op, "event summary cannot be empty")
	}

	if patch.changesTime() {
		start, end := patch.Start, patch.End
		if start == nil || end == nil {
			var current Event
			err := s.call(ctx, op, func() error {
				var err error
				current, err = s.up.Get(ctx, id)
				return err
			})
			if err != nil {
				return Event{}, err
			}
			if start == nil {
				start = &current.Start
			}
			if end == nil {
				end = &current.End
			}
		}
		if !start.Before(*end) {
			return Event{}, apperr.Wrap(apperr.KindValidation, op, ErrInvalidRange.Error(), ErrInvalidRange)
		}
	}

	var updated Event
	err := s.call(ctx, op, func() error {
		var err error
		updated, err = s.up.Patch(ctx, id, patch)
		return err
	})
	if err != nil {
		return Event{}, err
	}

	utils.Logger.Info("calendar_event_updated", zap.String("event_id", id))
	return updated, nil
}

func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	const op = "calendar.delete"
	if strings.TrimSpace(id) == "" {
		return apperr.Validation(op, "event id is required")
	}

	if err := s.call(ctx, op, func() error { return s.up.Delete(ctx, id) }); err != nil {
		return err
	}

	utils.Logger.Info("calendar_event_deleted", zap.String("event_id", id))
	return nil
}

// call runs fn, refreshing credentials and retrying once on an auth failure.
func (s *Service) call(ctx context.Context, op string, fn func() error) error {
	err := classify(op, fn())
	if err == nil || !errors.Is(err, ErrAuth) || s.creds == nil {
		return err
	}

	utils.Logger.Warn("calendar_auth_refresh", zap.String("op", op), zap.Error(err))
	if refreshErr := s.creds.Refresh(ctx); refreshErr != nil {
		if apperr.KindOf(refreshErr) != apperr.KindInternal {
			return refreshErr
		}
		return apperr.Wrap(apperr.KindAuth, op, "calendar authorization failed, please reconnect Google Calendar", errors.Join(ErrAuth, refreshErr))
	}
	return classify(op, fn())
}

// Google reports quota exhaustion as 403 too. These are not auth failures.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"dailyLimitExceeded":    true,
	"quotaExceeded":         true,
}

// classify maps provider failures onto the error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindUpstream, op, "calendar request timed out", errors.Join(ErrUpstream, err))
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			return apperr.Wrap(apperr.KindNotFound, op, ErrNotFound.Error(), errors.Join(ErrNotFound, err))
		case http.StatusForbidden:
			if rateLimitReasons[pe.Reason] {
				break
			}
			return apperr.Wrap(apperr.KindAuth, op, "calendar authorization failed, please reconnect Google Calendar", errors.Join(ErrAuth, err))
		case http.StatusUnauthorized:
			return apperr.Wrap(apperr.KindAuth, op, "calendar authorization failed, please reconnect Google Calendar", errors.Join(ErrAuth, err))
		case http.StatusBadRequest:
			return apperr.Wrap(apperr.KindValidation, op, "calendar provider rejected the request", err)
		}
	}
	return apperr.Wrap(apperr.KindUpstream, op, "calendar provider is unavailable", errors.Join(ErrUpstream, err))
}
