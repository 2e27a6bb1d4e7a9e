// Package calendar creates, lists, updates and deletes events on a user's
// calendar through a provider-agnostic Gateway.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxResults = 10
	MaxResultsCap     = 250
)

var (
	ErrInvalidRange = errors.New("event start must be before end")
	ErrNotFound     = errors.New("event not found")
	ErrAuth         = errors.New("calendar authorization failed")
	ErrUpstream     = errors.New("calendar provider failed")
)

type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day,omitempty"`
	Status      string    `json:"status,omitempty"`
	HtmlLink    string    `json:"html_link,omitempty"`
}

type EventRef struct {
	ID       string `json:"id"`
	HtmlLink string `json:"html_link,omitempty"`
}

// EventPatch changes only the non-nil fields.
type EventPatch struct {
	Summary     *string    `json:"summary,omitempty"`
	Description *string    `json:"description,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
}

func (p EventPatch) Empty() bool {
	return p.Summary == nil && p.Description == nil && p.Start == nil && p.End == nil
}

func (p EventPatch) changesTime() bool {
	return p.Start != nil || p.End != nil
}

// Gateway is the calendar capability the agents and HTTP handlers use.
type Gateway interface {
	CreateEvent(ctx context.Context, summary string, start, end time.Time) (EventRef, error)
	ListUpcoming(ctx context.Context, maxResults int) ([]Event, error)
	UpdateEvent(ctx context.Context, id string, patch EventPatch) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Upstream is a raw provider. It reports provider failures as *ProviderError.
type Upstream interface {
	Insert(ctx context.Context, ev Event) (Event, error)
	List(ctx context.Context, from time.Time, maxResults int) ([]Event, error)
	Get(ctx context.Context, id string) (Event, error)
	Patch(ctx context.Context, id string, patch EventPatch) (Event, error)
	Delete(ctx context.Context, id string) error
}

// Credentials can renew the access token the Upstream is using.
type Credentials interface {
	Refresh(ctx context.Context) error
}

// ProviderError is an HTTP-level failure from the calendar provider.
// Reason is the first googleapi error reason, e.g. "insufficientPermissions".
type ProviderError struct {
	StatusCode int
	Reason     string
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("calendar API error (%d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("calendar API error (%d): %s", e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// FormatEventSummary returns a one-line description of the event.
func (e Event) FormatEventSummary() string {
	if e.AllDay {
		return fmt.Sprintf("%s (all day %s)", e.Summary, e.Start.Format("Jan 2"))
	}
	return fmt.Sprintf("%s (%s - %s)", e.Summary, e.Start.Format("Mon Jan 2 15:04"), e.End.Format("15:04"))
}
