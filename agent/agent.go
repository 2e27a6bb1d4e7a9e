// Package agent classifies a chat message and delegates it to exactly one
// specialist: calendar, syllabus or the unhandled fallback.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"go.uber.org/zap"
)

type Intent string

const (
	IntentCalendar  Intent = "calendar"
	IntentSyllabus  Intent = "syllabus"
	IntentUnhandled Intent = "unhandled"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentCalendar, IntentSyllabus, IntentUnhandled:
		return true
	}
	return false
}

const DefaultConfidenceThreshold = 0.5

// Decision is the classifier's verdict for one request.
type Decision struct {
	Intent     Intent          `json:"intent"`
	Confidence float64         `json:"confidence"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Rationale  string          `json:"rationale,omitempty"`

	// Clarify is set by the router when the verdict was too uncertain to
	// act on. Guess keeps the intent the classifier leaned towards.
	Clarify bool   `json:"-"`
	Guess   Intent `json:"-"`
}

type Request struct {
	UserID   string
	Message  string
	FilePath string // set when a syllabus upload accompanies the message
}

type Reply struct {
	Text       string  `json:"reply"`
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

type Classifier interface {
	Classify(ctx context.Context, req Request) (Decision, error)
}

// Specialist handles requests of one intent and produces the reply text.
type Specialist interface {
	Intent() Intent
	Handle(ctx context.Context, req Request, dec Decision) (string, error)
}

type Router struct {
	classifier  Classifier
	specialists map[Intent]Specialist
	threshold   float64
}

func NewRouter(classifier Classifier, threshold float64, specialists ...Specialist) (*Router, error) {
	r := &Router{
		classifier:  classifier,
		specialists: make(map[Intent]Specialist, len(specialists)),
		threshold:   threshold,
	}
	for _, s := range specialists {
		if _, dup := r.specialists[s.Intent()]; dup {
			return nil, fmt.Errorf("duplicate specialist for intent %q", s.Intent())
		}
		r.specialists[s.Intent()] = s
	}
	if _, ok := r.specialists[IntentUnhandled]; !ok {
		return nil, fmt.Errorf("router needs a specialist for %q", IntentUnhandled)
	}
	return r, nil
}

// Route classifies req once and hands it to a single specialist. A failed
// or unusable classification falls back to the unhandled specialist; it is
// logged and never retried.
func (r *Router) Route(ctx context.Context, req Request) (Reply, error) {
	const op = "agent.route"
	if strings.TrimSpace(req.UserID) == "" {
		return Reply{}, apperr.Validation(op, "user_id is required")
	}
	if strings.TrimSpace(req.Message) == "" && req.FilePath == "" {
		return Reply{}, apperr.Validation(op, "message is required")
	}

	dec := r.decide(ctx, req)
	spec := r.specialists[dec.Intent]
	utils.AgentRoutes.WithLabelValues(string(dec.Intent)).Inc()

	text, err := spec.Handle(ctx, req, dec)
	if err != nil {
		utils.Logger.Error("agent_specialist_failed",
			zap.String("user_id", req.UserID),
			zap.String("intent", string(dec.Intent)),
			zap.Error(err),
		)
		return Reply{}, err
	}

	utils.Logger.Info("agent_routed",
		zap.String("user_id", req.UserID),
		zap.String("intent", string(dec.Intent)),
		zap.Float64("confidence", dec.Confidence),
	)
	return Reply{Text: text, Intent: dec.Intent, Confidence: dec.Confidence}, nil
}

func (r *Router) decide(ctx context.Context, req Request) Decision {
	dec, err := r.classifier.Classify(ctx, req)
	if err != nil {
		utils.Logger.Warn("agent_classification_failed",
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		return Decision{Intent: IntentUnhandled}
	}

	if _, ok := r.specialists[dec.Intent]; !ok {
		utils.Logger.Warn("agent_misclassified",
			zap.String("user_id", req.UserID),
			zap.String("intent", string(dec.Intent)),
		)
		return Decision{Intent: IntentUnhandled, Confidence: dec.Confidence}
	}

	if dec.Intent != IntentUnhandled && dec.Confidence < r.threshold {
		utils.Logger.Info("agent_low_confidence",
			zap.String("user_id", req.UserID),
			zap.String("intent", string(dec.Intent)),
			zap.Float64("confidence", dec.Confidence),
			zap.Float64("threshold", r.threshold),
		)
		return Decision{Intent: IntentUnhandled, Confidence: dec.Confidence, Clarify: true, Guess: dec.Intent}
	}
	return dec
}
