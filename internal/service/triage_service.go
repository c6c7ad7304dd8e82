package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wrrk/support/internal/ai"
	"github.com/wrrk/support/internal/config"
	"github.com/wrrk/support/internal/observability"
)

// TriageDecision is the envelope around one AI-first resolution attempt.
type TriageDecision struct {
	Resolved   bool
	Response   string
	Confidence float64
}

// TriageService decides whether a customer message can be answered
// automatically or must become a ticket. The judgment itself is the
// model's; this service owns only the decision envelope, the threshold,
// and the failure policy: anything that goes wrong means escalate.
type TriageService struct {
	model     ai.Completer
	threshold float64
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewTriageService constructs the gate from config.
func NewTriageService(model ai.Completer, cfg config.AIConfig, logger *zap.Logger, metrics *observability.Metrics) *TriageService {
	return &TriageService{
		model:     model,
		threshold: cfg.ResolveThreshold,
		timeout:   cfg.Timeout(),
		logger:    logger,
		metrics:   metrics,
	}
}

// humanRequestPhrases short-circuit triage: when the customer asks for a
// person, no model confidence overrides them.
var humanRequestPhrases = []string{
	"talk to a human",
	"speak to a human",
	"talk to a person",
	"speak to a person",
	"speak to someone",
	"real person",
	"human agent",
	"human support",
	"talk to an agent",
	"speak to an agent",
}

// triageResult is the JSON shape the model must return. Required fields
// are pointers so a missing key is detectable; any deviation from the
// schema counts as a parse failure.
type triageResult struct {
	CanResolve *bool    `json:"canResolve"`
	Confidence *float64 `json:"confidence"`
	Response   *string  `json:"response"`
}

// TryResolve runs the AI-first flow for one customer message. It never
// returns an error: model failures, timeouts, and malformed output all
// collapse to unresolved with zero confidence, because creating a ticket
// is always a safe fallback. Behavior is identical for every channel.
func (s *TriageService) TryResolve(ctx context.Context, orgID, message string) TriageDecision {
	if RequestsHuman(message) {
		s.recordOutcome("human_requested")
		return TriageDecision{}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.model.Complete(callCtx, buildTriagePrompt(message))
	if err != nil {
		s.logger.Warn("triage model call failed",
			zap.String("organization_id", orgID),
			zap.Error(err))
		s.recordOutcome("model_failure")
		return TriageDecision{}
	}

	result, err := parseTriageResult(out)
	if err != nil {
		s.logger.Warn("triage model output unparseable",
			zap.String("organization_id", orgID),
			zap.Error(err))
		s.recordOutcome("model_failure")
		return TriageDecision{}
	}

	// Strict greater-than: confidence exactly at the threshold escalates.
	resolved := *result.CanResolve && *result.Confidence > s.threshold
	decision := TriageDecision{
		Resolved:   resolved,
		Confidence: *result.Confidence,
	}
	if resolved {
		decision.Response = *result.Response
		s.recordOutcome("resolved")
	} else {
		s.recordOutcome("escalated")
	}
	return decision
}

// RequestsHuman reports whether the message explicitly asks for a person.
func RequestsHuman(message string) bool {
	lowered := strings.ToLower(message)
	for _, phrase := range humanRequestPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func parseTriageResult(raw string) (*triageResult, error) {
	decoder := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	decoder.DisallowUnknownFields()

	var result triageResult
	if err := decoder.Decode(&result); err != nil {
		return nil, err
	}
	if result.CanResolve == nil || result.Confidence == nil {
		return nil, fmt.Errorf("triage result missing required fields")
	}
	if *result.Confidence < 0 || *result.Confidence > 1 {
		return nil, fmt.Errorf("triage confidence %v outside [0,1]", *result.Confidence)
	}
	if *result.CanResolve && result.Response == nil {
		return nil, fmt.Errorf("triage result resolvable but missing response")
	}
	return &result, nil
}

func buildTriagePrompt(message string) string {
	var b strings.Builder
	b.WriteString("You are a customer support assistant. Decide whether you can fully resolve the customer's message below without a human. ")
	b.WriteString(`Reply with only a JSON object: {"canResolve": bool, "confidence": number between 0 and 1, "response": string}.`)
	b.WriteString("\n\nCustomer message:\n")
	b.WriteString(message)
	return b.String()
}

func (s *TriageService) recordOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordTriage(outcome)
	}
}
