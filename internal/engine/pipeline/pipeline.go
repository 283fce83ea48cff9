// Package pipeline runs one conversational turn through the engine:
// normalize, resolve, classify and compile.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gov-decisions-workers/internal/common/logger"
	"gov-decisions-workers/internal/common/validation"
	"gov-decisions-workers/internal/engine/classifier"
	"gov-decisions-workers/internal/engine/history"
	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/engine/orchestrator"
	"gov-decisions-workers/internal/engine/resolver"
	"gov-decisions-workers/internal/models"
)

var ErrInvalidRequest = errors.New("INVALID_REQUEST")

// Request is the inbound payload of one conversational turn.
type Request struct {
	ConversationID      string                 `json:"conversationId"`
	RawText             string                 `json:"rawText"`
	Intent              string                 `json:"intent"`
	Entities            map[string]interface{} `json:"entities"`
	ConversationHistory []models.Turn          `json:"conversationHistory"`
	ContextSummary      string                 `json:"contextSummary,omitempty"`
}

const requestSchema = `{
  "type": "object",
  "required": ["rawText", "intent"],
  "properties": {
    "conversationId": {"type": "string"},
    "rawText": {"type": "string"},
    "intent": {"type": "string", "minLength": 1},
    "entities": {"type": ["object", "null"]},
    "contextSummary": {"type": ["string", "null"]},
    "conversationHistory": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["speaker", "text"],
        "properties": {
          "turnId": {"type": "string"},
          "speaker": {"type": "string", "enum": ["user", "assistant"]},
          "text": {"type": "string"},
          "timestamp": {"type": "string"}
        }
      }
    }
  }
}`

// RequestSchema validates raw inbound payloads before they are decoded.
var RequestSchema = validation.MustCompile("inbound-request", requestSchema)

// Result is the outbound payload. Query is nil when the turn needs clarification.
type Result struct {
	*models.AssembledQuery
	NeedsClarification  bool                    `json:"needsClarification"`
	ClarificationPrompt string                  `json:"clarificationPrompt,omitempty"`
	Resolution          models.ResolutionResult `json:"resolution"`

	Outcome orchestrator.Outcome `json:"-"`
}

// Engine is safe for concurrent use.
type Engine struct {
	normalizer   *normalizer.Normalizer
	resolver     *resolver.Resolver
	orchestrator *orchestrator.Orchestrator
	store        history.Store
	historyLimit int
	log          logger.Logger
}

// New wires an engine. store backs conversations that carry no history on
// the request; it may be nil.
func New(n *normalizer.Normalizer, r *resolver.Resolver, o *orchestrator.Orchestrator, store history.Store, historyLimit int, log logger.Logger) *Engine {
	return &Engine{
		normalizer:   n,
		resolver:     r,
		orchestrator: o,
		store:        store,
		historyLimit: historyLimit,
		log:          logger.ForComponent(log, "pipeline"),
	}
}

// Decode validates raw against RequestSchema and decodes it.
func Decode(raw []byte) (*Request, error) {
	if res := RequestSchema.ValidateJSON(raw); !res.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, res.Summary())
	}
	// Entity numbers stay json.Number so the normalizer sees the literal sent.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var req Request
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return &req, nil
}

// Prepare parses the intent and normalizes the raw entities.
func (e *Engine) Prepare(req *Request) (models.Intent, models.EntitySet, normalizer.Report, error) {
	intent, err := models.ParseIntent(req.Intent)
	if err != nil {
		return intent, models.EntitySet{}, normalizer.Report{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	entities, rep := e.normalizer.Normalize(req.Entities)
	if len(rep.Dropped) > 0 {
		e.log.Debug("dropped unusable entities", map[string]interface{}{
			"conversationId": req.ConversationID,
			"dropped":        rep.Dropped,
		})
	}
	return intent, entities, rep, nil
}

// Resolve normalizes the request and resolves references against history.
// History carried on the request wins over the configured store.
func (e *Engine) Resolve(ctx context.Context, req *Request) (models.ResolutionResult, normalizer.Report, error) {
	intent, entities, rep, err := e.Prepare(req)
	if err != nil {
		return models.ResolutionResult{}, rep, err
	}
	store := history.FirstNonEmpty{history.NewRequestStore(req.ConversationHistory, e.historyLimit), e.store}
	return e.resolver.WithStore(store).Resolve(ctx, req.ConversationID, req.RawText, entities, intent), rep, nil
}

// Compile runs the whole turn. The clarify route short-circuits with no
// query. Errors are returned only for invalid requests.
func (e *Engine) Compile(ctx context.Context, req *Request) (*Result, error) {
	res, rep, err := e.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Route == models.RouteClarify {
		return &Result{
			NeedsClarification:  true,
			ClarificationPrompt: res.ClarificationPrompt,
			Resolution:          res,
		}, nil
	}

	intent, _ := models.ParseIntent(req.Intent)
	qt := classifier.Classify(intent, res.Entities, res.EnrichedText)

	outcome := e.orchestrator.Compile(ctx, orchestrator.Request{
		Text:                res.EnrichedText,
		Intent:              intent,
		Entities:            res.Entities,
		QueryType:           qt,
		SynonymExpansions:   rep.SynonymExpansions,
		DateInterpretations: rep.DateInterpretations,
	})

	query := outcome.Assembled()
	if res.Route == models.RouteError {
		query.Warnings = append(query.Warnings, "resolution: "+res.Reasoning)
	}
	return &Result{AssembledQuery: query, Resolution: res, Outcome: outcome}, nil
}
