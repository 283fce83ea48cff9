// Package resolver fills the slots a turn leaves implicit from the text of the
// turn itself and from earlier user turns of the same conversation.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gov-decisions-workers/internal/common/config"
	"gov-decisions-workers/internal/common/logger"
	"gov-decisions-workers/internal/engine/history"
	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/models"
)

const (
	recentWeight = 1.0
	olderWeight  = 0.8
)

// Config tunes history scanning.
type Config struct {
	HistoryWindow        int
	RecentWindow         int
	SimilarityThreshold  float64
	ClarificationEnabled bool
	LatencyBudget        time.Duration
	HistoryTimeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		HistoryWindow:        20,
		RecentWindow:         3,
		SimilarityThreshold:  0.8,
		ClarificationEnabled: true,
		LatencyBudget:        100 * time.Millisecond,
		HistoryTimeout:       50 * time.Millisecond,
	}
}

// ConfigFrom maps the loaded resolver section onto Config.
func ConfigFrom(c config.ResolverConfig) Config {
	cfg := DefaultConfig()
	if c.HistoryWindow > 0 {
		cfg.HistoryWindow = c.HistoryWindow
	}
	if c.RecentWindow > 0 {
		cfg.RecentWindow = c.RecentWindow
	}
	if c.SimilarityThreshold > 0 {
		cfg.SimilarityThreshold = c.SimilarityThreshold
	}
	if c.ClarificationEnabled != nil {
		cfg.ClarificationEnabled = *c.ClarificationEnabled
	}
	if c.LatencyBudget > 0 {
		cfg.LatencyBudget = time.Duration(c.LatencyBudget) * time.Millisecond
	}
	if c.HistoryTimeout > 0 {
		cfg.HistoryTimeout = time.Duration(c.HistoryTimeout) * time.Millisecond
	}
	return cfg
}

// RequiredSlots lists the slots an intent cannot be answered without.
func RequiredSlots(intent models.Intent) []models.Slot {
	switch intent {
	case models.IntentSearch:
		return []models.Slot{models.SlotGovernmentNumber}
	case models.IntentSpecificDecision:
		return []models.Slot{models.SlotDecisionNumber, models.SlotGovernmentNumber}
	case models.IntentCount:
		return nil
	case models.IntentComparison:
		return []models.Slot{models.SlotComparisonTargets}
	case models.IntentAnalysis, models.IntentEvaluation:
		return []models.Slot{models.SlotDecisionNumber}
	}
	return nil
}

// Resolver is safe for concurrent use. It keeps no per-request state.
type Resolver struct {
	cfg       Config
	store     history.Store
	extractor *Extractor
	sink      MetricsSink
	log       logger.Logger
}

type Option func(*Resolver)

func WithMetrics(s MetricsSink) Option {
	return func(r *Resolver) {
		if s != nil {
			r.sink = s
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		r.log = logger.ForComponent(l, "resolver")
	}
}

func New(cfg Config, store history.Store, n *normalizer.Normalizer, opts ...Option) *Resolver {
	r := &Resolver{
		cfg:       cfg,
		store:     store,
		extractor: NewExtractor(n),
		sink:      nopSink{},
		log:       logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithStore returns a resolver sharing r's configuration and sink that reads
// history from store.
func (r *Resolver) WithStore(store history.Store) *Resolver {
	cp := *r
	cp.store = store
	return &cp
}

// Extractor exposes the pattern matchers used on turn text.
func (r *Resolver) Extractor() *Extractor {
	return r.extractor
}

// Resolve never fails: faults are reported through the error route with the
// original text untouched.
func (r *Resolver) Resolve(ctx context.Context, conversationID, userText string, current models.EntitySet, intent models.Intent) (res models.ResolutionResult) {
	started := time.Now()
	merged := current.Clone()

	defer func() {
		if p := recover(); p != nil {
			res = errorResult(userText, merged, fmt.Sprintf("internal fault: %v", p))
		}
		if res.Route == models.RouteError {
			r.log.Warn("reference resolution failed", map[string]interface{}{
				"conversationId": conversationID,
				"reason":         res.Reasoning,
			})
		}
		r.sink.ResolutionAttempt(string(res.Route))
		if elapsed := time.Since(started); r.cfg.LatencyBudget > 0 && elapsed > r.cfg.LatencyBudget {
			r.sink.LatencyBudgetExceeded()
			r.log.Warn("resolution exceeded latency budget", map[string]interface{}{
				"conversationId": conversationID,
				"elapsedMs":      elapsed.Milliseconds(),
				"budgetMs":       r.cfg.LatencyBudget.Milliseconds(),
			})
		}
	}()

	fromText, matched := r.extractor.Extract(userText)
	for _, slot := range matched {
		r.sink.PatternMatch(string(slot))
	}
	merged = merged.Overlay(fromText)

	required := RequiredSlots(intent)
	missing := missingSlots(&merged, required)
	if len(missing) == 0 {
		return models.ResolutionResult{
			EnrichedText: enrich(userText, fromText, merged),
			Entities:     merged,
			Route:        models.RouteEnriched,
			Reasoning:    fmt.Sprintf("all required slots for %s present in the current turn", intent),
		}
	}

	if r.store == nil {
		return errorResult(userText, merged, history.ErrNoStore.Error())
	}

	turns, err := r.fetch(ctx, conversationID)
	if err != nil {
		return errorResult(userText, merged, fmt.Sprintf("%s: %v", historyFetchFailed, err))
	}

	filled := r.fillFromHistory(turns, &merged, missing)
	for _, slot := range filled {
		r.sink.HistoryResolution(string(slot))
	}

	missing = missingSlots(&merged, required)
	if len(missing) == 0 {
		return models.ResolutionResult{
			EnrichedText: enrich(userText, fromText, merged),
			Entities:     merged,
			Route:        models.RouteEnriched,
			Reasoning:    fmt.Sprintf("resolved %s from conversation history", joinSlots(filled)),
			HistorySlots: filled,
		}
	}

	if !r.cfg.ClarificationEnabled {
		return models.ResolutionResult{
			EnrichedText: enrich(userText, fromText, merged),
			Entities:     merged,
			Route:        models.RoutePassthrough,
			Reasoning:    fmt.Sprintf("missing %s and clarification is disabled", joinSlots(missing)),
			HistorySlots: filled,
		}
	}

	r.sink.ClarificationIssued()
	return models.ResolutionResult{
		EnrichedText:        userText,
		Entities:            merged,
		NeedsClarification:  true,
		ClarificationPrompt: ClarificationPrompt(&merged, missing),
		Route:               models.RouteClarify,
		Reasoning:           fmt.Sprintf("missing %s after scanning history", joinSlots(missing)),
		HistorySlots:        filled,
	}
}

func (r *Resolver) fetch(ctx context.Context, conversationID string) ([]models.Turn, error) {
	if r.cfg.HistoryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.HistoryTimeout)
		defer cancel()
	}
	turns, err := r.store.Fetch(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if r.cfg.HistoryWindow > 0 && len(turns) > r.cfg.HistoryWindow {
		turns = turns[:r.cfg.HistoryWindow]
	}
	for i, t := range turns {
		if t.Speaker != models.SpeakerUser && t.Speaker != models.SpeakerAssistant {
			return nil, fmt.Errorf("%w: entry %d: unknown speaker %q", history.ErrMalformedTurn, i, t.Speaker)
		}
	}
	return turns, nil
}

// fillFromHistory scans user turns, most recent first, for each missing slot.
// Assistant turns are never a source of entities.
func (r *Resolver) fillFromHistory(turns []models.Turn, merged *models.EntitySet, missing []models.Slot) []models.Slot {
	var user []models.Turn
	for _, t := range turns {
		if t.Speaker == models.SpeakerUser {
			user = append(user, t)
		}
	}

	extracted := make([]*models.EntitySet, len(user))
	var filled []models.Slot
	for _, slot := range missing {
		for i, t := range user {
			if extracted[i] == nil {
				e, _ := r.extractor.Extract(t.Text)
				extracted[i] = &e
			}
			if !extracted[i].Has(slot) {
				continue
			}
			// Self-similarity is always 1, so only the recency weight gates
			// acceptance. Kept until turns are compared against the current
			// utterance.
			score := textSimilarity(t.Text, t.Text) * r.weight(i)
			if score < r.cfg.SimilarityThreshold {
				continue
			}
			merged.Copy(slot, *extracted[i])
			filled = append(filled, slot)
			break
		}
	}
	return filled
}

func (r *Resolver) weight(index int) float64 {
	if index < r.cfg.RecentWindow {
		return recentWeight
	}
	return olderWeight
}

func missingSlots(e *models.EntitySet, required []models.Slot) []models.Slot {
	var out []models.Slot
	for _, s := range required {
		if !e.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

const historyFetchFailed = "history fetch failed"

// IsHistoryFault reports whether res took the error route because the
// conversation history could not be read.
func IsHistoryFault(res models.ResolutionResult) bool {
	if res.Route != models.RouteError {
		return false
	}
	return res.Reasoning == history.ErrNoStore.Error() || strings.HasPrefix(res.Reasoning, historyFetchFailed)
}

func errorResult(text string, merged models.EntitySet, reason string) models.ResolutionResult {
	return models.ResolutionResult{
		EnrichedText: text,
		Entities:     merged,
		Route:        models.RouteError,
		Reasoning:    reason,
	}
}

func joinSlots(slots []models.Slot) string {
	parts := make([]string, len(slots))
	for i, s := range slots {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
