// Package orchestrator compiles a resolved request into a validated query,
// trying the template catalog and assisted generation at most once each.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"gov-decisions-workers/internal/common/config"
	"gov-decisions-workers/internal/common/logger"
	"gov-decisions-workers/internal/engine/catalog"
	"gov-decisions-workers/internal/engine/classifier"
	"gov-decisions-workers/internal/engine/generation"
	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/engine/params"
	"gov-decisions-workers/internal/engine/selector"
	"gov-decisions-workers/internal/engine/validator"
	"gov-decisions-workers/internal/models"
)

// Config holds the confidence policy.
type Config struct {
	TemplateConfidence      float64
	AssistedMaxConfidence   float64
	InvalidConfidenceFactor float64
	DefaultGovernment       int
	GenerationTimeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		TemplateConfidence:      0.95,
		AssistedMaxConfidence:   0.85,
		InvalidConfidenceFactor: 0.5,
		DefaultGovernment:       selector.DefaultGovernment,
		GenerationTimeout:       30 * time.Second,
	}
}

// ConfigFrom maps the loaded orchestrator section onto Config.
func ConfigFrom(c config.OrchestratorConfig) Config {
	cfg := DefaultConfig()
	if c.TemplateConfidence > 0 {
		cfg.TemplateConfidence = c.TemplateConfidence
	}
	if c.AssistedMaxConfidence > 0 {
		cfg.AssistedMaxConfidence = c.AssistedMaxConfidence
	}
	if c.InvalidConfidenceFactor > 0 {
		cfg.InvalidConfidenceFactor = c.InvalidConfidenceFactor
	}
	if c.DefaultGovernment > 0 {
		cfg.DefaultGovernment = c.DefaultGovernment
	}
	if c.GenerationTimeout > 0 {
		cfg.GenerationTimeout = time.Duration(c.GenerationTimeout) * time.Millisecond
	}
	return cfg
}

// MetricsSink receives compilation events.
type MetricsSink interface {
	CompileFinished(method string, d time.Duration)
	TemplateMiss(reason string)
	AssistedValidationFailed()
}

// Tracer starts spans; *observability.Observability satisfies it.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
}

type nopSink struct{}

func (nopSink) CompileFinished(string, time.Duration) {}
func (nopSink) TemplateMiss(string)                   {}
func (nopSink) AssistedValidationFailed()             {}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, name string, _ ...attribute.KeyValue) (context.Context, trace.Span) {
	return noop.NewTracerProvider().Tracer("").Start(ctx, name)
}

// Request is one resolved turn ready for compilation.
type Request struct {
	Text     string
	Intent   models.Intent
	Entities models.EntitySet
	// QueryType is classified from intent, entities and text when empty.
	QueryType           models.QueryType
	SynonymExpansions   []string
	DateInterpretations []string
}

type state int

const (
	stateTemplate state = iota
	stateAssisted
	stateDone
)

// Template miss kinds reported to the metrics sink.
const (
	MissNoTemplate       = "no_template"
	MissMissingParameter = "missing_parameter"
	MissInvalidParameter = "invalid_parameter"
	MissValidation       = "validation"
)

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	cfg        Config
	selector   *selector.Selector
	builder    *params.Builder
	validator  *validator.Validator
	normalizer *normalizer.Normalizer
	generator  generation.Generator
	sink       MetricsSink
	tracer     Tracer
	log        logger.Logger
}

type Option func(*Orchestrator)

func WithMetrics(s MetricsSink) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sink = s
		}
	}
}

func WithTracer(t Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		o.log = logger.ForComponent(l, "orchestrator")
	}
}

// New wires the orchestrator. generator may be nil, in which case every
// assisted attempt is a collaborator failure.
func New(cfg Config, cat *catalog.Catalog, builder *params.Builder, n *normalizer.Normalizer, generator generation.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		selector:   selector.New(cat, cfg.DefaultGovernment),
		builder:    builder,
		validator:  validator.New(),
		normalizer: n,
		generator:  generator,
		sink:       nopSink{},
		tracer:     nopTracer{},
		log:        logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// PreferTemplate decides where compilation starts. Multi-word date
// expressions, typos and multi-ministry requests always start assisted.
func (o *Orchestrator) PreferTemplate(text string, entities *models.EntitySet, qt models.QueryType) bool {
	if o.normalizer.HasMultiWordDateExpression(text) || o.normalizer.ContainsTypo(text) {
		return false
	}
	if len(entities.Ministries) > 1 {
		return false
	}
	dims := entities.FilterDimensions()
	if qt == models.QueryTypeCount && dims > 0 {
		return true
	}
	if entities.Has(models.SlotDecisionNumber) && dims <= 1 {
		return true
	}
	return dims < 3
}

// Compile runs the state machine. It never returns nil and never panics on
// collaborator faults.
func (o *Orchestrator) Compile(ctx context.Context, req Request) Outcome {
	started := time.Now()
	entities := req.Entities.Clone()
	qt := req.QueryType
	if !qt.Valid() {
		qt = classifier.Classify(req.Intent, entities, req.Text)
	}

	ctx, span := o.tracer.StartSpan(ctx, "orchestrator.compile",
		attribute.String("intent", req.Intent.String()),
		attribute.String("queryType", string(qt)),
	)
	defer span.End()

	extras := models.AssembledQuery{
		QueryType:           qt,
		SynonymExpansions:   nonNil(req.SynonymExpansions),
		DateInterpretations: nonNil(req.DateInterpretations),
	}

	st := stateAssisted
	if o.PreferTemplate(req.Text, &entities, qt) {
		st = stateTemplate
	}
	span.SetAttributes(attribute.Bool("preferTemplate", st == stateTemplate))

	var (
		warnings []string
		partial  *models.AssembledQuery
		genErr   error
		outcome  Outcome
		tried    = map[state]bool{}
	)

	for st != stateDone {
		tried[st] = true
		switch st {
		case stateTemplate:
			q, kind, reason := o.attemptTemplate(req, entities, qt, extras)
			if kind == "" {
				q.Warnings = append(q.Warnings, warnings...)
				outcome = TemplateResult{Query: *q}
				st = stateDone
				continue
			}
			o.sink.TemplateMiss(kind)
			warnings = append(warnings, "template: "+reason)
			if q != nil {
				partial = q
			}
			if tried[stateAssisted] {
				outcome = Failure{Reason: "no template fits and assisted generation failed", Warnings: warnings, Partial: partial, Extras: extras, Cause: genErr}
				st = stateDone
				continue
			}
			st = stateAssisted

		case stateAssisted:
			result, err := o.attemptAssisted(ctx, req, entities, qt, extras, warnings)
			if err == nil {
				if !result.Query.Valid {
					o.sink.AssistedValidationFailed()
				}
				outcome = *result
				st = stateDone
				continue
			}
			genErr = err
			warnings = append(warnings, "assisted: "+err.Error())
			o.log.Warn("assisted generation failed", map[string]interface{}{
				"intent": req.Intent.String(),
				"error":  err.Error(),
			})
			if tried[stateTemplate] {
				outcome = Failure{Reason: collaboratorReason(err), Warnings: warnings, Partial: partial, Extras: extras, Cause: genErr}
				st = stateDone
				continue
			}
			st = stateTemplate
		}
	}

	final := outcome.Assembled()
	o.sink.CompileFinished(string(final.Method), time.Since(started))
	span.SetAttributes(
		attribute.String("method", string(final.Method)),
		attribute.Bool("valid", final.Valid),
		attribute.Float64("confidence", final.Confidence),
	)
	return outcome
}

func collaboratorReason(err error) string {
	if errors.Is(err, generation.ErrGenerationTimeout) {
		return "generation service timed out"
	}
	return "generation service failed"
}

// attemptTemplate returns the query on success, or a miss kind and reason.
// A query that built but failed validation is returned alongside its miss.
// Selection may fill derived slots, so it works on its own copy.
func (o *Orchestrator) attemptTemplate(req Request, original models.EntitySet, qt models.QueryType, extras models.AssembledQuery) (*models.AssembledQuery, string, string) {
	entities := original.Clone()
	tpl, ok := o.selector.Select(req.Intent, &entities, req.Text)
	if !ok {
		return nil, MissNoTemplate, fmt.Sprintf("no template for intent %s", req.Intent)
	}

	values, err := o.builder.Build(tpl, entities)
	if err != nil {
		kind := MissInvalidParameter
		if errors.Is(err, params.ErrMissingParam) {
			kind = MissMissingParameter
		}
		return nil, kind, err.Error()
	}

	sql := tpl.Render(values)
	q := extras
	q.ID = uuid.NewString()
	q.SQL = sql
	q.Parameters = params.Typed(sql, values)
	q.TemplateName = tpl.Name
	q.Method = models.MethodTemplate
	q.Warnings = []string{}

	if unbound := params.CheckProvided(sql, values); len(unbound) > 0 {
		return &q, MissMissingParameter, fmt.Sprintf("template %s leaves %v unbound", tpl.Name, unbound)
	}
	if v := o.validator.Validate(sql, entities, qt); !v.Valid {
		return &q, MissValidation, fmt.Sprintf("template %s rejected: %s", tpl.Name, v.Reason)
	}

	q.Valid = true
	q.Confidence = o.cfg.TemplateConfidence
	return &q, "", ""
}

// attemptAssisted returns an error only for collaborator faults. Validation
// failures come back as an invalid AssistedResult.
func (o *Orchestrator) attemptAssisted(ctx context.Context, req Request, entities models.EntitySet, qt models.QueryType, extras models.AssembledQuery, warnings []string) (*AssistedResult, error) {
	if o.generator == nil {
		return nil, fmt.Errorf("%w: no generator configured", generation.ErrGenerationFailed)
	}

	if o.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.GenerationTimeout)
		defer cancel()
	}

	genReq := generation.Request{
		Intent:    req.Intent,
		QueryType: qt,
		Text:      req.Text,
		Entities:  entities,
	}
	if len(warnings) > 0 {
		genReq.FailureReason = warnings[len(warnings)-1]
	}

	resp, err := o.callGenerator(ctx, genReq)
	if err != nil {
		return nil, err
	}

	q := extras
	q.ID = uuid.NewString()
	q.SQL = resp.SQL
	q.TemplateName = models.AssistedTemplateName
	q.Method = models.MethodAssisted
	q.Warnings = append([]string{}, warnings...)
	if resp.QueryType.Valid() && resp.QueryType != qt {
		q.Warnings = append(q.Warnings, fmt.Sprintf("generator reported query type %s, validated as %s", resp.QueryType, qt))
	}

	confidence := resp.Confidence
	if confidence <= 0 || confidence > o.cfg.AssistedMaxConfidence {
		confidence = o.cfg.AssistedMaxConfidence
	}

	outcome := models.ValidationOutcome{Valid: true}
	values, err := o.builder.Sanitize(resp.Parameters)
	switch {
	case err != nil:
		outcome = models.ValidationOutcome{Reason: err.Error()}
	default:
		q.Parameters = params.Typed(resp.SQL, values)
		if unbound := params.CheckProvided(resp.SQL, values); len(unbound) > 0 {
			outcome = models.ValidationOutcome{Reason: fmt.Sprintf("unbound parameters %v", unbound)}
		} else {
			outcome = o.validator.Validate(resp.SQL, entities, qt)
		}
	}

	if !outcome.Valid {
		confidence *= o.cfg.InvalidConfidenceFactor
		q.Warnings = append(q.Warnings, "validation: "+outcome.Reason)
	}
	if q.Parameters == nil {
		q.Parameters = []models.Parameter{}
	}
	q.Valid = outcome.Valid
	q.Confidence = confidence
	return &AssistedResult{Query: q, Validation: outcome}, nil
}

// callGenerator turns a panicking collaborator into a failure.
func (o *Orchestrator) callGenerator(ctx context.Context, req generation.Request) (resp *generation.Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			resp, err = nil, fmt.Errorf("%w: panic: %v", generation.ErrGenerationFailed, p)
		}
	}()
	resp, err = o.generator.Generate(ctx, req)
	if err == nil && resp == nil {
		err = fmt.Errorf("%w: empty response", generation.ErrMalformedResponse)
	}
	if err != nil && ctx.Err() != nil && !errors.Is(err, generation.ErrGenerationTimeout) {
		err = fmt.Errorf("%w: %v", generation.ErrGenerationTimeout, err)
	}
	return resp, err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
