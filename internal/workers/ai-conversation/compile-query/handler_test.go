package compilequery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gov-decisions-workers/internal/common/logger"
	"gov-decisions-workers/internal/engine/catalog"
	"gov-decisions-workers/internal/engine/generation"
	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/engine/orchestrator"
	"gov-decisions-workers/internal/engine/params"
	"gov-decisions-workers/internal/engine/pipeline"
	"gov-decisions-workers/internal/engine/resolver"
	"gov-decisions-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}

func createTestHandler(t *testing.T, config *Config, gen generation.Generator) *Handler {
	t.Helper()
	if config == nil {
		config = createTestConfig()
	}
	log := logger.NewTestLogger(t)
	n := normalizer.MustDefault()
	r := resolver.New(resolver.DefaultConfig(), nil, n, resolver.WithLogger(log))
	o := orchestrator.New(orchestrator.DefaultConfig(), catalog.Default(), params.NewBuilder(params.DefaultConfig()), n, gen,
		orchestrator.WithLogger(log))
	return NewHandler(config, pipeline.New(n, r, o, nil, 20, log), log)
}

// createGenAIServer serves the generate-sql endpoint with a fixed reply.
func createGenAIServer(t *testing.T, reply map[string]interface{}, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/ai/generate-sql", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(server.Close)
	return server
}

// typoLookup routes to assisted generation: "החלתה" is a known typo.
func typoLookup() *Input {
	return &Input{
		ConversationID: "c-typo",
		RawText:        "תביא את החלתה 2989 של ממשלה 37",
		Intent:         "search",
		Entities:       map[string]interface{}{"decisionNumber": 2989, "governmentNumber": 37},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_TemplatePath(t *testing.T) {
	handler := createTestHandler(t, nil, nil)

	output, err := handler.Execute(context.Background(), &Input{
		ConversationID: "c-1",
		RawText:        "תביא את החלטה 2989",
		Intent:         "specific_decision",
		Entities:       map[string]interface{}{"decisionNumber": 2989, "governmentNumber": 37},
	})

	require.NoError(t, err)
	require.NotNil(t, output.AssembledQuery)
	assert.Equal(t, catalog.DecisionByNumber, output.TemplateName)
	assert.Equal(t, models.MethodTemplate, output.Method)
	assert.Equal(t, models.QueryTypePointLookup, output.QueryType)
	assert.True(t, output.Valid)
	assert.InDelta(t, 0.95, output.Confidence, 1e-9)
	assert.Contains(t, output.SQL, "decision_number = @decision_number")
}

func TestHandler_Execute_ClarificationShortCircuits(t *testing.T) {
	var calls atomic.Int32
	server := createGenAIServer(t, map[string]interface{}{"sql": "SELECT 1"}, &calls)
	handler := createTestHandler(t, nil, generation.NewHTTPGenerator(server.URL, 0))

	output, err := handler.Execute(context.Background(), &Input{
		ConversationID: "c-2",
		RawText:        "החלטות בין 01/01/2023 ל-31/12/2023",
		Intent:         "search",
	})

	require.NoError(t, err)
	assert.True(t, output.NeedsClarification)
	assert.Nil(t, output.AssembledQuery)
	assert.Zero(t, calls.Load())
}

func TestHandler_Execute_AssistedPath(t *testing.T) {
	var calls atomic.Int32
	server := createGenAIServer(t, map[string]interface{}{
		"sql":        "SELECT decision_number, decision_title FROM israeli_government_decisions WHERE government_number = @government_number AND decision_number = @decision_number LIMIT 1",
		"parameters": map[string]interface{}{"government_number": 37, "decision_number": 2989},
		"queryType":  "point_lookup",
		"confidence": 0.8,
	}, &calls)
	handler := createTestHandler(t, nil, generation.NewHTTPGenerator(server.URL, 0))

	output, err := handler.Execute(context.Background(), typoLookup())

	require.NoError(t, err)
	require.NotNil(t, output.AssembledQuery)
	assert.Equal(t, models.MethodAssisted, output.Method)
	assert.Equal(t, models.AssistedTemplateName, output.TemplateName)
	assert.True(t, output.Valid)
	assert.InDelta(t, 0.8, output.Confidence, 1e-9)
	assert.Equal(t, 2989, output.ParamMap()["decision_number"])
	assert.Equal(t, int32(1), calls.Load())
}

func TestHandler_Execute_AssistedFuzzyMatch(t *testing.T) {
	var calls atomic.Int32
	server := createGenAIServer(t, map[string]interface{}{
		"sql":        "SELECT * FROM israeli_government_decisions WHERE CAST(decision_number AS TEXT) LIKE '%2989%'",
		"confidence": 0.99,
	}, &calls)

	t.Run("completes with warnings", func(t *testing.T) {
		handler := createTestHandler(t, nil, generation.NewHTTPGenerator(server.URL, 0))

		output, err := handler.Execute(context.Background(), typoLookup())

		require.NoError(t, err)
		assert.False(t, output.Valid)
		assert.Equal(t, models.MethodAssisted, output.Method)
		assert.InDelta(t, 0.425, output.Confidence, 1e-9)
		assert.NotEmpty(t, output.Warnings)
	})

	t.Run("fails when configured", func(t *testing.T) {
		cfg := createTestConfig()
		cfg.FailOnInvalid = true
		handler := createTestHandler(t, cfg, generation.NewHTTPGenerator(server.URL, 0))

		output, err := handler.Execute(context.Background(), typoLookup())

		assert.ErrorIs(t, err, ErrInvalidQuery)
		require.NotNil(t, output)

		stdErr := handler.toStandardError(err, output)
		assert.Equal(t, "QUERY_VALIDATION_FAILED", string(stdErr.Code))
		assert.Equal(t, "assisted", stdErr.Metadata["method"])
	})
}

func TestHandler_Execute_GenerationOutageFallsBackToTemplate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()
	handler := createTestHandler(t, nil, generation.NewHTTPGenerator(server.URL, 0))

	output, err := handler.Execute(context.Background(), typoLookup())

	require.NoError(t, err)
	assert.Equal(t, models.MethodTemplate, output.Method)
	assert.Equal(t, catalog.DecisionByNumber, output.TemplateName)
	assert.True(t, output.Valid)
	require.NotEmpty(t, output.Warnings)
	assert.Contains(t, output.Warnings[0], "assisted:")
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	handler := createTestHandler(t, nil, nil)

	_, err := handler.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = handler.Execute(context.Background(), &Input{RawText: "x", Intent: "weather"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	stdErr := handler.toStandardError(err, nil)
	assert.Equal(t, "REQUEST_VALIDATION_FAILED", string(stdErr.Code))
}

func TestHandler_ToStandardError(t *testing.T) {
	handler := createTestHandler(t, nil, nil)

	tests := []struct {
		name string
		err  error
		code string
	}{
		{"generation timeout", fmt.Errorf("%w: generation service timed out: %w", ErrCompilationFailed, generation.ErrGenerationTimeout), "GENERATION_TIMEOUT"},
		{"generation failure", fmt.Errorf("%w: generation service failed: %w", ErrCompilationFailed, generation.ErrGenerationFailed), "GENERATION_FAILED"},
		{"malformed reply", fmt.Errorf("%w: x: %w", ErrCompilationFailed, generation.ErrMalformedResponse), "GENERATION_FAILED"},
		{"no collaborator fault", fmt.Errorf("%w: no template", ErrCompilationFailed), "COMPILATION_FAILED"},
		{"invalid query", fmt.Errorf("%w: schema", ErrInvalidQuery), "QUERY_VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, string(handler.toStandardError(tt.err, nil).Code))
		})
	}
}

func TestOutput_Variables(t *testing.T) {
	handler := createTestHandler(t, nil, nil)

	output, err := handler.Execute(context.Background(), &Input{
		RawText:  "כמה החלטות בנושא חינוך קיבלה ממשלה 37",
		Intent:   "count",
		Entities: map[string]interface{}{"topic": "חינוך", "governmentNumber": 37, "countOnly": true},
	})
	require.NoError(t, err)

	data, err := json.Marshal(output)
	require.NoError(t, err)

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &vars))
	for _, key := range []string{
		"sqlText", "parameters", "templateUsed", "queryType", "synonymExpansions",
		"dateInterpretations", "validationWarnings", "confidenceScore", "method", "resolution",
	} {
		assert.Contains(t, vars, key)
	}
	assert.Equal(t, catalog.CountByTopicAndGovernment, vars["templateUsed"])
	assert.Equal(t, "count", vars["queryType"])
}

func BenchmarkHandler_Execute(b *testing.B) {
	n := normalizer.MustDefault()
	r := resolver.New(resolver.DefaultConfig(), nil, n)
	o := orchestrator.New(orchestrator.DefaultConfig(), catalog.Default(), params.NewBuilder(params.DefaultConfig()), n, nil)
	handler := NewHandler(createTestConfig(), pipeline.New(n, r, o, nil, 20, logger.NewNoOpLogger()), logger.NewNoOpLogger())
	input := &Input{
		RawText:  "החלטה 2989 של ממשלה 37",
		Intent:   "specific_decision",
		Entities: map[string]interface{}{},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = handler.Execute(context.Background(), input)
	}
}
