package selecttemplate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gov-decisions-workers/internal/common/logger"
	"gov-decisions-workers/internal/engine/catalog"
	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/engine/params"
	"gov-decisions-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T, cat *catalog.Catalog) *Handler {
	t.Helper()
	if cat == nil {
		cat = catalog.Default()
	}
	config := &Config{DefaultGovernment: 37, Timeout: 5 * time.Second}
	return NewHandler(config, cat, normalizer.MustDefault(), params.NewBuilder(params.DefaultConfig()), logger.NewTestLogger(t))
}

// catalogWithout returns the builtin catalog minus the named templates.
func catalogWithout(t *testing.T, names ...string) *catalog.Catalog {
	t.Helper()
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	var keep []catalog.Template
	for _, tpl := range catalog.Builtin() {
		if !skip[tpl.Name] {
			keep = append(keep, tpl)
		}
	}
	cat, err := catalog.New(keep...)
	require.NoError(t, err)
	return cat
}

func paramValue(out *Output, name string) interface{} {
	for _, p := range out.Parameters {
		if p.Name == name {
			return p.Value
		}
	}
	return nil
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Selection(t *testing.T) {
	tests := []struct {
		name         string
		input        *Input
		wantTemplate string
		wantType     models.QueryType
	}{
		{
			name: "decision lookup",
			input: &Input{
				Intent:   "specific_decision",
				Entities: map[string]interface{}{"decisionNumber": 2989, "governmentNumber": 37},
			},
			wantTemplate: catalog.DecisionByNumber,
			wantType:     models.QueryTypePointLookup,
		},
		{
			name: "count by topic",
			input: &Input{
				Intent:   "count",
				Entities: map[string]interface{}{"topic": "חינוך"},
			},
			wantTemplate: catalog.CountByTopic,
			wantType:     models.QueryTypeCount,
		},
		{
			name: "count by topic and government",
			input: &Input{
				Intent:   "count",
				Entities: map[string]interface{}{"topic": "חינוך", "governmentNumber": 37},
			},
			wantTemplate: catalog.CountByTopicAndGovernment,
			wantType:     models.QueryTypeCount,
		},
		{
			name:         "search without entities",
			input:        &Input{Intent: "search", Entities: map[string]interface{}{}},
			wantTemplate: catalog.RecentDecisions,
			wantType:     models.QueryTypeList,
		},
	}

	handler := createTestHandler(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := handler.Execute(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTemplate, output.TemplateName)
			assert.Equal(t, tt.wantType, output.QueryType)
			assert.NotEmpty(t, output.SQL)
			assert.Empty(t, params.CheckProvided(output.SQL, toMap(output.Parameters)))
		})
	}
}

func toMap(ps []models.Parameter) map[string]interface{} {
	out := make(map[string]interface{}, len(ps))
	for _, p := range ps {
		out[p.Name] = p.Value
	}
	return out
}

func TestHandler_Execute_DefaultGovernment(t *testing.T) {
	handler := createTestHandler(t, nil)

	output, err := handler.Execute(context.Background(), &Input{
		Intent:   "specific_decision",
		Entities: map[string]interface{}{"decisionNumber": "2989"},
	})

	require.NoError(t, err)
	assert.Equal(t, catalog.DecisionByNumber, output.TemplateName)
	assert.Equal(t, 37, output.Entities.GovernmentNumber)
	assert.EqualValues(t, 37, paramValue(output, "government_number"))
	assert.EqualValues(t, 2989, paramValue(output, "decision_number"))
}

func TestHandler_Execute_TopicPattern(t *testing.T) {
	handler := createTestHandler(t, nil)

	output, err := handler.Execute(context.Background(), &Input{
		Intent:   "count",
		Entities: map[string]interface{}{"topic": "חינוך"},
	})

	require.NoError(t, err)
	assert.Equal(t, "%חינוך%", paramValue(output, "topic_pattern"))
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_ErrorCases(t *testing.T) {
	tests := []struct {
		name    string
		handler func(t *testing.T) *Handler
		input   *Input
		wantErr error
	}{
		{
			name:    "nil input",
			handler: func(t *testing.T) *Handler { return createTestHandler(t, nil) },
			input:   nil,
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unknown intent",
			handler: func(t *testing.T) *Handler { return createTestHandler(t, nil) },
			input:   &Input{Intent: "weather"},
			wantErr: ErrInvalidInput,
		},
		{
			name: "comparison without comparison templates",
			handler: func(t *testing.T) *Handler {
				return createTestHandler(t, catalogWithout(t, catalog.CompareTwoGovernments, catalog.CompareGovernmentsAggregate))
			},
			input:   &Input{Intent: "comparison", Text: "השווה בין ממשלה 36 לממשלה 37"},
			wantErr: ErrTemplateNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := tt.handler(t).Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Nil(t, output)
		})
	}
}

func TestHandler_Execute_CancelledContext(t *testing.T) {
	handler := createTestHandler(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := handler.Execute(ctx, &Input{Intent: "count"})
	assert.ErrorIs(t, err, context.Canceled)
}
