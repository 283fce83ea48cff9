package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		in      string
		want    Intent
		wantErr bool
	}{
		{"search", IntentSearch, false},
		{"", IntentSearch, false},
		{"COUNT", IntentCount, false},
		{"specific-decision", IntentSpecificDecision, false},
		{"compare", IntentComparison, false},
		{"evaluate", IntentEvaluation, false},
		{"weather", IntentSearch, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIntent(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntent_TextRoundTripInJSON(t *testing.T) {
	var v struct {
		Intent Intent `json:"intent"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"intent":"analysis"}`), &v))
	assert.Equal(t, IntentAnalysis, v.Intent)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"intent":"analysis"}`, string(out))
}

func TestEntitySet_Overlay(t *testing.T) {
	base := EntitySet{GovernmentNumber: 36, Topic: "חינוך", Ministries: []string{"משרד החינוך"}}
	over := EntitySet{GovernmentNumber: 37, DecisionNumber: 276}

	got := base.Overlay(over)
	assert.Equal(t, 37, got.GovernmentNumber)
	assert.Equal(t, 276, got.DecisionNumber)
	assert.Equal(t, "חינוך", got.Topic)

	got.Ministries[0] = "changed"
	assert.Equal(t, "משרד החינוך", base.Ministries[0])
}

func TestEntitySet_HasAndDimensions(t *testing.T) {
	e := EntitySet{
		GovernmentNumber:  37,
		Topic:             "  ",
		DateRange:         &DateRange{Start: "2023-01-01"},
		ComparisonTargets: []int{36},
		Year:              2023,
	}
	assert.True(t, e.Has(SlotGovernmentNumber))
	assert.False(t, e.Has(SlotTopic))
	assert.False(t, e.Has(SlotDateRange))
	assert.False(t, e.Has(SlotComparisonTargets))
	assert.Equal(t, 2, e.FilterDimensions())
	assert.Equal(t, []Slot{SlotGovernmentNumber, SlotYear}, e.Present())
}

func TestEntitySet_Copy(t *testing.T) {
	var dst EntitySet
	src := EntitySet{DateRange: &DateRange{Start: "2024-01-01", End: "2024-12-31"}}
	dst.Copy(SlotDateRange, src)
	dst.Copy(SlotGovernmentNumber, src)

	require.NotNil(t, dst.DateRange)
	assert.NotSame(t, src.DateRange, dst.DateRange)
	assert.Zero(t, dst.GovernmentNumber)
	assert.Equal(t, "2024-01-01 - 2024-12-31", dst.Display(SlotDateRange))
}
