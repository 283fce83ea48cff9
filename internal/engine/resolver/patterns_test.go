package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/models"
)

func TestExtractor_Extract(t *testing.T) {
	x := NewExtractor(normalizer.MustDefault())

	tests := []struct {
		name  string
		text  string
		want  models.EntitySet
		slots []models.Slot
	}{
		{
			name:  "hebrew decision and government",
			text:  "מה קבעה החלטה מספר 2989 של ממשלה 37?",
			want:  models.EntitySet{DecisionNumber: 2989, GovernmentNumber: 37},
			slots: []models.Slot{models.SlotDecisionNumber, models.SlotGovernmentNumber},
		},
		{
			name:  "english forms",
			text:  "show decision #550 of government no. 36",
			want:  models.EntitySet{DecisionNumber: 550, GovernmentNumber: 36},
			slots: []models.Slot{models.SlotDecisionNumber, models.SlotGovernmentNumber},
		},
		{
			name:  "ordinal with hyphen",
			text:  "החלטות הממשלה ה-36",
			want:  models.EntitySet{GovernmentNumber: 36},
			slots: []models.Slot{models.SlotGovernmentNumber},
		},
		{
			name:  "number words",
			text:  "הממשלה השלושים ושבע",
			want:  models.EntitySet{GovernmentNumber: 37},
			slots: []models.Slot{models.SlotGovernmentNumber},
		},
		{
			name: "number word prefix of a longer word",
			text: "ממשלה שנים רבות",
			want: models.EntitySet{},
		},
		{
			name: "government out of range",
			text: "ממשלה 99",
			want: models.EntitySet{},
		},
		{
			name:  "explicit dates",
			text:  "from 2023-01-01 to 2023-06-30",
			want:  models.EntitySet{DateRange: &models.DateRange{Start: "2023-01-01", End: "2023-06-30"}},
			slots: []models.Slot{models.SlotDateRange},
		},
		{
			name:  "year range",
			text:  "החלטות בין השנים 2020 ל-2022",
			want:  models.EntitySet{DateRange: &models.DateRange{Start: "2020-01-01", End: "2022-12-31"}},
			slots: []models.Slot{models.SlotDateRange},
		},
		{
			name: "inverted dates rejected",
			text: "בין 31/12/2023 ל-01/01/2023",
			want: models.EntitySet{},
		},
		{
			name:  "plural governments",
			text:  "ממשלות 35 ו-36",
			want:  models.EntitySet{ComparisonTargets: []int{35, 36}},
			slots: []models.Slot{models.SlotComparisonTargets},
		},
		{
			name:  "two government mentions",
			text:  "השווה בין ממשלה 36 לממשלה 37",
			want:  models.EntitySet{GovernmentNumber: 36, ComparisonTargets: []int{36, 37}},
			slots: []models.Slot{models.SlotGovernmentNumber, models.SlotComparisonTargets},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, slots := x.Extract(tt.text)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.slots, slots)
		})
	}
}

func TestExtractor_FirstMatchPerSlotWins(t *testing.T) {
	x := NewExtractor(normalizer.MustDefault())
	got, _ := x.Extract("החלטה 100 ואחריה החלטה 200")
	assert.Equal(t, 100, got.DecisionNumber)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"abc", "", 3},
		{"Government", "government", 0},
		{"ממשלה", "ממשלת", 1},
		{"חינוך", "חנוך", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "%s/%s", tt.a, tt.b)
	}
}

func TestTextSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, textSimilarity("", ""))
	assert.Equal(t, 0.0, textSimilarity("abc", ""))
	assert.InDelta(t, 0.8, textSimilarity("ממשלה", "ממשלת"), 1e-9)
}

func TestClarificationPrompt(t *testing.T) {
	known := models.EntitySet{DecisionNumber: 276, Topic: "חינוך"}
	p := ClarificationPrompt(&known, []models.Slot{models.SlotGovernmentNumber, models.SlotComparisonTargets})

	assert.Contains(t, p, "מספר ההחלטה: 276")
	assert.Contains(t, p, "הנושא: חינוך")
	assert.Contains(t, p, "מספר הממשלה או שתי הממשלות להשוואה")

	bare := ClarificationPrompt(&models.EntitySet{}, []models.Slot{models.SlotDecisionNumber})
	assert.Equal(t, "כדי להמשיך, אנא ציין את מספר ההחלטה.", bare)
}

func TestEnrich(t *testing.T) {
	merged := models.EntitySet{GovernmentNumber: 37, DecisionNumber: 12}
	fromText := models.EntitySet{GovernmentNumber: 37}

	got := enrich("החלטות ממשלת 37", fromText, merged)
	assert.Equal(t, "החלטות ממשלת 37 החלטה 12", got)

	assert.Equal(t, "ממשלה 37 החלטה 12", enrich("ממשלה 37 החלטה 12", models.EntitySet{}, merged))
}
