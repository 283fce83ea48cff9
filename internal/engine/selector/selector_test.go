package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gov-decisions-workers/internal/engine/catalog"
	"gov-decisions-workers/internal/models"
)

func createTestSelector() *Selector {
	return New(catalog.Default(), 0)
}

func TestSelect_Branches(t *testing.T) {
	dr := &models.DateRange{Start: "2023-01-01", End: "2023-12-31"}

	tests := []struct {
		name     string
		intent   models.Intent
		entities models.EntitySet
		text     string
		want     string
	}{
		// analysis / evaluation
		{"analysis with decision", models.IntentAnalysis, models.EntitySet{DecisionNumber: 276}, "", catalog.DecisionAnalysis},
		{"evaluation without decision", models.IntentEvaluation, models.EntitySet{}, "", catalog.RecentDecisions},

		// specific decision
		{"specific decision", models.IntentSpecificDecision, models.EntitySet{DecisionNumber: 2989}, "", catalog.DecisionByNumber},

		// count tree, in priority order
		{"count topic+year", models.IntentCount, models.EntitySet{Topic: "חינוך", Year: 2023, DateRange: dr}, "", catalog.CountByTopicAndYear},
		{"count topic+range", models.IntentCount, models.EntitySet{Topic: "חינוך", DateRange: dr, GovernmentNumber: 37}, "", catalog.CountByTopicAndDateRange},
		{"count year only", models.IntentCount, models.EntitySet{Year: 2020, GovernmentNumber: 35}, "", catalog.CountByYear},
		{"count topic+operativity", models.IntentCount, models.EntitySet{Topic: "חינוך", Operativity: "אופרטיבית", GovernmentNumber: 37}, "", catalog.CountByTopicAndOperativity},
		{"count topic+government", models.IntentCount, models.EntitySet{Topic: "חינוך", GovernmentNumber: 37}, "", catalog.CountByTopicAndGovernment},
		{"count government", models.IntentCount, models.EntitySet{GovernmentNumber: 37}, "", catalog.CountByGovernment},
		{"count topic", models.IntentCount, models.EntitySet{Topic: "חינוך"}, "", catalog.CountByTopic},
		{"count nothing", models.IntentCount, models.EntitySet{}, "", catalog.RecentDecisions},
		{"search with count flag", models.IntentSearch, models.EntitySet{Topic: "חינוך", GovernmentNumber: 37, CountOnly: true}, "", catalog.CountByTopicAndGovernment},

		// search tree, in priority order
		{"search decision wins", models.IntentSearch, models.EntitySet{DecisionNumber: 1, DateRange: dr, Ministries: []string{"a"}}, "", catalog.DecisionByNumber},
		{"search date range", models.IntentSearch, models.EntitySet{DateRange: dr, Ministries: []string{"a"}}, "", catalog.DecisionsByDateRange},
		{"search one ministry", models.IntentSearch, models.EntitySet{Ministries: []string{"משרד החינוך"}, GovernmentNumber: 37, Topic: "x"}, "", catalog.DecisionsByMinistry},
		{"search ministries", models.IntentSearch, models.EntitySet{Ministries: []string{"a", "b"}}, "", catalog.DecisionsByMinistries},
		{"search government+topic", models.IntentSearch, models.EntitySet{GovernmentNumber: 37, Topic: "חינוך"}, "מגמות", catalog.DecisionsByGovernmentAndTopic},
		{"search trend", models.IntentSearch, models.EntitySet{Topic: "חינוך"}, "מגמות בחינוך לאורך השנים", catalog.TopicTrendByYear},
		{"search government analysis", models.IntentSearch, models.EntitySet{GovernmentNumber: 36}, "ניתוח החלטות ממשלה 36", catalog.GovernmentTopicAnalysis},
		{"search comparison wording", models.IntentSearch, models.EntitySet{}, "השוואה בין הממשלות", catalog.CompareGovernmentsAggregate},
		{"search breakdown", models.IntentSearch, models.EntitySet{}, "החלטות לפי משרד", catalog.DecisionsByMinistryBreakdown},
		{"search year+topic", models.IntentSearch, models.EntitySet{Topic: "חינוך", Year: 2022}, "", catalog.DecisionsByYearAndTopic},
		{"search topic", models.IntentSearch, models.EntitySet{Topic: "חינוך"}, "", catalog.DecisionsByTopic},
		{"search fallback", models.IntentSearch, models.EntitySet{GovernmentNumber: 37}, "", catalog.RecentDecisions},

		// comparison
		{"comparison explicit", models.IntentComparison, models.EntitySet{ComparisonTargets: []int{36, 37}}, "", catalog.CompareTwoGovernments},
		{"comparison aggregate", models.IntentComparison, models.EntitySet{Topic: "חינוך"}, "", catalog.CompareGovernmentsAggregate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.entities.Clone()
			got, ok := createTestSelector().Select(tt.intent, &e, tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestSelect_ScenarioCountByTopicAndGovernment(t *testing.T) {
	e := models.EntitySet{GovernmentNumber: 37, Topic: "חינוך", CountOnly: true}
	got, ok := createTestSelector().Select(models.IntentSearch, &e, "")
	require.True(t, ok)
	assert.Equal(t, catalog.CountByTopicAndGovernment, got.Name)
	assert.Equal(t, models.QueryTypeCount, got.QueryType)
}

func TestSelect_DecisionDefaultsGovernment(t *testing.T) {
	e := models.EntitySet{DecisionNumber: 2989}
	got, ok := New(catalog.Default(), 37).Select(models.IntentSpecificDecision, &e, "")
	require.True(t, ok)
	assert.Equal(t, catalog.DecisionByNumber, got.Name)
	assert.Equal(t, 37, e.GovernmentNumber)

	e = models.EntitySet{DecisionNumber: 276, GovernmentNumber: 36}
	_, _ = New(catalog.Default(), 37).Select(models.IntentSearch, &e, "")
	assert.Equal(t, 36, e.GovernmentNumber)
}

func TestSelect_DerivesYearFromTopic(t *testing.T) {
	e := models.EntitySet{Topic: "חינוך 2021", CountOnly: true}
	got, _ := createTestSelector().Select(models.IntentCount, &e, "")
	assert.Equal(t, 2021, e.Year)
	assert.Equal(t, catalog.CountByTopicAndYear, got.Name)
}

func TestSelect_ComparisonExtractsGovernmentsFromText(t *testing.T) {
	e := models.EntitySet{}
	got, ok := createTestSelector().Select(models.IntentComparison, &e, "השווה בין ממשלה 36 לממשלה 37 בנושא חינוך")
	require.True(t, ok)
	assert.Equal(t, catalog.CompareTwoGovernments, got.Name)
	assert.Equal(t, []int{36, 37}, e.ComparisonTargets)
}

func TestSelect_ComparisonMissesWithoutComparisonTemplates(t *testing.T) {
	recent, _ := catalog.Default().Get(catalog.RecentDecisions)
	small, err := catalog.New(recent)
	require.NoError(t, err)

	e := models.EntitySet{ComparisonTargets: []int{36, 37}}
	_, ok := New(small, 0).Select(models.IntentComparison, &e, "")
	assert.False(t, ok)

	e = models.EntitySet{Topic: "חינוך"}
	got, ok := New(small, 0).Select(models.IntentSearch, &e, "")
	require.True(t, ok)
	assert.Equal(t, catalog.RecentDecisions, got.Name)
}

func TestSelect_Deterministic(t *testing.T) {
	s := createTestSelector()
	inputs := []models.EntitySet{
		{Topic: "חינוך", GovernmentNumber: 37},
		{DecisionNumber: 10},
		{Ministries: []string{"a", "b"}, Topic: "x"},
		{},
	}
	for _, in := range inputs {
		for _, intent := range models.AllIntents() {
			a, b := in.Clone(), in.Clone()
			first, ok1 := s.Select(intent, &a, "השוואה בין ממשלה 35 לממשלה 36")
			second, ok2 := s.Select(intent, &b, "השוואה בין ממשלה 35 לממשלה 36")
			assert.Equal(t, ok1, ok2)
			assert.Equal(t, first.Name, second.Name)
			assert.Equal(t, a, b)
		}
	}
}

func BenchmarkSelect(b *testing.B) {
	s := createTestSelector()
	base := models.EntitySet{Topic: "חינוך", GovernmentNumber: 37, CountOnly: true}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e := base
		s.Select(models.IntentSearch, &e, "כמה החלטות")
	}
}
