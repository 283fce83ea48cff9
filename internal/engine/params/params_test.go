package params

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gov-decisions-workers/internal/engine/catalog"
	"gov-decisions-workers/internal/models"
)

func mustTemplate(t *testing.T, name string) catalog.Template {
	t.Helper()
	tpl, ok := catalog.Default().Get(name)
	require.True(t, ok, name)
	return tpl
}

// ==========================
// Build
// ==========================

func TestBuild_AliasTable(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	tests := []struct {
		name     string
		template string
		entities models.EntitySet
		want     map[string]interface{}
	}{
		{
			name:     "count by topic and government",
			template: catalog.CountByTopicAndGovernment,
			entities: models.EntitySet{GovernmentNumber: 37, Topic: "חינוך"},
			want:     map[string]interface{}{"government_number": 37, "topic_pattern": "%חינוך%"},
		},
		{
			name:     "date range sources start and end",
			template: catalog.DecisionsByDateRange,
			entities: models.EntitySet{DateRange: &models.DateRange{Start: "2023-01-01", End: "2023-12-31"}},
			want: map[string]interface{}{
				"start_date": "2023-01-01",
				"end_date":   "2023-12-31",
				"limit":      10,
			},
		},
		{
			name:     "comparison targets",
			template: catalog.CompareTwoGovernments,
			entities: models.EntitySet{ComparisonTargets: []int{36, 37}},
			want:     map[string]interface{}{"government_a": 36, "government_b": 37},
		},
		{
			name:     "optional nil default omitted",
			template: catalog.CountByYear,
			entities: models.EntitySet{Year: 2022},
			want:     map[string]interface{}{"year": 2022},
		},
		{
			name:     "ministry patterns",
			template: catalog.DecisionsByMinistries,
			entities: models.EntitySet{Ministries: []string{"משרד החינוך", "משרד הבריאות"}},
			want: map[string]interface{}{
				"ministry_patterns": []string{"%משרד החינוך%", "%משרד הבריאות%"},
				"limit":             10,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Build(mustTemplate(t, tt.template), tt.entities)
			require.NoError(t, err)
			for k, v := range tt.want {
				assert.Equal(t, v, got[k], k)
			}
			for k := range got {
				_, expected := tt.want[k]
				assert.True(t, expected, "unexpected parameter %s", k)
			}
		})
	}
}

func TestBuild_UserWildcardsMatchLiterally(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	tests := []struct {
		name     string
		template string
		entities models.EntitySet
		param    string
		want     interface{}
	}{
		{"bare percent topic", catalog.CountByTopicAndGovernment, models.EntitySet{GovernmentNumber: 37, Topic: "%"}, "topic_pattern", `%\%%`},
		{"underscore topic", catalog.CountByTopicAndGovernment, models.EntitySet{GovernmentNumber: 37, Topic: "a_b"}, "topic_pattern", `%a\_b%`},
		{"backslash dropped", catalog.CountByTopicAndGovernment, models.EntitySet{GovernmentNumber: 37, Topic: `\%`}, "topic_pattern", `%\%%`},
		{"ministry list", catalog.DecisionsByMinistries, models.EntitySet{Ministries: []string{"%", "משרד_החינוך"}}, "ministry_patterns", []string{`%\%%`, `%משרד\_החינוך%`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Build(mustTemplate(t, tt.template), tt.entities)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got[tt.param])
		})
	}
}

func TestSanitize_PatternEscapesSurvive(t *testing.T) {
	b := NewBuilder(Config{MaxStringLength: 6, MaxListLength: 3})

	got, err := b.Sanitize(map[string]interface{}{
		"topic_pattern":     `%a\%b%`,
		"ministry_patterns": []interface{}{`%ab\x%`, `%abcd\%`},
	})
	require.NoError(t, err)
	assert.Equal(t, `%a\%b%`, got["topic_pattern"])
	assert.Equal(t, []string{`%abx%`, `%abcd`}, got["ministry_patterns"])

	again, err := b.Sanitize(got)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestBuild_MissingRequired(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	_, err := b.Build(mustTemplate(t, catalog.CountByTopicAndGovernment), models.EntitySet{GovernmentNumber: 37})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingParam))

	var missing *MissingParameterError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"topic_pattern"}, missing.Missing)
	assert.Equal(t, catalog.CountByTopicAndGovernment, missing.Template)
}

func TestBuild_ClampsOutOfRange(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	got, err := b.Build(mustTemplate(t, catalog.DecisionByNumber), models.EntitySet{GovernmentNumber: 99, DecisionNumber: 123456})
	require.NoError(t, err)
	assert.Equal(t, 50, got["government_number"])
	assert.Equal(t, 9999, got["decision_number"])
}

// ==========================
// Sanitize
// ==========================

func TestSanitize(t *testing.T) {
	b := NewBuilder(Config{MaxStringLength: 10, MaxListLength: 2})

	got, err := b.Sanitize(map[string]interface{}{
		"topic":             `חינוך'; DROP TABLE x; --\`,
		"government_number": 0,
		"limit":             5000,
		"year":              1900,
		"ministries":        []string{"a;", "b'", "c"},
		"decision_number":   float64(2989),
		"start_date":        "01/02/2023",
		"government_a":      "שלושים ושש",
	})
	require.NoError(t, err)

	assert.Equal(t, "חינוך DROP", got["topic"])
	assert.Equal(t, 1, got["government_number"])
	assert.Equal(t, 1000, got["limit"])
	assert.Equal(t, 1948, got["year"])
	assert.Equal(t, []string{"a", "b"}, got["ministries"])
	assert.Equal(t, 2989, got["decision_number"])
	assert.Equal(t, "2023-02-01", got["start_date"])
	assert.Equal(t, 36, got["government_a"])
}

func TestSanitize_InvalidValues(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	tests := map[string]map[string]interface{}{
		"bad date":         {"start_date": "yesterday-ish"},
		"fractional":       {"limit": 2.5},
		"non-numeric":      {"government_number": "abc"},
		"mixed list":       {"ministries": []interface{}{"a", 1.0}},
		"unsupported type": {"topic": struct{}{}},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := b.Sanitize(in)
			assert.True(t, errors.Is(err, ErrInvalidParam))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	b := NewBuilder(Config{MaxStringLength: 12, MaxListLength: 3})

	inputs := []map[string]interface{}{
		{"topic_pattern": likePattern("בריאות ורווחה חברתית", 12), "government_number": 77},
		{"ministry_patterns": []interface{}{"%משרד;%", "%x%", "%y%", "%z%"}, "limit": -4},
		{"start_date": "2.1.2020", "end_date": "2020-12-31", "year": 3000},
		{"government_a": 36.0, "government_b": "37", "topic": `  "quoted"  `},
		{"ids": []int{1, 2, 3, 4, 5}},
	}

	for i, in := range inputs {
		once, err := b.Sanitize(in)
		require.NoError(t, err, i)
		twice, err := b.Sanitize(once)
		require.NoError(t, err, i)
		assert.Equal(t, once, twice, i)
	}
}

func TestLikePattern_TruncationKeepsEscapesWhole(t *testing.T) {
	p := likePattern("ab%", 5)
	assert.Equal(t, "%ab%", p)
	assert.Equal(t, `%ab\%%`, likePattern("ab%", 6))
}

func TestLikePattern_FitsMaxLength(t *testing.T) {
	p := likePattern(strings.Repeat("א", 300), 200)
	assert.Len(t, []rune(p), 200)
	assert.True(t, strings.HasPrefix(p, "%"))
	assert.True(t, strings.HasSuffix(p, "%"))
}

// ==========================
// Typed / CheckProvided
// ==========================

func TestTyped(t *testing.T) {
	sql := "SELECT * FROM t WHERE government_number = @government_number AND date >= @start_date AND tags ILIKE ANY(@ministry_patterns) LIMIT @limit"
	got := Typed(sql, map[string]interface{}{
		"limit":             10,
		"start_date":        "2023-01-01",
		"government_number": 37,
		"ministry_patterns": []string{"%a%"},
		"extra":             "x",
	})

	require.Len(t, got, 5)
	assert.Equal(t, models.Parameter{Name: "government_number", Value: 37, Type: models.ParamTypeInteger}, got[0])
	assert.Equal(t, models.ParamTypeDate, got[1].Type)
	assert.Equal(t, models.ParamTypeStringArray, got[2].Type)
	assert.Equal(t, "limit", got[3].Name)
	assert.Equal(t, "extra", got[4].Name)
}

func TestCheckProvided(t *testing.T) {
	sql := "SELECT 1 WHERE a = @a AND b = @b"
	assert.Empty(t, CheckProvided(sql, map[string]interface{}{"a": 1, "b": 2}))
	assert.Equal(t, []string{"b"}, CheckProvided(sql, map[string]interface{}{"a": 1, "b": nil}))
}
