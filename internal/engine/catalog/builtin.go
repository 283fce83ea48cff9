package catalog

import "gov-decisions-workers/internal/models"

// Template names referenced by the selector.
const (
	DecisionByNumber              = "decision_by_number"
	DecisionAnalysis              = "decision_analysis"
	CountByTopicAndYear           = "count_by_topic_and_year"
	CountByTopicAndDateRange      = "count_by_topic_and_date_range"
	CountByYear                   = "count_by_year"
	CountByTopicAndOperativity    = "count_by_topic_and_operativity"
	CountByTopicAndGovernment     = "count_by_topic_and_government"
	CountByGovernment             = "count_by_government"
	CountByTopic                  = "count_by_topic"
	DecisionsByDateRange          = "decisions_by_date_range"
	DecisionsByMinistry           = "decisions_by_ministry"
	DecisionsByMinistries         = "decisions_by_ministries"
	DecisionsByGovernmentAndTopic = "decisions_by_government_and_topic"
	TopicTrendByYear              = "topic_trend_by_year"
	GovernmentTopicAnalysis       = "government_topic_analysis"
	CompareGovernmentsAggregate   = "compare_governments_aggregate"
	CompareTwoGovernments         = "compare_two_governments"
	DecisionsByMinistryBreakdown  = "decisions_by_ministry_breakdown"
	DecisionsByYearAndTopic       = "decisions_by_year_and_topic"
	DecisionsByTopic              = "decisions_by_topic"
	RecentDecisions               = "recent_decisions"
)

const (
	topicCondition = "(tags_policy_area ILIKE @topic_pattern OR decision_title ILIKE @topic_pattern OR summary ILIKE @topic_pattern)"

	defaultListLimit     = 10
	defaultAnalysisLimit = 20
)

var (
	governmentFilter = DynamicFilter{
		Name:   "government_filter",
		Param:  "government_number",
		Clause: "AND government_number = @government_number",
	}
	topicFilter = DynamicFilter{
		Name:   "topic_filter",
		Param:  "topic_pattern",
		Clause: "AND " + topicCondition,
	}
	dateFilter = DynamicFilter{
		Name:   "date_filter",
		Param:  "start_date",
		Clause: "AND decision_date BETWEEN @start_date AND @end_date",
	}
)

var (
	searchOnly   = []models.Intent{models.IntentSearch}
	countOnly    = []models.Intent{models.IntentCount}
	lookup       = []models.Intent{models.IntentSpecificDecision, models.IntentSearch}
	deepDive     = []models.Intent{models.IntentAnalysis, models.IntentEvaluation}
	comparisons  = []models.Intent{models.IntentComparison, models.IntentSearch}
	analyticList = []models.Intent{models.IntentSearch, models.IntentAnalysis}
)

// Builtin returns the built-in templates in registration order.
func Builtin() []Template {
	return []Template{
		{
			Name:        DecisionByNumber,
			Description: "Single decision by government and decision number (exact match)",
			SQL: `SELECT ` + DetailColumns + `, decision_content
FROM israeli_government_decisions
WHERE government_number = @government_number AND decision_number = @decision_number
LIMIT 1`,
			Required:  []string{"government_number", "decision_number"},
			Intents:   lookup,
			QueryType: models.QueryTypePointLookup,
		},
		{
			Name:        DecisionAnalysis,
			Description: "Full record of one decision for analysis or evaluation",
			SQL: `SELECT ` + DetailColumns + `, decision_content
FROM israeli_government_decisions
WHERE government_number = @government_number AND decision_number = @decision_number
LIMIT 1`,
			Required:  []string{"government_number", "decision_number"},
			Intents:   deepDive,
			QueryType: models.QueryTypeAnalysis,
		},
		{
			Name:        CountByTopicAndYear,
			Description: "Number of decisions on a topic in a calendar year",
			SQL: `SELECT COUNT(*) AS count
FROM israeli_government_decisions
WHERE ` + topicCondition + `
AND EXTRACT(YEAR FROM decision_date) = @year {{government_filter}}`,
			Required:       []string{"topic_pattern", "year"},
			Optional:       map[string]interface{}{"government_number": nil},
			Intents:        countOnly,
			QueryType:      models.QueryTypeCount,
			DynamicFilters: []DynamicFilter{governmentFilter},
		},
		{
			Name:        CountByTopicAndDateRange,
			Description: "Number of decisions on a topic between two dates",
			SQL: `SELECT COUNT(*) AS count
FROM israeli_government_decisions
WHERE ` + topicCondition + `
AND decision_date BETWEEN @start_date AND @end_date {{government_filter}}`,
			Required:       []string{"topic_pattern", "start_date", "end_date"},
			Optional:       map[string]interface{}{"government_number": nil},
			Intents:        countOnly,
			QueryType:      models.QueryTypeCount,
			DynamicFilters: []DynamicFilter{governmentFilter},
		},
		{
			Name:        CountByYear,
			Description: "Number of decisions in a calendar year",
			SQL: `SELECT COUNT(*) AS count
FROM israeli_government_decisions
WHERE EXTRACT(YEAR FROM decision_date) = @year {{government_filter}}`,
			Required:       []string{"year"},
			Optional:       map[string]interface{}{"government_number": nil},
			Intents:        countOnly,
			QueryType:      models.QueryTypeCount,
			DynamicFilters: []DynamicFilter{governmentFilter},
		},
		{
			Name:        CountByTopicAndOperativity,
			Description: "Number of operative or declarative decisions on a topic",
			SQL: `SELECT COUNT(*) AS count
FROM israeli_government_decisions
WHERE ` + topicCondition + `
AND operativity = @operativity {{government_filter}}`,
			Required:       []string{"topic_pattern", "operativity"},
			Optional:       map[string]interface{}{"government_number": nil},
			Intents:        countOnly,
			QueryType:      models.QueryTypeCount,
			DynamicFilters: []DynamicFilter{governmentFilter},
		},
		{
			Name:        CountByTopicAndGovernment,
			Description: "Number of decisions on a topic made by one government",
			SQL: `SELECT COUNT(*) AS count
FROM israeli_government_decisions
WHERE government_number = @government_number
AND ` + topicCondition,
			Required:  []string{"government_number", "topic_pattern"},
			Intents:   countOnly,
			QueryType: models.QueryTypeCount,
		},
		{
			Name:        CountByGovernment,
			Description: "Number of decisions made by one government",
			SQL: `SELECT COUNT(*) AS count
FROM israeli_government_decisions
WHERE government_number = @government_number`,
			Required:  []string{"government_number"},
			Intents:   countOnly,
			QueryType: models.QueryTypeCount,
		},
		{
			Name:        CountByTopic,
			Description: "Number of decisions on a topic",
			SQL: `SELECT COUNT(*) AS count
FROM israeli_government_decisions
WHERE ` + topicCondition,
			Required:  []string{"topic_pattern"},
			Intents:   countOnly,
			QueryType: models.QueryTypeCount,
		},
		{
			Name:        DecisionsByDateRange,
			Description: "Decisions made between two dates",
			SQL: `SELECT ` + DetailColumns + `
FROM israeli_government_decisions
WHERE decision_date BETWEEN @start_date AND @end_date {{government_filter}} {{topic_filter}}
ORDER BY decision_date DESC
LIMIT @limit`,
			Required: []string{"start_date", "end_date"},
			Optional: map[string]interface{}{
				"government_number": nil,
				"topic_pattern":     nil,
				"limit":             defaultListLimit,
			},
			Intents:        searchOnly,
			QueryType:      models.QueryTypeList,
			DynamicFilters: []DynamicFilter{governmentFilter, topicFilter},
		},
		{
			Name:        DecisionsByMinistry,
			Description: "Decisions involving one ministry",
			SQL: `SELECT ` + DetailColumns + `
FROM israeli_government_decisions
WHERE tags_government_body ILIKE @ministry_pattern {{government_filter}} {{topic_filter}}
ORDER BY decision_date DESC
LIMIT @limit`,
			Required: []string{"ministry_pattern"},
			Optional: map[string]interface{}{
				"government_number": nil,
				"topic_pattern":     nil,
				"limit":             defaultListLimit,
			},
			Intents:        searchOnly,
			QueryType:      models.QueryTypeList,
			DynamicFilters: []DynamicFilter{governmentFilter, topicFilter},
		},
		{
			Name:        DecisionsByMinistries,
			Description: "Decisions involving any of several ministries",
			SQL: `SELECT ` + DetailColumns + `
FROM israeli_government_decisions
WHERE tags_government_body ILIKE ANY (@ministry_patterns) {{government_filter}} {{topic_filter}}
ORDER BY decision_date DESC
LIMIT @limit`,
			Required: []string{"ministry_patterns"},
			Optional: map[string]interface{}{
				"government_number": nil,
				"topic_pattern":     nil,
				"limit":             defaultListLimit,
			},
			Intents:        searchOnly,
			QueryType:      models.QueryTypeList,
			DynamicFilters: []DynamicFilter{governmentFilter, topicFilter},
		},
		{
			Name:        DecisionsByGovernmentAndTopic,
			Description: "Decisions of one government on a topic",
			SQL: `SELECT ` + DetailColumns + `
FROM israeli_government_decisions
WHERE government_number = @government_number
AND ` + topicCondition + `
ORDER BY decision_date DESC
LIMIT @limit`,
			Required:  []string{"government_number", "topic_pattern"},
			Optional:  map[string]interface{}{"limit": defaultListLimit},
			Intents:   searchOnly,
			QueryType: models.QueryTypeList,
		},
		{
			Name:        TopicTrendByYear,
			Description: "Decisions per year on a topic",
			SQL: `SELECT EXTRACT(YEAR FROM decision_date) AS year, COUNT(*) AS decisions
FROM israeli_government_decisions
WHERE ` + topicCondition + ` {{government_filter}}
GROUP BY EXTRACT(YEAR FROM decision_date)
ORDER BY year`,
			Required:       []string{"topic_pattern"},
			Optional:       map[string]interface{}{"government_number": nil},
			Intents:        analyticList,
			QueryType:      models.QueryTypeAnalysis,
			DynamicFilters: []DynamicFilter{governmentFilter},
		},
		{
			Name:        GovernmentTopicAnalysis,
			Description: "Policy areas of one government ranked by number of decisions",
			SQL: `SELECT tags_policy_area, COUNT(*) AS decisions
FROM israeli_government_decisions
WHERE government_number = @government_number
GROUP BY tags_policy_area
ORDER BY decisions DESC
LIMIT @limit`,
			Required:  []string{"government_number"},
			Optional:  map[string]interface{}{"limit": defaultAnalysisLimit},
			Intents:   analyticList,
			QueryType: models.QueryTypeAnalysis,
		},
		{
			Name:        CompareGovernmentsAggregate,
			Description: "Decisions per government, optionally on a topic",
			SQL: `SELECT government_number, COUNT(*) AS decisions, MIN(decision_date) AS first_decision, MAX(decision_date) AS last_decision
FROM israeli_government_decisions
WHERE decision_date IS NOT NULL {{topic_filter}}
GROUP BY government_number
ORDER BY government_number DESC
LIMIT @limit`,
			Optional: map[string]interface{}{
				"topic_pattern": nil,
				"limit":         defaultAnalysisLimit,
			},
			Intents:        comparisons,
			QueryType:      models.QueryTypeComparison,
			DynamicFilters: []DynamicFilter{topicFilter},
		},
		{
			Name:        CompareTwoGovernments,
			Description: "Side-by-side decision counts of two governments",
			SQL: `SELECT government_number, COUNT(*) AS decisions, MIN(decision_date) AS first_decision, MAX(decision_date) AS last_decision
FROM israeli_government_decisions
WHERE government_number IN (@government_a, @government_b) {{topic_filter}}
GROUP BY government_number
ORDER BY government_number`,
			Required:       []string{"government_a", "government_b"},
			Optional:       map[string]interface{}{"topic_pattern": nil},
			Intents:        comparisons,
			QueryType:      models.QueryTypeComparison,
			DynamicFilters: []DynamicFilter{topicFilter},
		},
		{
			Name:        DecisionsByMinistryBreakdown,
			Description: "Decisions per responsible ministry",
			SQL: `SELECT tags_government_body, COUNT(*) AS decisions
FROM israeli_government_decisions
WHERE decision_date IS NOT NULL {{government_filter}} {{topic_filter}} {{date_filter}}
GROUP BY tags_government_body
ORDER BY decisions DESC
LIMIT @limit`,
			Optional: map[string]interface{}{
				"government_number": nil,
				"topic_pattern":     nil,
				"start_date":        nil,
				"end_date":          nil,
				"limit":             defaultAnalysisLimit,
			},
			Intents:        analyticList,
			QueryType:      models.QueryTypeAnalysis,
			DynamicFilters: []DynamicFilter{governmentFilter, topicFilter, dateFilter},
		},
		{
			Name:        DecisionsByYearAndTopic,
			Description: "Decisions on a topic in a calendar year",
			SQL: `SELECT ` + DetailColumns + `
FROM israeli_government_decisions
WHERE EXTRACT(YEAR FROM decision_date) = @year
AND ` + topicCondition + ` {{government_filter}}
ORDER BY decision_date DESC
LIMIT @limit`,
			Required: []string{"year", "topic_pattern"},
			Optional: map[string]interface{}{
				"government_number": nil,
				"limit":             defaultListLimit,
			},
			Intents:        searchOnly,
			QueryType:      models.QueryTypeList,
			DynamicFilters: []DynamicFilter{governmentFilter},
		},
		{
			Name:        DecisionsByTopic,
			Description: "Decisions on a topic",
			SQL: `SELECT ` + DetailColumns + `
FROM israeli_government_decisions
WHERE ` + topicCondition + `
ORDER BY decision_date DESC
LIMIT @limit`,
			Required:  []string{"topic_pattern"},
			Optional:  map[string]interface{}{"limit": defaultListLimit},
			Intents:   searchOnly,
			QueryType: models.QueryTypeList,
		},
		{
			Name:        RecentDecisions,
			Description: "Most recent decisions, optionally of one government",
			SQL: `SELECT ` + DetailColumns + `
FROM israeli_government_decisions
WHERE decision_date IS NOT NULL {{government_filter}}
ORDER BY decision_date DESC
LIMIT @limit`,
			Optional: map[string]interface{}{
				"government_number": nil,
				"limit":             defaultListLimit,
			},
			Intents: []models.Intent{
				models.IntentSearch, models.IntentCount, models.IntentSpecificDecision,
				models.IntentAnalysis, models.IntentEvaluation,
			},
			QueryType:      models.QueryTypeList,
			DynamicFilters: []DynamicFilter{governmentFilter},
		},
	}
}
