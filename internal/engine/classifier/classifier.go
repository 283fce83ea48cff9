// Package classifier decides what shape of result a request asks for.
package classifier

import (
	"strings"

	"gov-decisions-workers/internal/models"
)

var (
	countCues = []string{
		"כמה החלטות", "כמה ", "מספר ההחלטות", "מספר החלטות", "סך ההחלטות", "כמות ההחלטות",
		"how many", "number of decisions", "count of", "total decisions",
	}
	comparisonCues = []string{
		"השווה", "השוו", "השוואה", "לעומת", "בהשוואה", "ההבדל בין",
		"compare", "comparison", " versus ", " vs ", " vs. ",
	}
	trendCues = []string{
		"מגמה", "מגמות", "לאורך השנים", "לאורך זמן", "שנה אחר שנה", "התפתחות",
		"trend", "over the years", "over time", "year by year",
	}
	analysisCues = []string{
		"ניתוח", "נתח", "התפלגות", "סטטיסטיקה", "סטטיסטיקות", "פילוח",
		"analysis", "analyze", "analyse", "distribution", "statistics",
	}
	breakdownCues = []string{
		"לפי משרד", "לפי משרדים", "פילוח לפי משרד", "איזה משרד", "אילו משרדים",
		"by ministry", "per ministry", "ministry breakdown",
	}
)

func containsAny(text string, cues []string) bool {
	lower := " " + strings.ToLower(text) + " "
	for _, c := range cues {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

func HasCountCue(text string) bool      { return containsAny(text, countCues) }
func HasComparisonCue(text string) bool { return containsAny(text, comparisonCues) }
func HasTrendCue(text string) bool      { return containsAny(text, trendCues) }
func HasAnalysisCue(text string) bool   { return containsAny(text, analysisCues) }
func HasBreakdownCue(text string) bool  { return containsAny(text, breakdownCues) }

// Classify returns the query type of a resolved request. Precedence is count,
// comparison, analysis intent, point lookup, trend or analysis wording, list.
func Classify(intent models.Intent, entities models.EntitySet, text string) models.QueryType {
	switch {
	case intent == models.IntentCount || entities.CountOnly:
		return models.QueryTypeCount
	case intent == models.IntentComparison || entities.Has(models.SlotComparisonTargets):
		return models.QueryTypeComparison
	case intent == models.IntentAnalysis || intent == models.IntentEvaluation:
		return models.QueryTypeAnalysis
	case entities.Has(models.SlotDecisionNumber):
		return models.QueryTypePointLookup
	case HasCountCue(text):
		return models.QueryTypeCount
	case HasComparisonCue(text):
		return models.QueryTypeComparison
	case HasTrendCue(text) || HasAnalysisCue(text) || HasBreakdownCue(text):
		return models.QueryTypeAnalysis
	default:
		return models.QueryTypeList
	}
}
