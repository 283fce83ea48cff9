package models

import (
	"fmt"
	"strings"
)

// Intent is the closed set of request intents understood by the engine.
type Intent uint8

const (
	IntentSearch Intent = iota
	IntentCount
	IntentSpecificDecision
	IntentComparison
	IntentAnalysis
	IntentEvaluation
)

var intentNames = [...]string{
	IntentSearch:           "search",
	IntentCount:            "count",
	IntentSpecificDecision: "specific_decision",
	IntentComparison:       "comparison",
	IntentAnalysis:         "analysis",
	IntentEvaluation:       "evaluation",
}

var intentAliases = map[string]Intent{
	"":                  IntentSearch,
	"search":            IntentSearch,
	"list":              IntentSearch,
	"query":             IntentSearch,
	"count":             IntentCount,
	"specific_decision": IntentSpecificDecision,
	"decision":          IntentSpecificDecision,
	"eligibility":       IntentSpecificDecision,
	"comparison":        IntentComparison,
	"compare":           IntentComparison,
	"analysis":          IntentAnalysis,
	"analyze":           IntentAnalysis,
	"evaluation":        IntentEvaluation,
	"evaluate":          IntentEvaluation,
}

// AllIntents lists every intent in declaration order.
func AllIntents() []Intent {
	return []Intent{IntentSearch, IntentCount, IntentSpecificDecision, IntentComparison, IntentAnalysis, IntentEvaluation}
}

func (i Intent) String() string {
	if int(i) < len(intentNames) {
		return intentNames[i]
	}
	return fmt.Sprintf("intent(%d)", uint8(i))
}

// ParseIntent maps an intent label (case-insensitive, aliases accepted) to an
// Intent. The empty label is a search.
func ParseIntent(s string) (Intent, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	if in, ok := intentAliases[key]; ok {
		return in, nil
	}
	return IntentSearch, fmt.Errorf("unknown intent %q", s)
}

func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Intent) UnmarshalText(b []byte) error {
	parsed, err := ParseIntent(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
