// Package selector maps an intent and its entities to the single best-fit
// query template.
package selector

import (
	"regexp"
	"strconv"

	"gov-decisions-workers/internal/engine/catalog"
	"gov-decisions-workers/internal/engine/classifier"
	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/models"
)

// DefaultGovernment is used when a decision lookup names no government.
const DefaultGovernment = 37

var governmentMentionRe = regexp.MustCompile(`(?i)(?:ממשל(?:ה|ת)|government)\s*(?:מס(?:פר|'|\.)?\s*)?(\d{1,2})`)

// Selector is safe for concurrent use.
type Selector struct {
	catalog           *catalog.Catalog
	defaultGovernment int
}

func New(c *catalog.Catalog, defaultGovernment int) *Selector {
	if defaultGovernment <= 0 {
		defaultGovernment = DefaultGovernment
	}
	return &Selector{catalog: c, defaultGovernment: defaultGovernment}
}

// Select returns the template for intent and entities. It may write derived
// values back into entities: a year found in the topic text and the default
// government of decision lookups. The first branch whose entities are all
// present wins. Only comparison intents can miss, when the catalog has no
// comparison template; every other intent falls back to recent decisions.
func (s *Selector) Select(intent models.Intent, entities *models.EntitySet, text string) (catalog.Template, bool) {
	s.deriveYear(entities)

	var name string
	switch intent {
	case models.IntentAnalysis, models.IntentEvaluation:
		name = s.analysis(entities)
	case models.IntentSpecificDecision:
		name = s.specificDecision(entities)
	case models.IntentCount:
		name = s.count(entities)
	case models.IntentComparison:
		return s.catalog.Get(s.comparison(entities, text))
	case models.IntentSearch:
		if entities.CountOnly {
			name = s.count(entities)
		} else {
			name = s.search(entities, text)
		}
	default:
		return catalog.Template{}, false
	}
	return s.get(name)
}

func (s *Selector) get(name string) (catalog.Template, bool) {
	if t, ok := s.catalog.Get(name); ok {
		return t, true
	}
	return s.catalog.Get(catalog.RecentDecisions)
}

// deriveYear copies a year mentioned in the topic into the year slot.
func (s *Selector) deriveYear(e *models.EntitySet) {
	if e.Has(models.SlotYear) || !e.Has(models.SlotTopic) {
		return
	}
	if y, ok := normalizer.ExtractYear(e.Topic); ok {
		e.Year = y
	}
}

func (s *Selector) defaultGov(e *models.EntitySet) {
	if !e.Has(models.SlotGovernmentNumber) {
		e.GovernmentNumber = s.defaultGovernment
	}
}

func (s *Selector) analysis(e *models.EntitySet) string {
	if !e.Has(models.SlotDecisionNumber) {
		return catalog.RecentDecisions
	}
	s.defaultGov(e)
	return catalog.DecisionAnalysis
}

func (s *Selector) specificDecision(e *models.EntitySet) string {
	if !e.Has(models.SlotDecisionNumber) {
		return catalog.RecentDecisions
	}
	s.defaultGov(e)
	return catalog.DecisionByNumber
}

func (s *Selector) count(e *models.EntitySet) string {
	topic := e.Has(models.SlotTopic)
	switch {
	case topic && e.Has(models.SlotYear):
		return catalog.CountByTopicAndYear
	case topic && e.Has(models.SlotDateRange):
		return catalog.CountByTopicAndDateRange
	case e.Has(models.SlotYear):
		return catalog.CountByYear
	case topic && e.Has(models.SlotOperativity):
		return catalog.CountByTopicAndOperativity
	case e.Has(models.SlotGovernmentNumber):
		if topic {
			return catalog.CountByTopicAndGovernment
		}
		return catalog.CountByGovernment
	case topic:
		return catalog.CountByTopic
	default:
		return catalog.RecentDecisions
	}
}

func (s *Selector) search(e *models.EntitySet, text string) string {
	topic := e.Has(models.SlotTopic)
	switch {
	case e.Has(models.SlotDecisionNumber):
		s.defaultGov(e)
		return catalog.DecisionByNumber
	case e.Has(models.SlotDateRange):
		return catalog.DecisionsByDateRange
	case len(e.Ministries) == 1:
		return catalog.DecisionsByMinistry
	case len(e.Ministries) > 1:
		return catalog.DecisionsByMinistries
	case e.Has(models.SlotGovernmentNumber) && topic:
		return catalog.DecisionsByGovernmentAndTopic
	case topic && classifier.HasTrendCue(text):
		return catalog.TopicTrendByYear
	case e.Has(models.SlotGovernmentNumber) && classifier.HasAnalysisCue(text):
		return catalog.GovernmentTopicAnalysis
	case classifier.HasComparisonCue(text):
		return s.comparison(e, text)
	case classifier.HasBreakdownCue(text):
		return catalog.DecisionsByMinistryBreakdown
	case topic && e.Has(models.SlotYear):
		return catalog.DecisionsByYearAndTopic
	case topic:
		return catalog.DecisionsByTopic
	default:
		return catalog.RecentDecisions
	}
}

func (s *Selector) comparison(e *models.EntitySet, text string) string {
	if e.Has(models.SlotComparisonTargets) {
		return catalog.CompareTwoGovernments
	}
	if classifier.HasComparisonCue(text) {
		if govs := governmentMentions(text); len(govs) >= 2 {
			e.ComparisonTargets = govs[:2]
			return catalog.CompareTwoGovernments
		}
	}
	return catalog.CompareGovernmentsAggregate
}

// governmentMentions returns distinct government numbers mentioned in text, in order.
func governmentMentions(text string) []int {
	var out []int
	seen := make(map[int]bool)
	for _, m := range governmentMentionRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
