package models

import (
	"fmt"
	"strings"
)

// Slot names a piece of information a query may need.
type Slot string

const (
	SlotGovernmentNumber  Slot = "government_number"
	SlotDecisionNumber    Slot = "decision_number"
	SlotTopic             Slot = "topic"
	SlotDateRange         Slot = "date_range"
	SlotMinistries        Slot = "ministries"
	SlotLimit             Slot = "limit"
	SlotComparisonTargets Slot = "comparison_targets"
	SlotYear              Slot = "year"
	SlotOperativity       Slot = "operativity"
)

// DateRange is an inclusive range of ISO dates (YYYY-MM-DD).
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// EntitySet holds the canonicalized slot values of one request. Zero values
// mean "absent".
type EntitySet struct {
	GovernmentNumber  int        `json:"government_number,omitempty"`
	DecisionNumber    int        `json:"decision_number,omitempty"`
	Topic             string     `json:"topic,omitempty"`
	DateRange         *DateRange `json:"date_range,omitempty"`
	Ministries        []string   `json:"ministries,omitempty"`
	Limit             int        `json:"limit,omitempty"`
	ComparisonTargets []int      `json:"comparison_targets,omitempty"`
	Year              int        `json:"year,omitempty"`
	CountOnly         bool       `json:"count_only,omitempty"`
	Operativity       string     `json:"operativity,omitempty"`
}

// Has reports whether slot holds a non-empty value.
func (e *EntitySet) Has(slot Slot) bool {
	switch slot {
	case SlotGovernmentNumber:
		return e.GovernmentNumber > 0
	case SlotDecisionNumber:
		return e.DecisionNumber > 0
	case SlotTopic:
		return strings.TrimSpace(e.Topic) != ""
	case SlotDateRange:
		return e.DateRange != nil && e.DateRange.Start != "" && e.DateRange.End != ""
	case SlotMinistries:
		return len(e.Ministries) > 0
	case SlotLimit:
		return e.Limit > 0
	case SlotComparisonTargets:
		return len(e.ComparisonTargets) >= 2
	case SlotYear:
		return e.Year > 0
	case SlotOperativity:
		return e.Operativity != ""
	}
	return false
}

// Clone returns a deep copy.
func (e EntitySet) Clone() EntitySet {
	out := e
	if e.DateRange != nil {
		dr := *e.DateRange
		out.DateRange = &dr
	}
	if e.Ministries != nil {
		out.Ministries = append([]string(nil), e.Ministries...)
	}
	if e.ComparisonTargets != nil {
		out.ComparisonTargets = append([]int(nil), e.ComparisonTargets...)
	}
	return out
}

// Overlay returns a copy of e where every slot present in over replaces e's value.
func (e EntitySet) Overlay(over EntitySet) EntitySet {
	out := e.Clone()
	over = over.Clone()
	if over.Has(SlotGovernmentNumber) {
		out.GovernmentNumber = over.GovernmentNumber
	}
	if over.Has(SlotDecisionNumber) {
		out.DecisionNumber = over.DecisionNumber
	}
	if over.Has(SlotTopic) {
		out.Topic = over.Topic
	}
	if over.Has(SlotDateRange) {
		out.DateRange = over.DateRange
	}
	if over.Has(SlotMinistries) {
		out.Ministries = over.Ministries
	}
	if over.Has(SlotLimit) {
		out.Limit = over.Limit
	}
	if over.Has(SlotComparisonTargets) {
		out.ComparisonTargets = over.ComparisonTargets
	}
	if over.Has(SlotYear) {
		out.Year = over.Year
	}
	if over.Has(SlotOperativity) {
		out.Operativity = over.Operativity
	}
	out.CountOnly = out.CountOnly || over.CountOnly
	return out
}

// Copy sets slot on e from src. Absent slots in src are ignored.
func (e *EntitySet) Copy(slot Slot, src EntitySet) {
	if !src.Has(slot) {
		return
	}
	src = src.Clone()
	switch slot {
	case SlotGovernmentNumber:
		e.GovernmentNumber = src.GovernmentNumber
	case SlotDecisionNumber:
		e.DecisionNumber = src.DecisionNumber
	case SlotTopic:
		e.Topic = src.Topic
	case SlotDateRange:
		e.DateRange = src.DateRange
	case SlotMinistries:
		e.Ministries = src.Ministries
	case SlotLimit:
		e.Limit = src.Limit
	case SlotComparisonTargets:
		e.ComparisonTargets = src.ComparisonTargets
	case SlotYear:
		e.Year = src.Year
	case SlotOperativity:
		e.Operativity = src.Operativity
	}
}

// FilterDimensions counts the independent filters a query over e would apply.
func (e *EntitySet) FilterDimensions() int {
	n := 0
	for _, s := range []Slot{SlotGovernmentNumber, SlotTopic, SlotDateRange, SlotMinistries, SlotYear, SlotOperativity} {
		if e.Has(s) {
			n++
		}
	}
	return n
}

// Present lists the slots holding a value, in declaration order.
func (e *EntitySet) Present() []Slot {
	var out []Slot
	for _, s := range AllSlots() {
		if e.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// Display renders slot's value for prompts and logs. Absent slots render as "".
func (e *EntitySet) Display(slot Slot) string {
	if !e.Has(slot) {
		return ""
	}
	switch slot {
	case SlotGovernmentNumber:
		return fmt.Sprintf("%d", e.GovernmentNumber)
	case SlotDecisionNumber:
		return fmt.Sprintf("%d", e.DecisionNumber)
	case SlotTopic:
		return e.Topic
	case SlotDateRange:
		return e.DateRange.Start + " - " + e.DateRange.End
	case SlotMinistries:
		return strings.Join(e.Ministries, ", ")
	case SlotLimit:
		return fmt.Sprintf("%d", e.Limit)
	case SlotComparisonTargets:
		parts := make([]string, len(e.ComparisonTargets))
		for i, g := range e.ComparisonTargets {
			parts[i] = fmt.Sprintf("%d", g)
		}
		return strings.Join(parts, ", ")
	case SlotYear:
		return fmt.Sprintf("%d", e.Year)
	case SlotOperativity:
		return e.Operativity
	}
	return ""
}

// AllSlots lists every slot in declaration order.
func AllSlots() []Slot {
	return []Slot{
		SlotGovernmentNumber, SlotDecisionNumber, SlotTopic, SlotDateRange, SlotMinistries,
		SlotLimit, SlotComparisonTargets, SlotYear, SlotOperativity,
	}
}
