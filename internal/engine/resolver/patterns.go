package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/models"
)

// matcher extracts one slot from free text.
type matcher struct {
	slot  models.Slot
	re    *regexp.Regexp
	apply func(m []string, e *models.EntitySet) bool
}

const (
	numberPrefix = `(?:מס(?:פר|'|\.)?\s*|ה-?|#\s*|no\.?\s*|number\s*)?`
	datePattern  = `(\d{4}-\d{2}-\d{2}|\d{1,2}[./]\d{1,2}[./]\d{4})`
)

var (
	governmentHe = regexp.MustCompile(`(?i)ממשל(?:ה|ת)\s*` + numberPrefix + `(\d{1,2})\b`)
	governmentEn = regexp.MustCompile(`(?i)\bgovernment\s*` + numberPrefix + `(\d{1,2})\b`)
)

// Extractor runs the ordered pattern matchers. The first matching pattern
// per slot wins.
type Extractor struct {
	matchers []matcher
	numbers  *normalizer.Normalizer
}

func NewExtractor(n *normalizer.Normalizer) *Extractor {
	words := n.NumberWordsPattern()
	wordSeq := `((?:ה?ו?(?:` + words + `))(?:\s+(?:ה?ו?(?:` + words + `)))*)`

	x := &Extractor{numbers: n}
	x.matchers = []matcher{
		{models.SlotDecisionNumber, regexp.MustCompile(`(?i)החלט(?:ה|ת|ות)\s*` + numberPrefix + `(\d{1,5})\b`), x.setDecision},
		{models.SlotDecisionNumber, regexp.MustCompile(`(?i)\bdecision\s*` + numberPrefix + `(\d{1,5})\b`), x.setDecision},
		{models.SlotGovernmentNumber, governmentHe, x.setGovernment},
		{models.SlotGovernmentNumber, governmentEn, x.setGovernment},
		{models.SlotGovernmentNumber, regexp.MustCompile(`ממשל(?:ה|ת)\s+` + wordSeq + `(?:$|[\s.,?!])`), x.setGovernmentWords},
		{models.SlotComparisonTargets, regexp.MustCompile(`(?i)(?:ממשלות|governments)\s*(\d{1,2})\s*(?:ו-?|and\s+|,\s*|&\s*)(\d{1,2})\b`), x.setTargets},
		{models.SlotDateRange, regexp.MustCompile(`(?i)(?:בין|מ-?|from|between)\s*` + datePattern + `\s*(?:ל-?|לבין|עד|and|to|-)\s*` + datePattern), x.setDates},
		{models.SlotDateRange, regexp.MustCompile(`(?i)(?:בין\s*(?:השנים\s*)?|from\s+|between\s+)?\b(\d{4})\s*(?:-|–|עד|ל-?|to|and)\s*(\d{4})\b`), x.setYears},
	}
	return x
}

// Extract returns the entities found in text and the slots that matched, in
// matcher order.
func (x *Extractor) Extract(text string) (models.EntitySet, []models.Slot) {
	var e models.EntitySet
	var slots []models.Slot
	done := make(map[models.Slot]bool)
	for _, m := range x.matchers {
		if done[m.slot] {
			continue
		}
		for _, sub := range m.re.FindAllStringSubmatch(text, -1) {
			if m.apply(sub, &e) {
				done[m.slot] = true
				slots = append(slots, m.slot)
				break
			}
		}
	}
	if !done[models.SlotComparisonTargets] {
		if targets := governmentMentions(text); len(targets) >= 2 {
			e.ComparisonTargets = targets[:2]
			slots = append(slots, models.SlotComparisonTargets)
		}
	}
	return e, slots
}

// governmentMentions lists distinct government numbers written as digits.
func governmentMentions(text string) []int {
	var out []int
	seen := make(map[int]bool)
	for _, re := range []*regexp.Regexp{governmentHe, governmentEn} {
		for _, sub := range re.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(sub[1])
			if err == nil && validGovernment(n) && !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

func validGovernment(n int) bool { return n >= 1 && n <= 50 }

func (x *Extractor) setDecision(m []string, e *models.EntitySet) bool {
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return false
	}
	e.DecisionNumber = n
	return true
}

func (x *Extractor) setGovernment(m []string, e *models.EntitySet) bool {
	n, err := strconv.Atoi(m[1])
	if err != nil || !validGovernment(n) {
		return false
	}
	e.GovernmentNumber = n
	return true
}

func (x *Extractor) setGovernmentWords(m []string, e *models.EntitySet) bool {
	fields := strings.Fields(m[1])
	for i, f := range fields {
		fields[i] = strings.TrimPrefix(f, "ה")
	}
	n, ok := x.numbers.ParseNumberWords(strings.Join(fields, " "))
	if !ok || !validGovernment(n) {
		return false
	}
	e.GovernmentNumber = n
	return true
}

func (x *Extractor) setTargets(m []string, e *models.EntitySet) bool {
	a, errA := strconv.Atoi(m[1])
	b, errB := strconv.Atoi(m[2])
	if errA != nil || errB != nil || a == b || !validGovernment(a) || !validGovernment(b) {
		return false
	}
	e.ComparisonTargets = []int{a, b}
	return true
}

func (x *Extractor) setDates(m []string, e *models.EntitySet) bool {
	start, ok1 := normalizer.ParseDate(m[1])
	end, ok2 := normalizer.ParseDate(m[2])
	if !ok1 || !ok2 || start > end {
		return false
	}
	e.DateRange = &models.DateRange{Start: start, End: end}
	return true
}

func (x *Extractor) setYears(m []string, e *models.EntitySet) bool {
	from, _ := strconv.Atoi(m[1])
	to, _ := strconv.Atoi(m[2])
	if from < normalizer.MinYear || to > normalizer.MaxYear || from > to {
		return false
	}
	e.DateRange = &models.DateRange{
		Start: fmt.Sprintf("%04d-01-01", from),
		End:   fmt.Sprintf("%04d-12-31", to),
	}
	return true
}
