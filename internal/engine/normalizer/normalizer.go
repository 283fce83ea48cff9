// Package normalizer canonicalizes extracted entities: topic synonyms, Hebrew
// number words, typo correction, date formats and year extraction.
package normalizer

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gov-decisions-workers/internal/models"
)

const (
	MinYear = 1948
	MaxYear = 2100
)

var (
	yearRe   = regexp.MustCompile(`(?:^|[^\d])(\d{4})(?:[^\d]|$)`)
	digitsRe = regexp.MustCompile(`^\d+$`)
	tokenRe  = regexp.MustCompile(`[\p{L}\p{M}"'\-]+`)

	dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "02.01.2006", "2.1.2006"}
)

// Report lists the rewrites applied while normalizing.
type Report struct {
	SynonymExpansions   []string `json:"synonymExpansions"`
	DateInterpretations []string `json:"dateInterpretations"`
	Dropped             []string `json:"dropped,omitempty"`
}

// Normalizer is safe for concurrent use; it is immutable after construction.
type Normalizer struct {
	tables      *Tables
	topics      map[string]string
	ministries  map[string]string
	operativity map[string]string
	typos       map[string]string
}

var (
	defaultOnce sync.Once
	defaultNorm *Normalizer
	defaultErr  error
)

// Default returns the normalizer built from the embedded tables.
func Default() (*Normalizer, error) {
	defaultOnce.Do(func() {
		t, err := ParseTables(defaultTablesYAML)
		if err != nil {
			defaultErr = err
			return
		}
		defaultNorm = New(t)
	})
	return defaultNorm, defaultErr
}

// MustDefault is Default for callers that cannot run without tables.
func MustDefault() *Normalizer {
	n, err := Default()
	if err != nil {
		panic(err)
	}
	return n
}

func New(t *Tables) *Normalizer {
	typos := make(map[string]string, len(t.Typos))
	for k, v := range t.Typos {
		typos[strings.ToLower(k)] = v
	}
	return &Normalizer{
		tables:      t,
		topics:      reverse(t.Topics),
		ministries:  reverse(t.Ministries),
		operativity: reverse(t.Operativity),
		typos:       typos,
	}
}

// Normalize converts loosely typed extracted entities into a canonical
// EntitySet. Keys may be snake_case or camelCase. Unusable values are dropped
// and listed in the report.
func (n *Normalizer) Normalize(raw map[string]interface{}) (models.EntitySet, Report) {
	var (
		out models.EntitySet
		rep Report
	)
	if raw == nil {
		return out, rep
	}

	if v, key, ok := lookup(raw, "government_number", "governmentNumber", "government"); ok {
		if g, ok := n.ToInt(v); ok && g > 0 {
			out.GovernmentNumber = g
		} else {
			rep.Dropped = append(rep.Dropped, key)
		}
	}
	if v, key, ok := lookup(raw, "decision_number", "decisionNumber", "decision"); ok {
		if d, ok := n.ToInt(v); ok && d > 0 {
			out.DecisionNumber = d
		} else {
			rep.Dropped = append(rep.Dropped, key)
		}
	}
	if v, _, ok := lookup(raw, "topic", "subject"); ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out.Topic = n.canonicalTopic(s, &rep)
		}
	}
	if v, key, ok := lookup(raw, "date_range", "dateRange", "dates"); ok {
		if dr, ok := n.parseDateRange(v, &rep); ok {
			out.DateRange = dr
		} else {
			rep.Dropped = append(rep.Dropped, key)
		}
	}
	if v, _, ok := lookup(raw, "ministries", "ministry", "government_body", "governmentBody"); ok {
		out.Ministries = n.canonicalMinistries(toStrings(v), &rep)
	}
	if v, key, ok := lookup(raw, "limit", "max_results", "maxResults"); ok {
		if l, ok := n.ToInt(v); ok && l > 0 {
			out.Limit = l
		} else {
			rep.Dropped = append(rep.Dropped, key)
		}
	}
	if v, key, ok := lookup(raw, "comparison_targets", "comparisonTargets", "governments"); ok {
		for _, item := range toSlice(v) {
			if g, ok := n.ToInt(item); ok && g > 0 {
				out.ComparisonTargets = append(out.ComparisonTargets, g)
			}
		}
		if len(out.ComparisonTargets) == 0 {
			rep.Dropped = append(rep.Dropped, key)
		}
	}
	if v, key, ok := lookup(raw, "year"); ok {
		if y, ok := n.ToInt(v); ok && y >= MinYear && y <= MaxYear {
			out.Year = y
		} else {
			rep.Dropped = append(rep.Dropped, key)
		}
	}
	if v, _, ok := lookup(raw, "count_only", "countOnly"); ok {
		out.CountOnly = toBool(v)
	}
	if v, _, ok := lookup(raw, "operativity"); ok {
		if s, ok := v.(string); ok {
			out.Operativity = n.CanonicalOperativity(s)
		}
	}
	return out, rep
}

// Canonicalize re-applies canonical forms to an already typed EntitySet.
func (n *Normalizer) Canonicalize(e models.EntitySet) (models.EntitySet, Report) {
	var rep Report
	out := e.Clone()
	if out.Has(models.SlotTopic) {
		out.Topic = n.canonicalTopic(out.Topic, &rep)
	}
	if out.Has(models.SlotMinistries) {
		out.Ministries = n.canonicalMinistries(out.Ministries, &rep)
	}
	if out.Operativity != "" {
		out.Operativity = n.CanonicalOperativity(out.Operativity)
	}
	return out, rep
}

// CanonicalTopic maps a topic to its canonical name after typo correction.
// Unknown topics are returned trimmed and typo-corrected.
func (n *Normalizer) CanonicalTopic(topic string) string {
	var rep Report
	return n.canonicalTopic(topic, &rep)
}

func (n *Normalizer) canonicalTopic(topic string, rep *Report) string {
	original := strings.TrimSpace(topic)
	corrected := n.CorrectTypos(original)
	if corrected != original {
		rep.SynonymExpansions = append(rep.SynonymExpansions, fmt.Sprintf("%s → %s", original, corrected))
	}
	if canonical, ok := n.topics[strings.ToLower(corrected)]; ok {
		if canonical != corrected {
			rep.SynonymExpansions = append(rep.SynonymExpansions, fmt.Sprintf("%s → %s", corrected, canonical))
		}
		return canonical
	}
	return corrected
}

func (n *Normalizer) canonicalMinistries(in []string, rep *Report) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range in {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		canonical := m
		if c, ok := n.ministries[strings.ToLower(m)]; ok {
			canonical = c
			if c != m {
				rep.SynonymExpansions = append(rep.SynonymExpansions, fmt.Sprintf("%s → %s", m, c))
			}
		}
		if !seen[canonical] {
			seen[canonical] = true
			out = append(out, canonical)
		}
	}
	return out
}

// CanonicalOperativity maps operativity labels to the stored values.
func (n *Normalizer) CanonicalOperativity(s string) string {
	s = strings.TrimSpace(s)
	if c, ok := n.operativity[strings.ToLower(s)]; ok {
		return c
	}
	return s
}

// CorrectTypos replaces known misspelled words in text.
func (n *Normalizer) CorrectTypos(text string) string {
	return tokenRe.ReplaceAllStringFunc(text, func(tok string) string {
		if fixed, ok := n.typos[strings.ToLower(tok)]; ok {
			return fixed
		}
		return tok
	})
}

// ContainsTypo reports whether text contains a known typo marker.
func (n *Normalizer) ContainsTypo(text string) bool {
	for _, tok := range tokenRe.FindAllString(text, -1) {
		if _, ok := n.typos[strings.ToLower(tok)]; ok {
			return true
		}
	}
	return false
}

// HasMultiWordDateExpression reports whether text contains a relative date
// phrase ("בשנה האחרונה", "last month", ...).
func (n *Normalizer) HasMultiWordDateExpression(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range n.tables.RelativeDates {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// ParseNumberWords converts Hebrew number words ("שלושים ושבע") to an int.
// Every token must be a number word, optionally prefixed by the conjunction ו.
func (n *Normalizer) ParseNumberWords(text string) (int, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return 0, false
	}
	total := 0
	for _, f := range fields {
		v, ok := n.tables.NumberWords[f]
		if !ok && strings.HasPrefix(f, "ו") {
			v, ok = n.tables.NumberWords[strings.TrimPrefix(f, "ו")]
		}
		if !ok {
			return 0, false
		}
		total += v
	}
	return total, true
}

// NumberWordsPattern returns a regexp alternation of all number words, longest
// first, for use inside larger patterns.
func (n *Normalizer) NumberWordsPattern() string {
	words := make([]string, 0, len(n.tables.NumberWords))
	for w := range n.tables.NumberWords {
		words = append(words, regexp.QuoteMeta(w))
	}
	sortByLengthDesc(words)
	return strings.Join(words, "|")
}

// ToInt accepts JSON numbers, digit strings and Hebrew number words.
func (n *Normalizer) ToInt(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int(x), true
	case json.Number:
		i, err := x.Int64()
		return int(i), err == nil
	case string:
		s := strings.TrimSpace(x)
		if digitsRe.MatchString(s) {
			i, err := strconv.Atoi(s)
			return i, err == nil
		}
		return n.ParseNumberWords(s)
	}
	return 0, false
}

// ExtractYear returns the first four-digit year in [1948, 2100] found in text.
func ExtractYear(text string) (int, bool) {
	for _, m := range yearRe.FindAllStringSubmatch(text, -1) {
		y, err := strconv.Atoi(m[1])
		if err == nil && y >= MinYear && y <= MaxYear {
			return y, true
		}
	}
	return 0, false
}

// ParseDate parses the supported date layouts into YYYY-MM-DD.
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

func (n *Normalizer) parseDateRange(v interface{}, rep *Report) (*models.DateRange, bool) {
	switch x := v.(type) {
	case map[string]interface{}:
		startRaw, _, _ := lookup(x, "start", "start_date", "startDate", "from")
		endRaw, _, _ := lookup(x, "end", "end_date", "endDate", "to")
		start, ok1 := n.dateBound(startRaw, false, rep)
		end, ok2 := n.dateBound(endRaw, true, rep)
		if !ok1 || !ok2 || start > end {
			return nil, false
		}
		return &models.DateRange{Start: start, End: end}, true
	case *models.DateRange:
		if x == nil {
			return nil, false
		}
		return n.parseDateRange(map[string]interface{}{"start": x.Start, "end": x.End}, rep)
	default:
		s := fmt.Sprint(v)
		if parts := strings.Split(s, ".."); len(parts) == 2 {
			return n.parseDateRange(map[string]interface{}{"start": parts[0], "end": parts[1]}, rep)
		}
		start, ok1 := n.dateBound(v, false, rep)
		end, ok2 := n.dateBound(v, true, rep)
		if !ok1 || !ok2 {
			return nil, false
		}
		return &models.DateRange{Start: start, End: end}, true
	}
}

// dateBound parses one end of a range. A bare year expands to its first or
// last day depending on end.
func (n *Normalizer) dateBound(v interface{}, end bool, rep *Report) (string, bool) {
	if v == nil {
		return "", false
	}
	if y, ok := n.ToInt(v); ok && y >= MinYear && y <= MaxYear {
		day := fmt.Sprintf("%d-01-01", y)
		if end {
			day = fmt.Sprintf("%d-12-31", y)
		}
		rep.DateInterpretations = append(rep.DateInterpretations, fmt.Sprintf("%d → %s", y, day))
		return day, true
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	iso, ok := ParseDate(s)
	if !ok {
		return "", false
	}
	if iso != strings.TrimSpace(s) {
		rep.DateInterpretations = append(rep.DateInterpretations, fmt.Sprintf("%s → %s", strings.TrimSpace(s), iso))
	}
	return iso, true
}

func lookup(m map[string]interface{}, keys ...string) (interface{}, string, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, k, true
		}
	}
	return nil, "", false
}

func toSlice(v interface{}) []interface{} {
	switch x := v.(type) {
	case []interface{}:
		return x
	case []int:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	case []string:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	case nil:
		return nil
	default:
		return []interface{}{x}
	}
}

func toStrings(v interface{}) []string {
	var out []string
	for _, item := range toSlice(v) {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toBool(v interface{}) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(x))
		return b
	}
	return false
}

func sortByLengthDesc(words []string) {
	sort.Slice(words, func(i, j int) bool {
		li, lj := len([]rune(words[i])), len([]rune(words[j]))
		if li != lj {
			return li > lj
		}
		return words[i] < words[j]
	})
}
