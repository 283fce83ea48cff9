// Package validator applies the structural rules every compiled query must
// satisfy before it is handed to the database.
package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gov-decisions-workers/internal/engine/catalog"
	"gov-decisions-workers/internal/models"
)

var (
	forbiddenKeywords = []string{
		"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE", "CREATE", "GRANT", "REVOKE",
		"MERGE", "COPY", "UPSERT", "REPLACE", "EXECUTE", "EXEC", "CALL", "COMMENT", "VACUUM",
		"REINDEX", "CLUSTER", "LOCK", "REFRESH", "INTO",
	}
	forbiddenFunctions = []string{
		"pg_sleep", "pg_read_file", "pg_read_binary_file", "pg_ls_dir", "lo_import", "lo_export",
		"dblink", "set_config", "pg_terminate_backend", "pg_cancel_backend",
	}

	forbiddenRe     = regexp.MustCompile(`(?i)\b(` + strings.Join(forbiddenKeywords, "|") + `)\b`)
	forbiddenFuncRe = regexp.MustCompile(`(?i)\b(` + strings.Join(forbiddenFunctions, "|") + `)\s*\(`)
	leadingRe       = regexp.MustCompile(`(?i)^\s*(SELECT|WITH)\b`)
	tableRefRe      = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_.]*)`)
	fromFuncRe      = regexp.MustCompile(`(?i)\b(?:EXTRACT|SUBSTRING|TRIM|OVERLAY|POSITION)\s*\([^()]*\)`)
	cteNameRe       = regexp.MustCompile(`(?i)(?:\bWITH|,)\s*([A-Za-z_][A-Za-z0-9_]*)\s+AS\s*\(`)
	countOnlyRe     = regexp.MustCompile(`(?i)^COUNT\s*\(\s*(?:\*|(?:DISTINCT\s+)?[A-Za-z_][A-Za-z0-9_.]*)\s*\)(?:\s+(?:AS\s+)?[A-Za-z_][A-Za-z0-9_]*)?$`)
	countRe         = regexp.MustCompile(`(?i)\bCOUNT\s*\(`)
	groupByRe       = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)

	decisionExactRe = regexp.MustCompile(`(?i)\bdecision_number\s*=\s*[^=]`)
	decisionFuzzyRe = regexp.MustCompile(`(?i)\bdecision_number\s*(?:::\s*[a-z]+\s*)?(?:NOT\s+)?(?:I?LIKE|SIMILAR\s+TO|BETWEEN|IN\s*\(|~~?\*?|!~|<>|!=|<=|>=|<|>|=\s*ANY\b)`)
	decisionCastRe  = regexp.MustCompile(`(?i)(?:\bdecision_number\s*::|\bCAST\s*\(\s*decision_number\b|\b(?:TEXT|TO_CHAR|CONCAT|LPAD|SUBSTRING|SUBSTR)\s*\(\s*decision_number\b)`)
	decisionKeyRe   = regexp.MustCompile(`(?i)\bdecision_key\s*(?:NOT\s+)?(?:I?LIKE|SIMILAR\s+TO|~)`)
	likeLiteralRe   = regexp.MustCompile(`(?i)\b(?:I?LIKE|SIMILAR\s+TO)\s*'([^']*)'`)
	decisionColRe   = regexp.MustCompile(`(?i)\bdecision_number\b`)
	exactValueRe    = regexp.MustCompile(`^=\s*(?:@[A-Za-z_][A-Za-z0-9_]*|\$[0-9]+|[0-9]+|'[^']*')`)
	predicateRe     = regexp.MustCompile(`(?i)\b(SELECT|FROM|WHERE|HAVING|ON|GROUP|ORDER|LIMIT)\b`)
	callNameRe      = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*$`)
)

// Words that may precede '(' without making it a function call.
var groupingWords = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "WHERE": true, "HAVING": true, "ON": true,
	"WHEN": true, "THEN": true, "ELSE": true, "IN": true, "EXISTS": true, "FROM": true,
	"SELECT": true, "AS": true, "COUNT": true,
}

// Validator checks assembled queries. The zero value is ready to use.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

type rule struct {
	name  string
	check func(q query, entities *models.EntitySet, qt models.QueryType) string
}

var rules = []rule{
	{"read_only", readOnly},
	{"schema", schemaOnly},
	{"count_shape", countShape},
	{"exact_identifier", exactIdentifier},
	{"no_count_aggregate", noCountAggregate},
}

// Validate runs every rule and reports the first failure.
func (v *Validator) Validate(sql string, entities models.EntitySet, queryType models.QueryType) models.ValidationOutcome {
	q := parse(sql)
	for _, r := range rules {
		if reason := r.check(q, &entities, queryType); reason != "" {
			return models.ValidationOutcome{Valid: false, Reason: r.name + ": " + reason}
		}
	}
	return models.ValidationOutcome{Valid: true}
}

// Validate runs the rules with a zero Validator.
func Validate(sql string, entities models.EntitySet, queryType models.QueryType) models.ValidationOutcome {
	return New().Validate(sql, entities, queryType)
}

// query holds the top-level clauses of a statement.
type query struct {
	raw        string
	projection string
	where      string
	hasFrom    bool
}

// parse splits sql into its outermost SELECT projection and WHERE clause,
// ignoring anything nested in parentheses or string literals.
func parse(sql string) query {
	q := query{raw: strings.TrimSpace(sql)}
	masked := mask(q.raw)

	selectAt := lastTopLevel(masked, "SELECT")
	if selectAt < 0 {
		return q
	}
	fromAt := topLevelAfter(masked, "FROM", selectAt)
	if fromAt < 0 {
		q.projection = strings.TrimSpace(q.raw[selectAt+len("SELECT"):])
		return q
	}
	q.hasFrom = true
	q.projection = strings.TrimSpace(q.raw[selectAt+len("SELECT") : fromAt])

	whereAt := topLevelAfter(masked, "WHERE", fromAt)
	if whereAt < 0 {
		return q
	}
	end := len(q.raw)
	for _, kw := range []string{"GROUP", "ORDER", "LIMIT", "HAVING", "OFFSET"} {
		if i := topLevelAfter(masked, kw, whereAt); i >= 0 && i < end {
			end = i
		}
	}
	q.where = strings.TrimSpace(q.raw[whereAt+len("WHERE") : end])
	return q
}

// mask upper-cases sql, blanks string literals and replaces everything inside
// parentheses with '#', keeping byte offsets aligned with the input.
func mask(sql string) string {
	b := []byte(sql)
	depth := 0
	inString := false
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case inString:
			if c == '\'' {
				inString = false
			} else {
				b[i] = ' '
			}
			continue
		case c == '\'':
			inString = true
		case c >= 'a' && c <= 'z':
			b[i] = c - 'a' + 'A'
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth > 0 && c != '(' {
			b[i] = '#'
		}
	}
	return string(b)
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}

func keywordAt(masked, kw string, i int) bool {
	if !strings.HasPrefix(masked[i:], kw) {
		return false
	}
	if i > 0 && isWordByte(masked[i-1]) {
		return false
	}
	end := i + len(kw)
	return end == len(masked) || !isWordByte(masked[end])
}

func topLevelAfter(masked, kw string, from int) int {
	for i := from; i+len(kw) <= len(masked); i++ {
		if keywordAt(masked, kw, i) {
			return i
		}
	}
	return -1
}

func lastTopLevel(masked, kw string) int {
	for i := len(masked) - len(kw); i >= 0; i-- {
		if keywordAt(masked, kw, i) {
			return i
		}
	}
	return -1
}

// ==========================
// Rules
// ==========================

func readOnly(q query, _ *models.EntitySet, _ models.QueryType) string {
	if q.raw == "" {
		return "empty query"
	}
	if !leadingRe.MatchString(q.raw) {
		return "query must start with SELECT or WITH"
	}
	if m := forbiddenRe.FindString(q.raw); m != "" {
		return fmt.Sprintf("mutating keyword %s", strings.ToUpper(m))
	}
	if m := forbiddenFuncRe.FindStringSubmatch(q.raw); m != nil {
		return fmt.Sprintf("forbidden function %s", strings.ToLower(m[1]))
	}
	if strings.Contains(q.raw, "--") || strings.Contains(q.raw, "/*") {
		return "comments are not allowed"
	}
	if strings.Contains(strings.TrimRight(q.raw, "; \n\t"), ";") {
		return "multiple statements"
	}
	return ""
}

func schemaOnly(q query, _ *models.EntitySet, _ models.QueryType) string {
	ctes := make(map[string]bool)
	for _, m := range cteNameRe.FindAllStringSubmatch(q.raw, -1) {
		ctes[strings.ToLower(m[1])] = true
	}
	refs := tableRefRe.FindAllStringSubmatch(fromFuncRe.ReplaceAllString(q.raw, " "), -1)
	if len(refs) == 0 {
		return "query reads no table"
	}
	for _, m := range refs {
		name := strings.ToLower(m[1])
		if name == catalog.DecisionsTable || name == "public."+catalog.DecisionsTable || ctes[name] {
			continue
		}
		return fmt.Sprintf("unknown table %s", m[1])
	}
	return ""
}

func countShape(q query, e *models.EntitySet, qt models.QueryType) string {
	if qt != models.QueryTypeCount {
		return ""
	}
	if !q.hasFrom {
		return "count query has no FROM clause"
	}
	if !countOnlyRe.MatchString(q.projection) {
		return fmt.Sprintf("count projection must be a single COUNT aggregate, got %q", q.projection)
	}
	where := strings.ToLower(q.where)
	if e.Has(models.SlotGovernmentNumber) && !strings.Contains(where, "government_number") {
		return "government number is not filtered"
	}
	if e.Has(models.SlotTopic) {
		if where == "" {
			return "topic given but query has no WHERE clause"
		}
		if !referencesTopicField(where) {
			return "topic filter references no topic field"
		}
	}
	return ""
}

func referencesTopicField(where string) bool {
	for _, f := range catalog.TopicFields {
		if strings.Contains(where, f) {
			return true
		}
	}
	return false
}

func exactIdentifier(q query, e *models.EntitySet, qt models.QueryType) string {
	if !e.Has(models.SlotDecisionNumber) {
		return ""
	}
	if m := decisionFuzzyRe.FindString(q.raw); m != "" {
		return fmt.Sprintf("decision number must use exact equality, found %q", strings.TrimSpace(m))
	}
	if m := decisionCastRe.FindString(q.raw); m != "" {
		return fmt.Sprintf("decision number must not be converted, found %q", strings.TrimSpace(m))
	}
	if m := decisionKeyRe.FindString(q.raw); m != "" {
		return "decision key must not be pattern matched"
	}
	if reason := decisionOccurrences(q.raw); reason != "" {
		return reason
	}
	number := strconv.Itoa(e.DecisionNumber)
	for _, m := range likeLiteralRe.FindAllStringSubmatch(q.raw, -1) {
		if strings.Contains(m[1], number) {
			return fmt.Sprintf("partial match on decision number %s", number)
		}
	}
	if qt == models.QueryTypePointLookup && !decisionExactRe.MatchString(q.where) {
		return "point lookup must compare decision_number with ="
	}
	return ""
}

// decisionOccurrences checks every reference to decision_number. Inside a
// WHERE, HAVING or ON clause each one must be a bare `decision_number = value`
// term; anywhere else it may only be a plain column.
func decisionOccurrences(sql string) string {
	text := blankStrings(sql)
	for _, loc := range decisionColRe.FindAllStringIndex(text, -1) {
		if loc[0] > 0 && text[loc[0]-1] == '@' {
			continue
		}
		before := strings.TrimRight(text[:loc[0]], " \t\r\n")
		after := strings.TrimLeft(text[loc[1]:], " \t\r\n")

		if strings.HasSuffix(before, ".") {
			before = strings.TrimRight(callNameRe.ReplaceAllString(strings.TrimSuffix(before, "."), ""), " \t\r\n")
		}
		if before != "" && strings.ContainsAny(before[len(before)-1:], "+-*/%<>=!|^&~") {
			return "decision number must not be an operand of arithmetic or the right side of a comparison"
		}
		if fn := enclosingCall(text[:loc[0]]); fn != "" {
			return fmt.Sprintf("decision number must not be passed to %s", fn)
		}
		if after != "" && strings.ContainsAny(after[:1], "+-*/%|^&") {
			return "decision number must not be an operand of arithmetic"
		}

		if !inPredicate(text[:loc[0]]) {
			continue
		}
		m := exactValueRe.FindString(after)
		if m == "" {
			return "decision number must be compared as decision_number = value"
		}
		rest := strings.TrimLeft(after[len(m):], " \t\r\n")
		if rest != "" && strings.ContainsAny(rest[:1], "+-*/%|^&<>=!:") {
			return "decision number must be compared with a plain value"
		}
	}
	return ""
}

// inPredicate reports whether the nearest clause keyword before the end of
// prefix opens a filter.
func inPredicate(prefix string) bool {
	all := predicateRe.FindAllString(fromFuncRe.ReplaceAllString(prefix, " "), -1)
	if len(all) == 0 {
		return false
	}
	switch strings.ToUpper(all[len(all)-1]) {
	case "WHERE", "HAVING", "ON":
		return true
	}
	return false
}

// enclosingCall returns the function name owning the innermost open
// parenthesis of prefix, or "" when that parenthesis only groups.
func enclosingCall(prefix string) string {
	depth := 0
	for i := len(prefix) - 1; i >= 0; i-- {
		switch prefix[i] {
		case ')':
			depth++
		case '(':
			if depth > 0 {
				depth--
				continue
			}
			name := callNameRe.FindStringSubmatch(prefix[:i])
			if name == nil || groupingWords[strings.ToUpper(name[1])] {
				return ""
			}
			return strings.ToUpper(name[1])
		}
	}
	return ""
}

// blankStrings replaces the contents of string literals with spaces.
func blankStrings(sql string) string {
	b := []byte(sql)
	in := false
	for i, c := range b {
		switch {
		case c == '\'':
			in = !in
		case in:
			b[i] = ' '
		}
	}
	return string(b)
}

func noCountAggregate(q query, _ *models.EntitySet, qt models.QueryType) string {
	switch qt {
	case models.QueryTypeCount:
		return ""
	case models.QueryTypeComparison, models.QueryTypeAnalysis:
		if countRe.MatchString(q.raw) && !groupByRe.MatchString(q.raw) {
			return fmt.Sprintf("%s query aggregates COUNT without GROUP BY", qt)
		}
		return ""
	default:
		if countRe.MatchString(q.raw) {
			return fmt.Sprintf("%s query must not contain COUNT", qt)
		}
		return ""
	}
}
