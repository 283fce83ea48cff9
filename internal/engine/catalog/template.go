package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"gov-decisions-workers/internal/models"
)

var (
	placeholderRe = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)`)
	filterRe      = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// DynamicFilter is a {{Name}} placeholder rendered as Clause when Param has a
// value and dropped otherwise.
type DynamicFilter struct {
	Name   string
	Param  string
	Clause string
}

// Template is an immutable parameterized query. Parameters are named
// placeholders (@name) bound at execution time.
type Template struct {
	Name           string
	Description    string
	SQL            string
	Required       []string
	Optional       map[string]interface{} // name -> default; nil default means "omit when absent"
	Intents        []models.Intent
	QueryType      models.QueryType
	DynamicFilters []DynamicFilter
}

// Supports reports whether t is tagged with intent.
func (t Template) Supports(intent models.Intent) bool {
	for _, in := range t.Intents {
		if in == intent {
			return true
		}
	}
	return false
}

// Declares reports whether name is a required or optional parameter.
func (t Template) Declares(name string) bool {
	for _, r := range t.Required {
		if r == name {
			return true
		}
	}
	_, ok := t.Optional[name]
	return ok
}

// Render expands dynamic filters for the given parameter values and
// collapses whitespace. Named placeholders are left in place.
func (t Template) Render(params map[string]interface{}) string {
	filters := make(map[string]DynamicFilter, len(t.DynamicFilters))
	for _, f := range t.DynamicFilters {
		filters[f.Name] = f
	}
	out := filterRe.ReplaceAllStringFunc(t.SQL, func(m string) string {
		name := filterRe.FindStringSubmatch(m)[1]
		f, ok := filters[name]
		if !ok {
			return ""
		}
		if v, ok := params[f.Param]; ok && v != nil {
			return " " + f.Clause + " "
		}
		return ""
	})
	return strings.TrimSpace(spaceRe.ReplaceAllString(out, " "))
}

// Placeholders returns the distinct named placeholders of sql in order of
// first appearance.
func Placeholders(sql string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(sql, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// FilterNames returns the {{name}} placeholders of sql.
func FilterNames(sql string) []string {
	var out []string
	for _, m := range filterRe.FindAllStringSubmatch(sql, -1) {
		out = append(out, m[1])
	}
	return out
}

// BindPositional rewrites named placeholders to $1..$n in order of first
// appearance and returns the matching argument names.
func BindPositional(sql string) (string, []string) {
	index := make(map[string]int)
	var names []string
	out := placeholderRe.ReplaceAllStringFunc(sql, func(m string) string {
		name := m[1:]
		i, ok := index[name]
		if !ok {
			names = append(names, name)
			i = len(names)
			index[name] = i
		}
		return "$" + strconv.Itoa(i)
	})
	return out, names
}
