// Package params fills template parameters from entities and sanitizes them.
package params

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gov-decisions-workers/internal/engine/catalog"
	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/models"
)

var (
	ErrMissingParam = errors.New("MISSING_PARAMETER")
	ErrInvalidParam = errors.New("INVALID_PARAMETER")
)

// MissingParameterError reports the required parameters no entity could fill.
type MissingParameterError struct {
	Template string
	Missing  []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("%s: template %s: %s", ErrMissingParam, e.Template, strings.Join(e.Missing, ", "))
}

func (e *MissingParameterError) Unwrap() error { return ErrMissingParam }

// Config bounds sanitized values.
type Config struct {
	MaxStringLength int
	MaxListLength   int
}

func DefaultConfig() Config {
	return Config{MaxStringLength: 200, MaxListLength: 10}
}

type intBounds struct{ min, max int }

var bounds = map[string]intBounds{
	"government_number": {1, 50},
	"government_a":      {1, 50},
	"government_b":      {1, 50},
	"decision_number":   {1, 9999},
	"limit":             {1, 1000},
	"year":              {normalizer.MinYear, normalizer.MaxYear},
}

var dateParams = map[string]bool{"start_date": true, "end_date": true}

// Builder is safe for concurrent use.
type Builder struct {
	cfg Config
}

func NewBuilder(cfg Config) *Builder {
	def := DefaultConfig()
	if cfg.MaxStringLength <= 0 {
		cfg.MaxStringLength = def.MaxStringLength
	}
	if cfg.MaxListLength <= 0 {
		cfg.MaxListLength = def.MaxListLength
	}
	return &Builder{cfg: cfg}
}

// Build resolves every parameter of t from entities. A missing required
// parameter fails the whole build. Optional parameters fall back to the
// template default; a nil default leaves the parameter out.
func (b *Builder) Build(t catalog.Template, entities models.EntitySet) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	var missing []string

	for _, name := range t.Required {
		v, ok := b.resolve(name, entities)
		if !ok {
			missing = append(missing, name)
			continue
		}
		out[name] = v
	}
	if len(missing) > 0 {
		return nil, &MissingParameterError{Template: t.Name, Missing: missing}
	}

	for name, def := range t.Optional {
		if v, ok := b.resolve(name, entities); ok {
			out[name] = v
		} else if def != nil {
			out[name] = def
		}
	}
	return b.Sanitize(out)
}

// resolve looks a parameter up through the alias table.
func (b *Builder) resolve(name string, e models.EntitySet) (interface{}, bool) {
	switch name {
	case "government_number":
		return e.GovernmentNumber, e.Has(models.SlotGovernmentNumber)
	case "decision_number":
		return e.DecisionNumber, e.Has(models.SlotDecisionNumber)
	case "topic", "topic_pattern":
		if !e.Has(models.SlotTopic) {
			return nil, false
		}
		if name == "topic" {
			return e.Topic, true
		}
		return likePattern(e.Topic, b.cfg.MaxStringLength), true
	case "start_date":
		if !e.Has(models.SlotDateRange) {
			return nil, false
		}
		return e.DateRange.Start, true
	case "end_date":
		if !e.Has(models.SlotDateRange) {
			return nil, false
		}
		return e.DateRange.End, true
	case "ministry":
		if !e.Has(models.SlotMinistries) {
			return nil, false
		}
		return e.Ministries[0], true
	case "ministry_pattern":
		if !e.Has(models.SlotMinistries) {
			return nil, false
		}
		return likePattern(e.Ministries[0], b.cfg.MaxStringLength), true
	case "ministries":
		if !e.Has(models.SlotMinistries) {
			return nil, false
		}
		return append([]string(nil), e.Ministries...), true
	case "ministry_patterns":
		if !e.Has(models.SlotMinistries) {
			return nil, false
		}
		out := make([]string, len(e.Ministries))
		for i, m := range e.Ministries {
			out[i] = likePattern(m, b.cfg.MaxStringLength)
		}
		return out, true
	case "government_a", "government_b":
		if !e.Has(models.SlotComparisonTargets) {
			return nil, false
		}
		if name == "government_a" {
			return e.ComparisonTargets[0], true
		}
		return e.ComparisonTargets[1], true
	case "limit":
		return e.Limit, e.Has(models.SlotLimit)
	case "year":
		return e.Year, e.Has(models.SlotYear)
	case "operativity":
		return e.Operativity, e.Has(models.SlotOperativity)
	}
	return nil, false
}

// likePattern wraps s in % wildcards, keeping the result within max runes
// once sanitized. Wildcards typed by the user match literally.
func likePattern(s string, max int) string {
	s = likeEscaper.Replace(cleanString(s))
	if r := []rune(s); max > 2 && len(r) > max-2 {
		s = dropLoneBackslash(string(r[:max-2]))
	}
	return "%" + s + "%"
}

// likeEscaper uses backslash, the default LIKE escape in PostgreSQL, so the
// templates need no ESCAPE clause.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// Sanitize bounds every value of params. It is idempotent.
func (b *Builder) Sanitize(params map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(params))
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, name := range names {
		v, err := b.sanitizeValue(name, params[name])
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func (b *Builder) sanitizeValue(name string, v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int:
		return clamp(name, x), nil
	case int64:
		return clamp(name, int(x)), nil
	case float64:
		if x != float64(int(x)) {
			return nil, fmt.Errorf("%w: %s: non-integral number %v", ErrInvalidParam, name, x)
		}
		return clamp(name, int(x)), nil
	case bool:
		return x, nil
	case string:
		if dateParams[name] {
			iso, ok := normalizer.ParseDate(x)
			if !ok {
				return nil, fmt.Errorf("%w: %s: invalid date %q", ErrInvalidParam, name, x)
			}
			return iso, nil
		}
		if _, numeric := bounds[name]; numeric {
			n, ok := normalizer.MustDefault().ToInt(x)
			if !ok {
				return nil, fmt.Errorf("%w: %s: not a number %q", ErrInvalidParam, name, x)
			}
			return clamp(name, n), nil
		}
		if isPattern(name) {
			return b.truncatePattern(cleanPattern(x)), nil
		}
		return b.truncate(cleanString(x)), nil
	case []string:
		return b.sanitizeStrings(name, x), nil
	case []int:
		return b.sanitizeInts(name, x), nil
	case []interface{}:
		return b.sanitizeMixed(name, x)
	default:
		return nil, fmt.Errorf("%w: %s: unsupported type %T", ErrInvalidParam, name, v)
	}
}

func (b *Builder) sanitizeStrings(name string, in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if len(out) == b.cfg.MaxListLength {
			break
		}
		if isPattern(name) {
			out = append(out, b.truncatePattern(cleanPattern(s)))
			continue
		}
		out = append(out, b.truncate(cleanString(s)))
	}
	return out
}

func (b *Builder) sanitizeInts(name string, in []int) []int {
	out := make([]int, 0, len(in))
	for _, n := range in {
		if len(out) == b.cfg.MaxListLength {
			break
		}
		out = append(out, clamp(name, n))
	}
	return out
}

// sanitizeMixed handles JSON-decoded lists, which must be homogeneous.
func (b *Builder) sanitizeMixed(name string, in []interface{}) (interface{}, error) {
	if len(in) == 0 {
		return []string{}, nil
	}
	switch in[0].(type) {
	case string:
		strs := make([]string, 0, len(in))
		for _, item := range in {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s: mixed list", ErrInvalidParam, name)
			}
			strs = append(strs, s)
		}
		return b.sanitizeStrings(name, strs), nil
	case float64, int:
		ints := make([]int, 0, len(in))
		for _, item := range in {
			switch n := item.(type) {
			case float64:
				ints = append(ints, int(n))
			case int:
				ints = append(ints, n)
			default:
				return nil, fmt.Errorf("%w: %s: mixed list", ErrInvalidParam, name)
			}
		}
		return b.sanitizeInts(name, ints), nil
	}
	return nil, fmt.Errorf("%w: %s: unsupported list element %T", ErrInvalidParam, name, in[0])
}

func clamp(name string, n int) int {
	bd, ok := bounds[name]
	if !ok {
		return n
	}
	if n < bd.min {
		return bd.min
	}
	if n > bd.max {
		return bd.max
	}
	return n
}

var stripper = strings.NewReplacer("'", "", `"`, "", ";", "", `\`, "")

func cleanString(s string) string {
	return strings.TrimSpace(stripper.Replace(s))
}

func isPattern(name string) bool {
	return strings.HasSuffix(name, "_pattern") || strings.HasSuffix(name, "_patterns")
}

// cleanPattern is cleanString for LIKE patterns: backslashes survive only as
// escapes of %, _ or another backslash.
func cleanPattern(s string) string {
	r := []rune(s)
	var b strings.Builder
	for i := 0; i < len(r); i++ {
		switch c := r[i]; c {
		case '\'', '"', ';':
		case '\\':
			if i+1 < len(r) && (r[i+1] == '%' || r[i+1] == '_' || r[i+1] == '\\') {
				b.WriteRune(c)
				b.WriteRune(r[i+1])
				i++
			}
		default:
			b.WriteRune(c)
		}
	}
	return strings.TrimSpace(b.String())
}

func (b *Builder) truncatePattern(s string) string {
	if r := []rune(s); len(r) > b.cfg.MaxStringLength {
		return strings.TrimSpace(dropLoneBackslash(strings.TrimSpace(string(r[:b.cfg.MaxStringLength]))))
	}
	return s
}

// dropLoneBackslash removes a trailing backslash that escapes nothing.
func dropLoneBackslash(s string) string {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	if n%2 == 1 {
		return s[:len(s)-1]
	}
	return s
}

func (b *Builder) truncate(s string) string {
	if r := []rune(s); len(r) > b.cfg.MaxStringLength {
		return strings.TrimSpace(string(r[:b.cfg.MaxStringLength]))
	}
	return s
}

// Typed converts sanitized params to the outbound parameter list, ordered by
// first use in sql and then by name.
func Typed(sql string, params map[string]interface{}) []models.Parameter {
	var out []models.Parameter
	seen := make(map[string]bool)
	for _, name := range catalog.Placeholders(sql) {
		if v, ok := params[name]; ok {
			out = append(out, models.Parameter{Name: name, Value: v, Type: typeOf(name, v)})
			seen[name] = true
		}
	}
	rest := make([]string, 0)
	for name := range params {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, models.Parameter{Name: name, Value: params[name], Type: typeOf(name, params[name])})
	}
	return out
}

func typeOf(name string, v interface{}) string {
	switch v.(type) {
	case int, int64:
		return models.ParamTypeInteger
	case []string:
		return models.ParamTypeStringArray
	case []int:
		return models.ParamTypeIntArray
	case string:
		if dateParams[name] {
			return models.ParamTypeDate
		}
	}
	return models.ParamTypeString
}

// CheckProvided returns the placeholders of sql that have no value in params.
func CheckProvided(sql string, params map[string]interface{}) []string {
	var missing []string
	for _, p := range catalog.Placeholders(sql) {
		if v, ok := params[p]; !ok || v == nil {
			missing = append(missing, p)
		}
	}
	return missing
}
