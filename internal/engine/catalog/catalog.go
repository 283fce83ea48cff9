// Package catalog is the read-only registry of parameterized query templates
// over the government decisions table.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gov-decisions-workers/internal/models"
	"gov-decisions-workers/pkg/registry"
)

var ErrInvalidTemplate = errors.New("INVALID_TEMPLATE")

// Catalog is immutable after construction and safe for concurrent readers.
type Catalog struct {
	byName map[string]Template
	order  []string
}

// New validates templates and builds a catalog from them.
func New(templates ...Template) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Template, len(templates))}
	for _, t := range templates {
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate template %q", ErrInvalidTemplate, t.Name)
		}
		if err := Validate(t); err != nil {
			return nil, err
		}
		c.byName[t.Name] = t
		c.order = append(c.order, t.Name)
	}
	if _, ok := c.byName[RecentDecisions]; !ok {
		return nil, fmt.Errorf("%w: fallback template %q is missing", ErrInvalidTemplate, RecentDecisions)
	}
	return c, nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the catalog of built-in templates.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := New(Builtin()...)
		if err != nil {
			panic(err)
		}
		defaultCat = c
	})
	return defaultCat
}

// Validate checks that every placeholder of t is declared, every declared
// parameter is used and every dynamic filter is wired.
func Validate(t Template) error {
	fail := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidTemplate, t.Name, fmt.Sprintf(format, args...))
	}

	if t.Name == "" {
		return fmt.Errorf("%w: template without name", ErrInvalidTemplate)
	}
	if strings.TrimSpace(t.SQL) == "" {
		return fail("empty query text")
	}
	if len(t.Intents) == 0 {
		return fail("no supported intents")
	}
	if !t.QueryType.Valid() {
		return fail("unknown query type %q", t.QueryType)
	}

	for _, r := range t.Required {
		if _, both := t.Optional[r]; both {
			return fail("parameter %q is both required and optional", r)
		}
	}

	used := make(map[string]bool)
	for _, p := range Placeholders(t.SQL) {
		used[p] = true
	}

	filters := make(map[string]DynamicFilter, len(t.DynamicFilters))
	for _, f := range t.DynamicFilters {
		if _, dup := filters[f.Name]; dup {
			return fail("duplicate dynamic filter %q", f.Name)
		}
		filters[f.Name] = f
		if !t.Declares(f.Param) {
			return fail("dynamic filter %q uses undeclared parameter %q", f.Name, f.Param)
		}
		for _, p := range Placeholders(f.Clause) {
			used[p] = true
		}
	}
	for _, name := range FilterNames(t.SQL) {
		if _, ok := filters[name]; !ok {
			return fail("placeholder {{%s}} has no dynamic filter", name)
		}
	}

	for p := range used {
		if !t.Declares(p) {
			return fail("placeholder @%s is not a declared parameter", p)
		}
	}
	for _, r := range t.Required {
		if !used[r] {
			return fail("required parameter %q is never referenced", r)
		}
	}
	for o := range t.Optional {
		if !used[o] {
			return fail("optional parameter %q is never referenced", o)
		}
	}
	return nil
}

// Get returns the template called name.
func (c *Catalog) Get(name string) (Template, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Names returns template names in registration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// All returns the templates in registration order.
func (c *Catalog) All() []Template {
	out := make([]Template, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.byName[n])
	}
	return out
}

// ForIntent returns the templates supporting intent, in registration order.
func (c *Catalog) ForIntent(intent models.Intent) []Template {
	var out []Template
	for _, n := range c.order {
		if t := c.byName[n]; t.Supports(intent) {
			out = append(out, t)
		}
	}
	return out
}

// WithOverrides returns a new catalog where registry entries replace templates
// of the same name and new names are appended. The result is validated as a
// whole.
func (c *Catalog) WithOverrides(reg *registry.TemplateRegistry) (*Catalog, error) {
	if reg == nil {
		return c, nil
	}
	merged := make(map[string]Template, len(c.byName))
	for k, v := range c.byName {
		merged[k] = v
	}
	order := c.Names()

	for _, e := range reg.Templates {
		t, err := FromEntry(e)
		if err != nil {
			return nil, err
		}
		if _, exists := merged[t.Name]; !exists {
			order = append(order, t.Name)
		}
		merged[t.Name] = t
	}

	templates := make([]Template, 0, len(order))
	for _, n := range order {
		templates = append(templates, merged[n])
	}
	return New(templates...)
}

// FromEntry converts a registry entry to a Template.
func FromEntry(e registry.TemplateEntry) (Template, error) {
	t := Template{
		Name:        e.Name,
		Description: e.Description,
		SQL:         e.SQL,
		Required:    append([]string(nil), e.Required...),
		QueryType:   models.QueryType(e.QueryType),
	}
	if len(e.Optional) > 0 {
		t.Optional = make(map[string]interface{}, len(e.Optional))
		for k, v := range e.Optional {
			// JSON numbers decode as float64; integral defaults become ints.
			if f, ok := v.(float64); ok && f == float64(int(f)) {
				v = int(f)
			}
			t.Optional[k] = v
		}
	}
	for _, s := range e.Intents {
		in, err := models.ParseIntent(s)
		if err != nil {
			return Template{}, fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, e.Name, err)
		}
		t.Intents = append(t.Intents, in)
	}
	for _, f := range e.DynamicFilters {
		t.DynamicFilters = append(t.DynamicFilters, DynamicFilter{Name: f.Name, Param: f.Param, Clause: f.Clause})
	}
	return t, nil
}

// ToEntry converts t to its registry form.
func ToEntry(t Template) registry.TemplateEntry {
	e := registry.TemplateEntry{
		Name:        t.Name,
		Description: t.Description,
		SQL:         t.SQL,
		Required:    append([]string(nil), t.Required...),
		Optional:    t.Optional,
		QueryType:   string(t.QueryType),
	}
	for _, in := range t.Intents {
		e.Intents = append(e.Intents, in.String())
	}
	for _, f := range t.DynamicFilters {
		e.DynamicFilters = append(e.DynamicFilters, registry.DynamicFilterEntry{Name: f.Name, Param: f.Param, Clause: f.Clause})
	}
	return e
}

// SortedParams returns the declared parameter names of t, required first.
func SortedParams(t Template) []string {
	out := append([]string(nil), t.Required...)
	opt := make([]string, 0, len(t.Optional))
	for k := range t.Optional {
		opt = append(opt, k)
	}
	sort.Strings(opt)
	return append(out, opt...)
}
