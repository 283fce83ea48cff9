package registry

// TemplateRegistry is the on-disk format of query template overrides.
type TemplateRegistry struct {
	Version     string          `json:"version"`
	LastUpdated string          `json:"lastUpdated,omitempty"`
	Templates   []TemplateEntry `json:"templates"`
}

// TemplateEntry describes one query template. An entry whose name matches a
// built-in template replaces it.
type TemplateEntry struct {
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	SQL            string                 `json:"sql"`
	Required       []string               `json:"required"`
	Optional       map[string]interface{} `json:"optional,omitempty"`
	Intents        []string               `json:"intents"`
	QueryType      string                 `json:"queryType"`
	DynamicFilters []DynamicFilterEntry   `json:"dynamicFilters,omitempty"`
}

// DynamicFilterEntry is a {{name}} placeholder rendered as Clause when Param
// has a value and removed otherwise.
type DynamicFilterEntry struct {
	Name   string `json:"name"`
	Param  string `json:"param"`
	Clause string `json:"clause"`
}
