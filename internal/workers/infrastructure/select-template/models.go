package selecttemplate

import "gov-decisions-workers/internal/models"

type Input struct {
	Intent   string                 `json:"intent"`
	Entities map[string]interface{} `json:"entities"`
	Text     string                 `json:"text,omitempty"`
}

type Output struct {
	TemplateName string             `json:"templateName"`
	QueryType    models.QueryType   `json:"queryType"`
	SQL          string             `json:"sqlText"`
	Parameters   []models.Parameter `json:"parameters"`
	// Entities include the values derived during selection, such as the
	// default government of a decision lookup.
	Entities models.EntitySet `json:"entities"`
}
