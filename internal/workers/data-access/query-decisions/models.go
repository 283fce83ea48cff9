package querydecisions

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"gov-decisions-workers/internal/models"
	"gov-decisions-workers/internal/workers/data-access/query-decisions/queries"
)

// Input is the compile-query output, as carried in the process variables.
type Input struct {
	ID           string             `json:"id,omitempty"`
	SQL          string             `json:"sqlText"`
	Parameters   []models.Parameter `json:"parameters"`
	TemplateName string             `json:"templateUsed,omitempty"`
	QueryType    models.QueryType   `json:"queryType"`
	Method       models.Method      `json:"method"`
	Valid        bool               `json:"valid"`
	// Entities are the request entities still in process scope. They let
	// the query be revalidated against the decision number it was asked for.
	Entities map[string]interface{} `json:"entities,omitempty"`
}

// Validate checks the shape of the input. Whether the query may run is
// decided separately.
func (in Input) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.SQL, validation.Required),
		validation.Field(&in.Method, validation.Required,
			validation.In(models.MethodTemplate, models.MethodAssisted, models.MethodFailure)),
		validation.Field(&in.QueryType, validation.Required, validation.By(func(v interface{}) error {
			if qt, _ := v.(models.QueryType); !qt.Valid() {
				return validation.NewError("validation_query_type", "unknown query type")
			}
			return nil
		})),
		validation.Field(&in.Parameters, validation.Each(validation.By(func(v interface{}) error {
			p, _ := v.(models.Parameter)
			return validation.Validate(p.Name, validation.Required)
		}))),
	)
}

type Output struct {
	Data               []queries.Row `json:"data"`
	RowCount           int           `json:"rowCount"`
	Truncated          bool          `json:"truncated"`
	QueryExecutionTime int64         `json:"queryExecutionTime"` // milliseconds
	TemplateName       string        `json:"templateUsed,omitempty"`
	Cached             bool          `json:"cached"`
}
