package models

// QueryType is the shape of result a request asks for. It drives both template
// selection and validation.
type QueryType string

const (
	QueryTypeCount       QueryType = "count"
	QueryTypeList        QueryType = "list"
	QueryTypeComparison  QueryType = "comparison"
	QueryTypeAnalysis    QueryType = "analysis"
	QueryTypePointLookup QueryType = "point_lookup"
)

// Valid reports whether t is one of the known query types.
func (t QueryType) Valid() bool {
	switch t {
	case QueryTypeCount, QueryTypeList, QueryTypeComparison, QueryTypeAnalysis, QueryTypePointLookup:
		return true
	}
	return false
}

// Method identifies which compilation path produced a query.
type Method string

const (
	MethodTemplate Method = "template"
	MethodAssisted Method = "assisted"
	MethodFailure  Method = "failure"
)

// AssistedTemplateName is the template name recorded for assisted-generation results.
const AssistedTemplateName = "assisted"

// Parameter types carried in the outbound parameter list.
const (
	ParamTypeInteger     = "integer"
	ParamTypeString      = "string"
	ParamTypeDate        = "date"
	ParamTypeStringArray = "string_array"
	ParamTypeIntArray    = "integer_array"
)

// Parameter is one bound query parameter.
type Parameter struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
	Type  string      `json:"type"`
}

// AssembledQuery is a compiled, parameterized query ready for execution.
type AssembledQuery struct {
	ID                  string      `json:"id"`
	SQL                 string      `json:"sqlText"`
	Parameters          []Parameter `json:"parameters"`
	TemplateName        string      `json:"templateUsed,omitempty"`
	QueryType           QueryType   `json:"queryType"`
	Confidence          float64     `json:"confidenceScore"`
	Warnings            []string    `json:"validationWarnings"`
	Method              Method      `json:"method"`
	Valid               bool        `json:"valid"`
	SynonymExpansions   []string    `json:"synonymExpansions"`
	DateInterpretations []string    `json:"dateInterpretations"`
}

// ParamMap returns the parameters keyed by name.
func (q *AssembledQuery) ParamMap() map[string]interface{} {
	out := make(map[string]interface{}, len(q.Parameters))
	for _, p := range q.Parameters {
		out[p.Name] = p.Value
	}
	return out
}

// ValidationOutcome is the verdict of the query validator.
type ValidationOutcome struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}
