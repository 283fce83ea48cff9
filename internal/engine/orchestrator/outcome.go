package orchestrator

import "gov-decisions-workers/internal/models"

// Outcome is the result of one compilation: TemplateResult, AssistedResult
// or Failure.
type Outcome interface {
	// Assembled renders the outcome as the outbound query.
	Assembled() *models.AssembledQuery
	outcome()
}

// TemplateResult is a catalog template that built and validated.
type TemplateResult struct {
	Query models.AssembledQuery
}

// AssistedResult is a generated query. Query.Valid is false when it failed
// validation; it is still returned, with warnings and reduced confidence.
type AssistedResult struct {
	Query      models.AssembledQuery
	Validation models.ValidationOutcome
}

// Failure means neither path produced a query. Partial is the best candidate
// assembled along the way, if any. Cause is the collaborator error that
// ended the attempt, nil when no collaborator failed.
type Failure struct {
	Reason   string
	Warnings []string
	Partial  *models.AssembledQuery
	Extras   models.AssembledQuery
	Cause    error
}

func (TemplateResult) outcome() {}
func (AssistedResult) outcome() {}
func (Failure) outcome()        {}

func (r TemplateResult) Assembled() *models.AssembledQuery {
	q := r.Query
	return &q
}

func (r AssistedResult) Assembled() *models.AssembledQuery {
	q := r.Query
	return &q
}

func (f Failure) Assembled() *models.AssembledQuery {
	q := f.Extras
	if f.Partial != nil {
		q.SQL = f.Partial.SQL
		q.Parameters = f.Partial.Parameters
		q.TemplateName = f.Partial.TemplateName
	}
	q.Method = models.MethodFailure
	q.Valid = false
	q.Confidence = 0
	q.Warnings = append(append([]string(nil), f.Warnings...), f.Reason)
	return &q
}
