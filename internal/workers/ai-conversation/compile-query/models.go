package compilequery

import "gov-decisions-workers/internal/engine/pipeline"

type Input = pipeline.Request

// Output carries the compiled query (sqlText, parameters, templateUsed,
// queryType, confidenceScore, method, ...) next to the resolution.
type Output = pipeline.Result
