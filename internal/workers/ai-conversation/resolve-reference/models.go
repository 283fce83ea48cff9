package resolvereference

import (
	"gov-decisions-workers/internal/engine/pipeline"
	"gov-decisions-workers/internal/models"
)

// Input is the inbound turn: conversationId, rawText, intent, entities,
// conversationHistory and contextSummary.
type Input = pipeline.Request

type Output struct {
	models.ResolutionResult
	SynonymExpansions   []string `json:"synonymExpansions"`
	DateInterpretations []string `json:"dateInterpretations"`
}
