package models

import "time"

// Speaker is the author of a conversation turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one immutable entry of a conversation history.
type Turn struct {
	ID        string    `json:"turnId"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Route is the resolver's decision about what to do with a turn.
type Route string

const (
	RouteEnriched    Route = "enriched"
	RouteClarify     Route = "clarify"
	RoutePassthrough Route = "passthrough"
	RouteError       Route = "error"
)

// ResolutionResult is the outcome of resolving one user turn.
type ResolutionResult struct {
	EnrichedText        string    `json:"enrichedText"`
	Entities            EntitySet `json:"entities"`
	NeedsClarification  bool      `json:"needsClarification"`
	ClarificationPrompt string    `json:"clarificationPrompt,omitempty"`
	Route               Route     `json:"route"`
	Reasoning           string    `json:"reasoning"`
	HistorySlots        []Slot    `json:"historySlots,omitempty"`
}
