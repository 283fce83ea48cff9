// Package generation talks to the text-generation service that writes SQL
// when no template fits.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gov-decisions-workers/internal/common/validation"
	"gov-decisions-workers/internal/engine/catalog"
	"gov-decisions-workers/internal/models"
)

var (
	ErrGenerationFailed  = errors.New("GENERATION_FAILED")
	ErrGenerationTimeout = errors.New("GENERATION_TIMEOUT")
	ErrMalformedResponse = errors.New("MALFORMED_GENERATION_RESPONSE")
)

// Request is what the engine sends for one assisted attempt.
type Request struct {
	Intent    models.Intent    `json:"intent"`
	QueryType models.QueryType `json:"queryType"`
	Text      string           `json:"text"`
	Entities  models.EntitySet `json:"entities"`
	// FailureReason is why the template path was abandoned, if it ran.
	FailureReason string `json:"failureReason,omitempty"`
}

// Response is the structured reply of the generation service.
type Response struct {
	SQL        string                 `json:"sql"`
	Parameters map[string]interface{} `json:"parameters"`
	QueryType  models.QueryType       `json:"queryType"`
	Confidence float64                `json:"confidence"`
}

// Generator produces a candidate query. Implementations must honor ctx.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

const replySchema = `{
  "type": "object",
  "required": ["sql"],
  "properties": {
    "sql": {"type": "string", "minLength": 1},
    "parameters": {"type": ["object", "null"]},
    "queryType": {"type": "string", "enum": ["count", "list", "comparison", "analysis", "point_lookup", ""]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`

var (
	reply   = validation.MustCompile("generation-reply", replySchema)
	fenceRe = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*(.*?)\\s*```\\s*$")
)

const instructions = `You translate questions about Israeli government decisions into one PostgreSQL query.
Rules:
1. Only a single read-only SELECT (or WITH ... SELECT) statement. Never INSERT, UPDATE, DELETE, DROP, ALTER, TRUNCATE, CREATE or any other mutating keyword.
2. Read only the table described below.
3. Use named parameters (@name) for every value taken from the question. Put their values in "parameters".
4. For count questions project exactly one COUNT aggregate and nothing else. Filter by government_number when a government is given, and by at least one of tags_policy_area, decision_title, summary or decision_content when a topic is given.
5. When a decision number is given compare decision_number with = only. Never LIKE, ranges, casts, arithmetic, functions or partial matches.
6. List and point lookup queries must not use COUNT. Analysis and comparison queries may use COUNT only with GROUP BY.
Reply with a JSON object only: {"sql": "...", "parameters": {...}, "queryType": "count|list|comparison|analysis|point_lookup", "confidence": 0.0-1.0}.`

// BuildPrompt renders the fixed instruction contract for req.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n")
	b.WriteString(catalog.SchemaDescription())
	fmt.Fprintf(&b, "\nIntent: %s\nExpected query type: %s\n", req.Intent, req.QueryType)

	entities, _ := json.Marshal(req.Entities)
	fmt.Fprintf(&b, "Entities: %s\n", entities)
	if req.FailureReason != "" {
		fmt.Fprintf(&b, "A template attempt failed: %s\n", req.FailureReason)
	}
	fmt.Fprintf(&b, "Question: %s\n", req.Text)
	return b.String()
}

// ParseResponse decodes a reply, tolerating markdown code fences. Anything
// that does not match the reply schema is ErrMalformedResponse.
func ParseResponse(raw []byte) (*Response, error) {
	body := bytes.TrimSpace(raw)
	if m := fenceRe.FindSubmatch(body); m != nil {
		body = m[1]
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty reply", ErrMalformedResponse)
	}

	if result := reply.ValidateJSON(body); !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, result.Summary())
	}

	var resp Response
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	resp.SQL = strings.TrimSpace(resp.SQL)
	resp.Parameters = normalizeNumbers(resp.Parameters)
	return &resp, nil
}

// normalizeNumbers turns json.Number values into int when integral and
// float64 otherwise.
func normalizeNumbers(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return map[string]interface{}{}
	}
	for k, v := range params {
		params[k] = normalizeValue(v)
	}
	return params
}

func normalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i)
		}
		f, _ := x.Float64()
		return f
	case []interface{}:
		for i := range x {
			x[i] = normalizeValue(x[i])
		}
		return x
	}
	return v
}
