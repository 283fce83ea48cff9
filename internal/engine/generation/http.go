package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apphttp "gov-decisions-workers/internal/common/http"
)

const generatePath = "/api/ai/generate-sql"

// HTTPGenerator calls the in-house GenAI gateway.
type HTTPGenerator struct {
	baseURL    string
	maxRetries int
	client     *apphttp.Client
}

func NewHTTPGenerator(baseURL string, maxRetries int) *HTTPGenerator {
	return &HTTPGenerator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: maxRetries,
		// deadlines come from the caller's context
		client: apphttp.NewClient(0),
	}
}

type gatewayRequest struct {
	Prompt    string      `json:"prompt"`
	Intent    string      `json:"intent"`
	QueryType string      `json:"queryType"`
	Entities  interface{} `json:"entities"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(gatewayRequest{
		Prompt:    BuildPrompt(req),
		Intent:    req.Intent.String(),
		QueryType: string(req.QueryType),
		Entities:  req.Entities,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrGenerationTimeout
			}
		}

		raw, err := g.post(ctx, body)
		if err == nil {
			return parseGatewayReply(raw)
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ErrGenerationTimeout
		}
		if errors.Is(err, errNotRetryable) {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, lastErr)
}

var errNotRetryable = errors.New("not retryable")

func (g *HTTPGenerator) post(ctx context.Context, body []byte) ([]byte, error) {
	status, raw, err := g.client.PostJSON(ctx, g.baseURL+generatePath, body)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusOK:
		return raw, nil
	case status >= 500 || status == http.StatusTooManyRequests:
		return nil, fmt.Errorf("status %d", status)
	default:
		return nil, fmt.Errorf("%w: status %d", errNotRetryable, status)
	}
}

// parseGatewayReply accepts the structured reply directly or wrapped as
// {"text": "<reply>"}.
func parseGatewayReply(raw []byte) (*Response, error) {
	var wrapped struct {
		Text *string `json:"text"`
		SQL  *string `json:"sql"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.SQL == nil && wrapped.Text != nil {
		return ParseResponse([]byte(*wrapped.Text))
	}
	return ParseResponse(raw)
}
