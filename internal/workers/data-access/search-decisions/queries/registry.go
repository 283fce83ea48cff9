package queries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
)

var ErrIndexNotFound = errors.New("index not found")

type QueryResult struct {
	Data      []map[string]interface{}
	TotalHits int64
	MaxScore  float64
	Took      int64
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		MaxScore *float64 `json:"max_score"`
		Hits     []struct {
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Execute builds and runs the search and decodes the hits' sources.
func Execute(ctx context.Context, esClient *elasticsearch.Client, s DecisionSearch) (*QueryResult, error) {
	req, err := BuildSearch(s)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := req.Do(ctx, esClient)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == 404 && strings.Contains(res.String(), "index_not_found_exception") {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, s.Index)
		}
		return nil, fmt.Errorf("search query failed: %s", res.String())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	data := make([]map[string]interface{}, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		data = append(data, hit.Source)
	}
	maxScore := 0.0
	if r.Hits.MaxScore != nil {
		maxScore = *r.Hits.MaxScore
	}

	return &QueryResult{
		Data:      data,
		TotalHits: r.Hits.Total.Value,
		MaxScore:  maxScore,
		Took:      time.Since(start).Milliseconds(),
	}, nil
}
