package queries

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"gov-decisions-workers/internal/models"
)

var (
	ErrMissingIndex = errors.New("index name is required")
	ErrEmptyQuery   = errors.New("search has no criteria")
)

// Text fields searched by free text, with their boosts.
var textFields = []string{"decision_title^3", "summary^2", "tags_policy_area^2", "decision_content"}

// DecisionSearch describes one full-text search over the decisions index.
type DecisionSearch struct {
	Index            string
	Text             string
	Topic            string
	Ministries       []string
	DateRange        *models.DateRange
	GovernmentNumber int
	DecisionNumber   int
	From             int
	Size             int
}

// BuildSearch turns s into a bool query: free text and topic score the hits,
// every other criterion filters them. Results are ordered by score, then by
// decision date, newest first.
func BuildSearch(s DecisionSearch) (*esapi.SearchRequest, error) {
	if s.Index == "" {
		return nil, ErrMissingIndex
	}

	var must, should, filter []interface{}

	if s.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  s.Text,
				"fields": textFields,
				"type":   "best_fields",
			},
		})
	}
	if s.Topic != "" {
		topic := map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  s.Topic,
				"fields": []string{"tags_policy_area^3", "decision_title^2", "summary"},
				"type":   "phrase",
			},
		}
		if s.Text != "" {
			should = append(should, topic)
		} else {
			must = append(must, topic)
		}
	}
	if len(s.Ministries) > 0 {
		ministries := make([]interface{}, len(s.Ministries))
		for i, m := range s.Ministries {
			ministries[i] = map[string]interface{}{
				"match_phrase": map[string]interface{}{"tags_government_body": m},
			}
		}
		filter = append(filter, map[string]interface{}{
			"bool": map[string]interface{}{"should": ministries, "minimum_should_match": 1},
		})
	}
	if s.GovernmentNumber > 0 {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"government_number": s.GovernmentNumber},
		})
	}
	if s.DecisionNumber > 0 {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"decision_number": s.DecisionNumber},
		})
	}
	if s.DateRange != nil {
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{
				"decision_date": map[string]interface{}{"gte": s.DateRange.Start, "lte": s.DateRange.End},
			},
		})
	}

	if len(must) == 0 && len(filter) == 0 {
		return nil, ErrEmptyQuery
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(should) > 0 {
		boolQuery["should"] = should
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []interface{}{
			"_score",
			map[string]interface{}{"decision_date": map[string]interface{}{"order": "desc"}},
		},
	})
	if err != nil {
		return nil, err
	}

	from, size := s.From, s.Size
	return &esapi.SearchRequest{
		Index:          []string{s.Index},
		Body:           bytes.NewReader(body),
		From:           &from,
		Size:           &size,
		TrackTotalHits: true,
	}, nil
}
