// Package history fetches conversation turns for reference resolution. The
// engine only reads history; turns are appended by the conversation service.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gov-decisions-workers/internal/common/database"
	"gov-decisions-workers/internal/models"
)

var (
	ErrMalformedTurn = errors.New("MALFORMED_TURN")
	ErrNoStore       = errors.New("NO_HISTORY_STORE")
)

// Store returns the most recent turns of a conversation, most-recent-first.
type Store interface {
	Fetch(ctx context.Context, conversationID string) ([]models.Turn, error)
}

// KeyFor is the Redis list holding a conversation's turns, oldest first.
func KeyFor(conversationID string) string {
	return fmt.Sprintf("conversation:%s:turns", conversationID)
}

// RedisStore reads JSON-encoded turns from a Redis list.
type RedisStore struct {
	redis *database.RedisClient
	limit int
}

func NewRedisStore(redis *database.RedisClient, limit int) *RedisStore {
	return &RedisStore{redis: redis, limit: limit}
}

func (s *RedisStore) Fetch(ctx context.Context, conversationID string) ([]models.Turn, error) {
	if s == nil || s.redis == nil {
		return nil, ErrNoStore
	}
	raw, err := s.redis.Tail(ctx, KeyFor(conversationID), s.limit)
	if err != nil {
		return nil, fmt.Errorf("fetch history %s: %w", conversationID, err)
	}

	turns := make([]models.Turn, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var t models.Turn
		if err := json.Unmarshal([]byte(raw[i]), &t); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformedTurn, i, err)
		}
		if t.Speaker != models.SpeakerUser && t.Speaker != models.SpeakerAssistant {
			return nil, fmt.Errorf("%w: entry %d: unknown speaker %q", ErrMalformedTurn, i, t.Speaker)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// RequestStore serves history carried on the inbound request.
type RequestStore struct {
	turns []models.Turn
	limit int
}

// NewRequestStore orders turns most-recent-first and keeps at most limit.
// Request history is chronological, so turns without timestamps, or with
// equal ones, count as newer the later they appear.
func NewRequestStore(turns []models.Turn, limit int) *RequestStore {
	ordered := make([]models.Turn, len(turns))
	for i, t := range turns {
		ordered[len(turns)-1-i] = t
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.After(ordered[j].Timestamp)
	})
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return &RequestStore{turns: ordered, limit: limit}
}

func (s *RequestStore) Fetch(ctx context.Context, _ string) ([]models.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, t := range s.turns {
		if t.Speaker != models.SpeakerUser && t.Speaker != models.SpeakerAssistant {
			return nil, fmt.Errorf("%w: entry %d: unknown speaker %q", ErrMalformedTurn, i, t.Speaker)
		}
	}
	return append([]models.Turn(nil), s.turns...), nil
}

// FirstNonEmpty asks each store in order and returns the first non-empty
// history. Errors stop the scan.
type FirstNonEmpty []Store

func (f FirstNonEmpty) Fetch(ctx context.Context, conversationID string) ([]models.Turn, error) {
	for _, s := range f {
		if s == nil {
			continue
		}
		turns, err := s.Fetch(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if len(turns) > 0 {
			return turns, nil
		}
	}
	return nil, nil
}
