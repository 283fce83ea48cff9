package history

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gov-decisions-workers/internal/common/database"
	"gov-decisions-workers/internal/models"
)

func pushTurn(t *testing.T, mr *miniredis.Miniredis, conv string, turn models.Turn) {
	t.Helper()
	b, err := json.Marshal(turn)
	require.NoError(t, err)
	_, err = mr.Push(KeyFor(conv), string(b))
	require.NoError(t, err)
}

func newStore(t *testing.T, limit int) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	return mr, NewRedisStore(rc, limit)
}

// ==========================
// RedisStore
// ==========================

func TestRedisStore_MostRecentFirstAndBounded(t *testing.T) {
	mr, store := newStore(t, 2)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	pushTurn(t, mr, "c-1", models.Turn{ID: "1", Speaker: models.SpeakerUser, Text: "ממשלה 36", Timestamp: base})
	pushTurn(t, mr, "c-1", models.Turn{ID: "2", Speaker: models.SpeakerAssistant, Text: "הנה", Timestamp: base.Add(time.Minute)})
	pushTurn(t, mr, "c-1", models.Turn{ID: "3", Speaker: models.SpeakerUser, Text: "החלטה 276", Timestamp: base.Add(2 * time.Minute)})

	turns, err := store.Fetch(context.Background(), "c-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "3", turns[0].ID)
	assert.Equal(t, "2", turns[1].ID)
}

func TestRedisStore_EmptyConversation(t *testing.T) {
	_, store := newStore(t, 10)
	turns, err := store.Fetch(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestRedisStore_MalformedEntry(t *testing.T) {
	mr, store := newStore(t, 10)
	_, err := mr.Push(KeyFor("c-2"), "{not json")
	require.NoError(t, err)

	_, err = store.Fetch(context.Background(), "c-2")
	assert.ErrorIs(t, err, ErrMalformedTurn)
}

func TestRedisStore_UnknownSpeaker(t *testing.T) {
	mr, store := newStore(t, 10)
	pushTurn(t, mr, "c-3", models.Turn{ID: "1", Speaker: "system", Text: "x"})

	_, err := store.Fetch(context.Background(), "c-3")
	assert.ErrorIs(t, err, ErrMalformedTurn)
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr, store := newStore(t, 10)
	mr.Close()
	_, err := store.Fetch(context.Background(), "c-1")
	assert.Error(t, err)
}

func TestRedisStore_Nil(t *testing.T) {
	var store *RedisStore
	_, err := store.Fetch(context.Background(), "c-1")
	assert.ErrorIs(t, err, ErrNoStore)
}

// ==========================
// RequestStore / FirstNonEmpty
// ==========================

func TestRequestStore_OrdersByTimestamp(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := NewRequestStore([]models.Turn{
		{ID: "old", Speaker: models.SpeakerUser, Timestamp: base},
		{ID: "new", Speaker: models.SpeakerUser, Timestamp: base.Add(time.Hour)},
		{ID: "mid", Speaker: models.SpeakerAssistant, Timestamp: base.Add(time.Minute)},
	}, 2)

	turns, err := store.Fetch(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "new", turns[0].ID)
	assert.Equal(t, "mid", turns[1].ID)
}

func TestRequestStore_ChronologicalWithoutTimestamps(t *testing.T) {
	store := NewRequestStore([]models.Turn{
		{ID: "first", Speaker: models.SpeakerUser},
		{ID: "reply", Speaker: models.SpeakerAssistant},
		{ID: "last", Speaker: models.SpeakerUser},
	}, 0)

	turns, err := store.Fetch(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, []string{"last", "reply", "first"}, []string{turns[0].ID, turns[1].ID, turns[2].ID})
}

func TestRequestStore_TiedTimestampsKeepArrivalOrder(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := NewRequestStore([]models.Turn{
		{ID: "a", Speaker: models.SpeakerUser, Timestamp: at},
		{ID: "b", Speaker: models.SpeakerUser, Timestamp: at},
		{ID: "older", Speaker: models.SpeakerUser, Timestamp: at.Add(-time.Hour)},
	}, 2)

	turns, err := store.Fetch(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "b", turns[0].ID)
	assert.Equal(t, "a", turns[1].ID)
}

func TestRequestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRequestStore(nil, 5).Fetch(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFirstNonEmpty(t *testing.T) {
	mr, redisStore := newStore(t, 10)
	pushTurn(t, mr, "c-1", models.Turn{ID: "r1", Speaker: models.SpeakerUser, Text: "ממשלה 36"})

	carried := NewRequestStore([]models.Turn{{ID: "q1", Speaker: models.SpeakerUser}}, 10)
	turns, err := FirstNonEmpty{carried, redisStore}.Fetch(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "q1", turns[0].ID)

	turns, err = FirstNonEmpty{NewRequestStore(nil, 10), nil, redisStore}.Fetch(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "r1", turns[0].ID)
}
