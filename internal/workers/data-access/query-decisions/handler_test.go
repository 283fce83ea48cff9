package querydecisions

import (
	"context"
	"errors"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gov-decisions-workers/internal/common/database"
	apperrors "gov-decisions-workers/internal/common/errors"
	"gov-decisions-workers/internal/common/logger"
	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/models"
)

const (
	lookupSQL = "SELECT decision_number, decision_title, decision_date FROM israeli_government_decisions " +
		"WHERE government_number = @government_number AND decision_number = @decision_number"
	boundLookupSQL = "SELECT decision_number, decision_title, decision_date FROM israeli_government_decisions " +
		"WHERE government_number = $1 AND decision_number = $2"
	listSQL = "SELECT decision_number, decision_title FROM israeli_government_decisions " +
		"WHERE decision_date IS NOT NULL ORDER BY decision_date DESC LIMIT @limit"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
		MaxRows: 100,
	}
}

func createTestHandler(t *testing.T, config *Config, cache *ResultCache) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	if config == nil {
		config = createTestConfig()
	}
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewHandler(config, database.NewPostgresFromDB(db), cache, normalizer.MustDefault(), logger.NewTestLogger(t)), mock
}

func createTestCache(t *testing.T) (*miniredis.Miniredis, *ResultCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	return mr, NewResultCache(rc, time.Minute)
}

func createLookupInput() *Input {
	return &Input{
		SQL: lookupSQL,
		Parameters: []models.Parameter{
			{Name: "government_number", Value: float64(37), Type: models.ParamTypeInteger},
			{Name: "decision_number", Value: float64(2989), Type: models.ParamTypeInteger},
		},
		TemplateName: "decision_by_number",
		QueryType:    models.QueryTypePointLookup,
		Method:       models.MethodTemplate,
		Valid:        true,
	}
}

func expectLookup(mock sqlmock.Sqlmock) {
	date := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(boundLookupSQL)).
		WithArgs(int64(37), int64(2989)).
		WillReturnRows(sqlmock.NewRows([]string{"decision_number", "decision_title", "decision_date"}).
			AddRow(int64(2989), []byte("תוכנית לאומית לחינוך"), date))
	mock.ExpectCommit()
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	handler, mock := createTestHandler(t, nil, nil)
	expectLookup(mock)

	output, err := handler.Execute(context.Background(), createLookupInput())

	require.NoError(t, err)
	assert.Equal(t, 1, output.RowCount)
	assert.False(t, output.Truncated)
	assert.False(t, output.Cached)
	assert.Equal(t, "decision_by_number", output.TemplateName)
	assert.GreaterOrEqual(t, output.QueryExecutionTime, int64(0))

	row := output.Data[0]
	assert.Equal(t, int64(2989), row["decision_number"])
	assert.Equal(t, "תוכנית לאומית לחינוך", row["decision_title"])
	assert.Equal(t, "2025-03-02", row["decision_date"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_EmptyResult(t *testing.T) {
	handler, mock := createTestHandler(t, nil, nil)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(boundLookupSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"decision_number", "decision_title", "decision_date"}))
	mock.ExpectCommit()

	output, err := handler.Execute(context.Background(), createLookupInput())

	require.NoError(t, err)
	assert.Equal(t, 0, output.RowCount)
	assert.NotNil(t, output.Data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_Truncation(t *testing.T) {
	config := createTestConfig()
	config.MaxRows = 2
	handler, mock := createTestHandler(t, config, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $1")).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"decision_number", "decision_title"}).
			AddRow(1, "א").AddRow(2, "ב").AddRow(3, "ג"))
	mock.ExpectCommit()

	output, err := handler.Execute(context.Background(), &Input{
		SQL:        listSQL,
		Parameters: []models.Parameter{{Name: "limit", Value: float64(10), Type: models.ParamTypeInteger}},
		QueryType:  models.QueryTypeList,
		Method:     models.MethodTemplate,
		Valid:      true,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, output.RowCount)
	assert.True(t, output.Truncated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ResultCache(t *testing.T) {
	mr, cache := createTestCache(t)
	handler, mock := createTestHandler(t, nil, cache)
	expectLookup(mock)

	first, err := handler.Execute(context.Background(), createLookupInput())
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Len(t, mr.Keys(), 1)

	second, err := handler.Execute(context.Background(), createLookupInput())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.RowCount, second.RowCount)
	assert.Equal(t, "2025-03-02", second.Data[0]["decision_date"])

	// Only the first call reached the database.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_CacheUnavailable(t *testing.T) {
	mr, cache := createTestCache(t)
	mr.Close()
	handler, mock := createTestHandler(t, nil, cache)
	expectLookup(mock)

	output, err := handler.Execute(context.Background(), createLookupInput())

	require.NoError(t, err)
	assert.Equal(t, 1, output.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Admission Tests
// ==========================

func TestHandler_Execute_Refused(t *testing.T) {
	tests := []struct {
		name   string
		modify func(in *Input)
		reason string
	}{
		{
			name:   "failure result",
			modify: func(in *Input) { in.Method = models.MethodFailure; in.Valid = false },
			reason: "compilation failed",
		},
		{
			name:   "not validated",
			modify: func(in *Input) { in.Valid = false },
			reason: "not validated",
		},
		{
			name: "edited into a write",
			modify: func(in *Input) {
				in.SQL = "DELETE FROM israeli_government_decisions WHERE decision_number = @decision_number"
			},
			reason: "read_only",
		},
		{
			name: "fuzzy decision match",
			modify: func(in *Input) {
				in.Method = models.MethodAssisted
				in.SQL = "SELECT * FROM israeli_government_decisions WHERE decision_number::text LIKE '%2989%'"
				in.Parameters = nil
				in.Entities = map[string]interface{}{"decisionNumber": 2989}
			},
			reason: "exact_identifier",
		},
		{
			name: "foreign table",
			modify: func(in *Input) {
				in.SQL = "SELECT * FROM pg_user"
				in.Parameters = nil
			},
			reason: "schema",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, mock := createTestHandler(t, nil, nil)
			input := createLookupInput()
			tt.modify(input)

			output, err := handler.Execute(context.Background(), input)

			require.Error(t, err)
			assert.Nil(t, output)
			assert.True(t, errors.Is(err, ErrQueryRefused), "got %v", err)
			assert.Contains(t, err.Error(), tt.reason)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		input  *Input
		modify func(in *Input)
	}{
		{name: "nil input"},
		{name: "missing sql", modify: func(in *Input) { in.SQL = "" }},
		{name: "unknown method", modify: func(in *Input) { in.Method = "guess" }},
		{name: "unknown query type", modify: func(in *Input) { in.QueryType = "histogram" }},
		{name: "unnamed parameter", modify: func(in *Input) { in.Parameters[0].Name = "" }},
		{name: "unbound placeholder", modify: func(in *Input) { in.Parameters = in.Parameters[:1] }},
		{name: "fractional integer", modify: func(in *Input) { in.Parameters[1].Value = 29.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := createTestHandler(t, nil, nil)
			var input *Input
			if tt.modify != nil {
				input = createLookupInput()
				tt.modify(input)
			}

			_, err := handler.Execute(context.Background(), input)

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
		})
	}
}

func TestHandler_Execute_QueryError(t *testing.T) {
	handler, mock := createTestHandler(t, nil, nil)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(boundLookupSQL)).
		WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	_, err := handler.Execute(context.Background(), createLookupInput())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueryExecutionFailed))
	assert.Contains(t, err.Error(), "relation does not exist")
}

func TestHandler_Execute_ConnectionLost(t *testing.T) {
	handler, mock := createTestHandler(t, nil, nil)
	mock.ExpectBegin().WillReturnError(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})

	input := createLookupInput()
	_, err := handler.Execute(context.Background(), input)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDatabaseUnavailable)

	stdErr := handler.toStandardError(err, input)
	assert.Equal(t, "DATABASE_CONNECTION_FAILED", string(stdErr.Code))
	assert.True(t, stdErr.Retryable)
}

func TestHandler_Execute_Timeout(t *testing.T) {
	handler, mock := createTestHandler(t, nil, nil)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(boundLookupSQL)).
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"decision_number"}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := handler.Execute(ctx, createLookupInput())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueryTimeout), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestHandler_ToStandardError(t *testing.T) {
	handler, _ := createTestHandler(t, nil, nil)
	input := createLookupInput()

	tests := []struct {
		err  error
		code apperrors.ErrorCode
	}{
		{ErrQueryTimeout, apperrors.ErrCodeQueryTimeout},
		{ErrQueryRefused, apperrors.ErrCodeQueryValidationFailed},
		{ErrQueryExecutionFailed, apperrors.ErrCodeQueryExecutionFailed},
		{ErrInvalidInput, apperrors.ErrCodeRequestValidationFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.code, handler.toStandardError(tt.err, input).Code)
		})
	}
}

// ==========================
// Benchmark Tests
// ==========================

func BenchmarkHandler_Execute(b *testing.B) {
	db, mock, err := sqlmock.New()
	require.NoError(b, err)
	defer db.Close()
	handler := NewHandler(createTestConfig(), database.NewPostgresFromDB(db), nil, normalizer.MustDefault(), logger.NewNoOpLogger())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		expectLookup(mock)
		b.StartTimer()
		_, _ = handler.Execute(context.Background(), createLookupInput())
	}
}
