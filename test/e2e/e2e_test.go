//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gov-decisions-workers/internal/common/camunda"
	"gov-decisions-workers/internal/common/config"
	"gov-decisions-workers/internal/common/database"
	"gov-decisions-workers/internal/common/logger"
	"gov-decisions-workers/internal/engine/catalog"
	"gov-decisions-workers/internal/engine/history"
	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/engine/orchestrator"
	"gov-decisions-workers/internal/engine/params"
	"gov-decisions-workers/internal/engine/pipeline"
	"gov-decisions-workers/internal/engine/resolver"
	"gov-decisions-workers/internal/models"

	cq "gov-decisions-workers/internal/workers/ai-conversation/compile-query"
	qd "gov-decisions-workers/internal/workers/data-access/query-decisions"
	st "gov-decisions-workers/internal/workers/infrastructure/select-template"
)

type services struct {
	cfg   *config.Config
	pg    *database.PostgresClient
	redis *database.RedisClient
}

func TestFullE2E(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	require.NoError(t, err)

	t.Log("🚀 Starting E2E test with real services...")
	svc := connect(ctx, t, cfg)
	seedDecisions(ctx, t, svc.pg)

	t.Run("SelectThenQuery", func(t *testing.T) { testSelectThenQuery(ctx, t, svc) })
	t.Run("CompileThenQuery", func(t *testing.T) { testCompileThenQuery(ctx, t, svc) })

	t.Log("✅ E2E workflow successful")
}

// ==========================
// 1. Service connectivity
// ==========================

func connect(ctx context.Context, t *testing.T, cfg *config.Config) *services {
	t.Log("🔍 Checking service connectivity...")

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "❌ PostgreSQL connection failed")
	require.NoError(t, pg.Ping(ctx), "❌ PostgreSQL ping failed")
	t.Cleanup(func() { pg.Close() })
	t.Log("✅ PostgreSQL connected")

	rc, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err, "❌ Redis client creation failed")
	require.NoError(t, rc.Ping(ctx), "❌ Redis ping failed")
	t.Cleanup(func() { rc.Close() })
	t.Log("✅ Redis connected")

	zeebe, err := camunda.NewClient(camunda.ConfigFrom(cfg.Camunda))
	require.NoError(t, err, "❌ Zeebe client creation failed")
	assert.NoError(t, zeebe.HealthCheck(ctx), "❌ Zeebe topology request failed")
	zeebe.Close()
	t.Log("✅ Zeebe connected")

	return &services{cfg: cfg, pg: pg, redis: rc}
}

// ==========================
// 2. Decisions table + test data
// ==========================

func seedDecisions(ctx context.Context, t *testing.T, pg *database.PostgresClient) {
	t.Log("🔧 Creating decisions table and inserting test data...")

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS israeli_government_decisions (
			decision_key TEXT PRIMARY KEY,
			government_number INTEGER NOT NULL,
			decision_number INTEGER NOT NULL,
			decision_date DATE,
			decision_title TEXT,
			summary TEXT,
			decision_content TEXT,
			tags_policy_area TEXT,
			tags_government_body TEXT,
			operativity TEXT,
			decision_url TEXT,
			prime_minister TEXT
		)`,
		`INSERT INTO israeli_government_decisions
			(decision_key, government_number, decision_number, decision_date, decision_title, summary,
			 tags_policy_area, tags_government_body, operativity, prime_minister)
		VALUES
			('37_2989', 37, 2989, '2025-03-02', 'תוכנית לאומית לחינוך', 'הרחבת יום הלימודים',
			 'חינוך', 'משרד החינוך', 'אופרטיבית', 'בנימין נתניהו'),
			('37_3001', 37, 3001, '2025-03-16', 'חיזוק מערך הבריאות בפריפריה', 'תקינה לבתי חולים',
			 'בריאות', 'משרד הבריאות', 'אופרטיבית', 'בנימין נתניהו'),
			('36_1200', 36, 1200, '2022-05-08', 'רפורמה בחינוך המיוחד', 'שילוב תלמידים',
			 'חינוך', 'משרד החינוך', 'דקלרטיבית', 'נפתלי בנט')
		ON CONFLICT (decision_key) DO NOTHING`,
	}
	for _, s := range stmts {
		_, err := pg.DB.ExecContext(ctx, s)
		require.NoError(t, err)
	}
	t.Log("✅ Test data ready")
}

// ==========================
// 3. Worker chains
// ==========================

func testSelectThenQuery(ctx context.Context, t *testing.T, svc *services) {
	log := logger.NewTestLogger(t)
	n := normalizer.MustDefault()

	selector := st.NewHandler(&st.Config{DefaultGovernment: 37, Timeout: 5 * time.Second},
		catalog.Default(), n, params.NewBuilder(params.DefaultConfig()), log)
	selected, err := selector.Execute(ctx, &st.Input{
		Intent:   "specific_decision",
		Entities: map[string]interface{}{"decisionNumber": 2989, "governmentNumber": 37},
	})
	require.NoError(t, err)
	assert.Equal(t, catalog.DecisionByNumber, selected.TemplateName)

	querier := qd.NewHandler(&qd.Config{Timeout: 10 * time.Second, MaxRows: 100},
		svc.pg, qd.NewResultCache(svc.redis, time.Minute), n, log)
	out, err := querier.Execute(ctx, &qd.Input{
		SQL:          selected.SQL,
		Parameters:   selected.Parameters,
		TemplateName: selected.TemplateName,
		QueryType:    selected.QueryType,
		Method:       models.MethodTemplate,
		Valid:        true,
		Entities:     map[string]interface{}{"decisionNumber": 2989},
	})
	require.NoError(t, err)
	require.Len(t, out.Data, 1)
	assert.EqualValues(t, 2989, out.Data[0]["decision_number"])
	assert.Equal(t, "2025-03-02", out.Data[0]["decision_date"])
	t.Log("✅ select-template -> query-decisions")
}

func testCompileThenQuery(ctx context.Context, t *testing.T, svc *services) {
	log := logger.NewTestLogger(t)
	n := normalizer.MustDefault()
	store := history.NewRedisStore(svc.redis, svc.cfg.Resolver.HistoryWindow)
	r := resolver.New(resolver.ConfigFrom(svc.cfg.Resolver), store, n, resolver.WithLogger(log))
	o := orchestrator.New(orchestrator.ConfigFrom(svc.cfg.Orchestrator), catalog.Default(),
		params.NewBuilder(params.DefaultConfig()), n, nil, orchestrator.WithLogger(log))
	compiler := cq.NewHandler(&cq.Config{Timeout: 10 * time.Second},
		pipeline.New(n, r, o, store, svc.cfg.Resolver.HistoryWindow, log), log)

	compiled, err := compiler.Execute(ctx, &cq.Input{
		ConversationID: "e2e-" + time.Now().Format("150405.000"),
		RawText:        "כמה החלטות בנושא חינוך קיבלה ממשלה 37",
		Intent:         "count",
		Entities:       map[string]interface{}{"topic": "חינוך", "governmentNumber": 37},
	})
	require.NoError(t, err)
	require.NotNil(t, compiled.AssembledQuery)
	assert.Equal(t, models.MethodTemplate, compiled.Method)
	assert.True(t, compiled.Valid)

	querier := qd.NewHandler(&qd.Config{Timeout: 10 * time.Second, MaxRows: 100}, svc.pg, nil, n, log)
	out, err := querier.Execute(ctx, &qd.Input{
		SQL:          compiled.SQL,
		Parameters:   compiled.Parameters,
		TemplateName: compiled.TemplateName,
		QueryType:    compiled.QueryType,
		Method:       compiled.Method,
		Valid:        compiled.Valid,
	})
	require.NoError(t, err)
	require.Len(t, out.Data, 1)
	for _, v := range out.Data[0] {
		assert.EqualValues(t, 1, v)
	}
	t.Log("✅ compile-query -> query-decisions")
}
