package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gov-decisions-workers/internal/common/camunda"
	"gov-decisions-workers/internal/common/config"
	"gov-decisions-workers/internal/common/database"
	"gov-decisions-workers/internal/common/logger"
	"gov-decisions-workers/internal/common/metrics"
	"gov-decisions-workers/internal/common/observability"
	"gov-decisions-workers/internal/engine/catalog"
	"gov-decisions-workers/internal/engine/generation"
	"gov-decisions-workers/internal/engine/history"
	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/engine/orchestrator"
	"gov-decisions-workers/internal/engine/params"
	"gov-decisions-workers/internal/engine/pipeline"
	"gov-decisions-workers/internal/engine/resolver"
	"gov-decisions-workers/pkg/registry"

	cq "gov-decisions-workers/internal/workers/ai-conversation/compile-query"
	rr "gov-decisions-workers/internal/workers/ai-conversation/resolve-reference"
	qd "gov-decisions-workers/internal/workers/data-access/query-decisions"
	sd "gov-decisions-workers/internal/workers/data-access/search-decisions"
	st "gov-decisions-workers/internal/workers/infrastructure/select-template"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("version", cfg.App.Version))

	obs := observability.New(cfg.App.Name, cfg.Tracing, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(camunda.ConfigFrom(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Elasticsearch ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	if ok, err := esClient.IndexExists(ctx); err != nil || !ok {
		zapLog.Warn("decisions index not available, search-decisions jobs will fail",
			zap.String("index", esClient.Index), zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Redis ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Query engine ---
	cat, err := loadCatalog(cfg.Template)
	if err != nil {
		zapLog.Fatal("template catalog invalid", zap.Error(err))
	}
	n, err := normalizer.Default()
	if err != nil {
		zapLog.Fatal("normalizer tables invalid", zap.Error(err))
	}
	gen, err := generation.New(cfg.APIs.GenAI)
	if err != nil {
		zapLog.Warn("assisted generation disabled", zap.Error(err))
		gen = nil
	}
	builder := params.NewBuilder(params.Config{
		MaxStringLength: cfg.Sanitizer.MaxStringLength,
		MaxListLength:   cfg.Sanitizer.MaxListLength,
	})

	store := history.NewRedisStore(redis, cfg.Resolver.HistoryWindow)
	res := resolver.New(resolver.ConfigFrom(cfg.Resolver), store, n,
		resolver.WithMetrics(metrics.ResolverSink{}),
		resolver.WithLogger(log))
	orch := orchestrator.New(orchestrator.ConfigFrom(cfg.Orchestrator), cat, builder, n, gen,
		orchestrator.WithMetrics(metrics.OrchestratorSink{}),
		orchestrator.WithTracer(obs),
		orchestrator.WithLogger(log))
	engine := pipeline.New(n, res, orch, store, cfg.Resolver.HistoryWindow, log)

	zapLog.Info("Query engine ready", zap.Int("templates", len(cat.Names())), zap.Bool("assisted", gen != nil))

	// --- Workers ---
	var workers []*camunda.CamundaWorker
	start := func(taskType string, handler camunda.JobHandler) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if !wcfg.Enabled {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			return
		}
		if wcfg.MaxJobsActive == 0 {
			wcfg.MaxJobsActive = cfg.Camunda.MaxJobsActive
		}
		workers = append(workers, camunda.NewWorker(zeebe.Zeebe(), taskType, wcfg, handler, obs, log))
	}
	timeout := func(taskType string, fallback time.Duration) time.Duration {
		if ms := config.GetWorkerConfig(cfg, taskType).Timeout; ms > 0 {
			return config.GetDuration(ms)
		}
		return fallback
	}

	rrCfg := rr.LoadConfig()
	rrCfg.Timeout = timeout(rr.TaskType, rrCfg.Timeout)
	rrCfg.FailOnError = config.GetWorkerConfig(cfg, rr.TaskType).FailOnError
	start(rr.TaskType, rr.NewHandler(rrCfg, engine, log))

	cqCfg := cq.LoadConfig()
	cqCfg.Timeout = timeout(cq.TaskType, cqCfg.Timeout)
	cqCfg.FailOnInvalid = config.GetWorkerConfig(cfg, cq.TaskType).FailOnError
	start(cq.TaskType, cq.NewHandler(cqCfg, engine, log))

	stCfg := st.LoadConfig()
	stCfg.Timeout = timeout(st.TaskType, stCfg.Timeout)
	if cfg.Orchestrator.DefaultGovernment > 0 {
		stCfg.DefaultGovernment = cfg.Orchestrator.DefaultGovernment
	}
	start(st.TaskType, st.NewHandler(stCfg, cat, n, builder, log))

	qdCfg := qd.LoadConfig()
	qdCfg.Timeout = timeout(qd.TaskType, qdCfg.Timeout)
	qdCfg.CacheTTL = time.Duration(cfg.Search.CacheTTL) * time.Second
	start(qd.TaskType, qd.NewHandler(qdCfg, pg, qd.NewResultCache(redis, qdCfg.CacheTTL), n, log))

	sdCfg := sd.LoadConfig()
	sdCfg.Timeout = timeout(sd.TaskType, sdCfg.Timeout)
	sdCfg.CacheTTL = time.Duration(cfg.Search.CacheTTL) * time.Second
	sdCfg.MaxResults = cfg.Search.MaxResults
	start(sd.TaskType, sd.NewHandler(sdCfg, esClient, n, log))

	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		status := http.StatusOK
		for name, ping := range map[string]func(context.Context) error{
			"zeebe":         zeebe.HealthCheck,
			"postgres":      pg.Ping,
			"redis":         redis.Ping,
			"elasticsearch": esClient.Ping,
		} {
			if err := ping(checkCtx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		checks["time"] = time.Now().Format(time.RFC3339)
		writeStatus(w, status, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.App.HTTPAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.App.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// loadCatalog returns the builtin catalog merged with the override registry,
// when one is configured.
func loadCatalog(cfg config.TemplateConfig) (*catalog.Catalog, error) {
	cat := catalog.Default()
	if cfg.RegistryPath == "" {
		return cat, nil
	}
	reg, err := registry.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		return nil, err
	}
	return cat.WithOverrides(reg)
}

func writeStatus(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
