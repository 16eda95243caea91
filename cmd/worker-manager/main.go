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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"match-workers/internal/common/cache"
	"match-workers/internal/common/camunda"
	"match-workers/internal/common/config"
	"match-workers/internal/common/database"
	"match-workers/internal/common/logger"
	"match-workers/internal/common/observability"
	"match-workers/internal/matching/embedding"
	"match-workers/internal/matching/itemset"
	"match-workers/internal/matching/scoring"
	"match-workers/internal/matching/selector"
	"match-workers/internal/store"

	cc "match-workers/internal/workers/matching/calculate-compatibility"
	ep "match-workers/internal/workers/matching/embed-profiles"
	fsp "match-workers/internal/workers/matching/find-similar-profiles"
	gm "match-workers/internal/workers/matching/generate-matches"
	ums "match-workers/internal/workers/matching/update-match-status"
)

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

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting match worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, zapLog)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	zeebe, err := camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
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

	if cfg.Database.Postgres.AutoMigrate {
		if err := store.EnsureSchema(ctx, pg.DB); err != nil {
			zapLog.Fatal("schema setup failed", zap.Error(err))
		}
		zapLog.Info("Database schema ensured")
	}

	// --- Redis (only for the shared cache backend) ---
	var redisClient redis.UniversalClient
	if cfg.Cache.Backend == "redis" {
		rc := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error { return rc.Ping(ctx) }, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rc.Close()
		redisClient = rc.Client
		zapLog.Info("Redis connected successfully")
	}

	resultCache, err := cache.NewFromConfig(cfg.Cache, redisClient, log)
	if err != nil {
		zapLog.Fatal("cache init failed", zap.Error(err))
	}
	zapLog.Info("Result cache ready", zap.String("backend", resultCache.Backend()))

	// --- Elasticsearch directory (optional) ---
	var directory gm.CandidateDirectory
	if cfg.Database.Elasticsearch.Enabled() {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
		if err != nil {
			zapLog.Fatal("elasticsearch client failed", zap.Error(err))
		}
		if err := esClient.Ping(ctx); err != nil {
			// The directory is optional; generate-matches falls back to Postgres.
			zapLog.Warn("elasticsearch unreachable at startup", zap.Error(err))
		}
		directory = store.NewDirectory(esClient.Client, cfg.Database.Elasticsearch.DirectoryIndex)
		zapLog.Info("Attendee directory enabled", zap.String("index", cfg.Database.Elasticsearch.DirectoryIndex))
	}

	// --- Matching engine ---
	table, err := loadTable(cfg.Matching.TablesPath)
	if err != nil {
		zapLog.Fatal("attribute table load failed", zap.Error(err))
	}
	scorer := scoring.NewScorer(table, scoringPolicy(cfg.Matching))
	sel := selector.New(scorer)

	provider, err := embedding.Resolve(cfg.Embedding)
	if err != nil {
		zapLog.Fatal("embedding provider failed", zap.Error(err))
	}
	embeddings, err := embedding.NewService(provider, cfg.Embedding.MemoSize)
	if err != nil {
		zapLog.Fatal("embedding service failed", zap.Error(err))
	}
	zapLog.Info("Embedding provider resolved",
		zap.String("provider", provider.Name()),
		zap.Bool("configured", provider.IsConfigured()),
	)

	questionnaires := store.NewQuestionnaireStore(pg.DB)
	matches := store.NewMatchStore(pg.DB)
	vectors := store.NewEmbeddingStore(pg.DB)

	// --- Workers ---
	var workers []*camunda.CamundaWorker
	register := func(taskType string, build func() (camunda.JobHandler, error)) {
		if !config.IsWorkerEnabled(cfg, taskType) {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			return
		}
		handler, err := build()
		if err != nil {
			zapLog.Fatal("failed to create handler", zap.String("taskType", taskType), zap.Error(err))
		}
		wcfg := config.GetWorkerConfig(cfg, taskType)
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), taskType, camunda.WorkerOptions{
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       config.GetDuration(wcfg.Timeout),
		}, handler, obs, zapLog))
	}

	register(gm.TaskType, func() (camunda.JobHandler, error) {
		return gm.NewHandler(gm.LoadConfig(cfg), gm.Dependencies{
			Participants:  questionnaires,
			Directory:     directory,
			Matches:       matches,
			Cache:         resultCache,
			Selector:      sel,
			Observability: obs,
		}, log)
	})

	register(cc.TaskType, func() (camunda.JobHandler, error) {
		return cc.NewHandler(cc.LoadConfig(cfg), cc.Dependencies{
			Participants: questionnaires,
			Cache:        resultCache,
			Scorer:       scorer,
		}, log)
	})

	register(ums.TaskType, func() (camunda.JobHandler, error) {
		return ums.NewHandler(ums.LoadConfig(cfg), matches, resultCache, log)
	})

	register(ep.TaskType, func() (camunda.JobHandler, error) {
		return ep.NewHandler(ep.LoadConfig(cfg), ep.Dependencies{
			Participants: questionnaires,
			Vectors:      vectors,
			Embeddings:   embeddings,
		}, log)
	})

	register(fsp.TaskType, func() (camunda.JobHandler, error) {
		return fsp.NewHandler(fsp.LoadConfig(cfg), fsp.Dependencies{
			Participants:  questionnaires,
			Vectors:       vectors,
			Embeddings:    embeddings,
			Scorer:        scorer,
			Observability: obs,
		}, log)
	})

	zapLog.Info("All workers registered", zap.Int("count", len(workers)))

	// --- Health / metrics server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"workers": len(workers),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		rctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		checks := map[string]string{"postgres": "ok", "zeebe": "ok"}
		status := http.StatusOK
		if err := pg.Ping(rctx); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := zeebe.HealthCheck(rctx); err != nil {
			checks["zeebe"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		writeStatus(w, status, map[string]interface{}{"checks": checks})
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.Server.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("health server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, w := range workers {
		w.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("health server shutdown", zap.Error(err))
	}

	if err := zeebe.Close(); err != nil {
		zapLog.Error("error closing zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

func loadTable(path string) (*itemset.Table, error) {
	if path == "" {
		return itemset.DefaultTable()
	}
	return itemset.LoadTable(path)
}

func scoringPolicy(m config.MatchingConfig) scoring.Policy {
	p := scoring.DefaultPolicy()
	if m.AffinityWeight > 0 || m.StrategicWeight > 0 {
		p.AffinityWeight = m.AffinityWeight
		p.StrategicWeight = m.StrategicWeight
	}
	return p
}

func writeStatus(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
