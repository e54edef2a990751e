package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/joho/godotenv/autoload"

	"service-marketplace/internal/domain"
	"service-marketplace/internal/embedding"
	"service-marketplace/internal/infrastructure/repository"
	"service-marketplace/internal/models"
	"service-marketplace/internal/prompts"
	"service-marketplace/internal/queue"
	"service-marketplace/internal/reviewer"
	"service-marketplace/internal/search"
	"service-marketplace/internal/worker"
	"service-marketplace/pkg/audit"
	"service-marketplace/pkg/config"
	"service-marketplace/pkg/container"
	"service-marketplace/pkg/database"
	"service-marketplace/pkg/health"
	"service-marketplace/pkg/logging"
	metricsPkg "service-marketplace/pkg/metrics"
	"service-marketplace/pkg/monitoring"
)

const defaultPrefetch = 10

func defaultWorkers(cfg *config.Config) int {
	if cfg.WorkerCount > 0 {
		return cfg.WorkerCount
	}
	return 4
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("config validation: ", err)
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:       logging.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
		Output:      "stdout",
		EnableFile:  cfg.EnableFileLogging,
		FilePath:    cfg.LogFile,
		MaxSize:     100,
		MaxBackups:  5,
		MaxAge:      30,
		EnableAsync: true,
	})
	if err != nil {
		log.Fatal("logger init: ", err)
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitoring.EnableProfiling(cfg.Env == "development")

	// Build container and register singletons
	c := container.New()
	c.MustProvide(func() *config.Config { return cfg }, true)
	c.MustProvide(func() *logging.Logger { return logger }, true)
	c.MustProvide(func(cfg *config.Config) (*database.DB, error) {
		return database.NewWithConfig(ctx, cfg)
	}, true)
	c.MustProvide(func(cfg *config.Config, l *logging.Logger) (*queue.Broker, error) {
		return queue.NewBroker(cfg.AmqpURL, cfg.RetryBudget, defaultPrefetch, l)
	}, true)
	c.MustProvide(func(cfg *config.Config) (audit.Store, error) {
		if cfg.AuditDSN == "" {
			return audit.NopStore{}, nil
		}
		return audit.NewSQLStore(cfg.AuditDSN)
	}, true)
	c.MustProvide(func(cfg *config.Config) (*prompts.Manager, error) {
		pm, err := prompts.NewManager()
		if err != nil {
			return nil, err
		}
		if cfg.PromptDir != "" {
			if err := pm.LoadOverrides(cfg.PromptDir); err != nil {
				return nil, err
			}
		}
		return pm, nil
	}, true)
	c.MustProvide(func(cfg *config.Config, pm *prompts.Manager, l *logging.Logger) *reviewer.Reviewer {
		return reviewer.New(cfg, pm, l)
	}, true)
	c.MustProvide(func(cfg *config.Config, l *logging.Logger) *embedding.Generator {
		return embedding.New(cfg, l)
	}, true)

	// Repositories and unit of work
	c.MustProvide(func(db *database.DB) domain.UserRepository { return repository.NewUserRepository(db) }, true)
	c.MustProvide(func(db *database.DB) domain.PostRepository { return repository.NewPostRepository(db) }, true)
	c.MustProvide(func(db *database.DB) domain.EventRepository { return repository.NewEventRepository(db) }, true)

	var (
		db      *database.DB
		broker  *queue.Broker
		auditSt audit.Store
		rev     *reviewer.Reviewer
		embGen  *embedding.Generator
		users   domain.UserRepository
		posts   domain.PostRepository
		events  domain.EventRepository
	)
	for _, target := range []interface{}{&db, &broker, &auditSt, &rev, &embGen, &users, &posts, &events} {
		if err := c.Resolve(target); err != nil {
			logger.Error("dependency resolve failed", err)
			os.Exit(1)
		}
	}

	if err := db.EnsureIndexes(ctx); err != nil {
		logger.Error("index setup failed", err)
		os.Exit(1)
	}

	searchEng := search.NewEngine(db, embGen, cfg, logger)

	// Worker pools; per-queue overrides come from the queues file.
	qset, err := config.LoadQueueSettings(cfg.QueuesFile)
	if err != nil {
		logger.Error("queue settings load failed", err)
		os.Exit(1)
	}
	specFor := func(name string, h queue.Handler) worker.QueueSpec {
		w, retry, prefetch := qset[name].Apply(defaultWorkers(cfg), cfg.RetryBudget, defaultPrefetch)
		return worker.QueueSpec{Name: name, Workers: w, RetryBudget: retry, Prefetch: prefetch, Handler: h}
	}
	specs := []worker.QueueSpec{
		specFor(queue.QueueContentReview, worker.NewContentReviewHandler(posts, rev, logger).Handle),
		specFor(queue.QueueEventReview, worker.NewEventReviewHandler(events, rev, logger).Handle),
		specFor(queue.QueueEmbedding, worker.NewEmbeddingHandler(users, embGen, logger).Handle),
	}
	engine := worker.NewEngine(broker, auditSt, specs, worker.DefaultConfig(), logger)
	if err := engine.Start(); err != nil {
		logger.Error("worker engine start failed", err)
		os.Exit(1)
	}
	logger.Info("worker engine started",
		logging.Int("queues", len(specs)),
		logging.Int("workers", engine.GetStats().WorkerCount))

	// Health checks
	hm := health.NewHealthManager(health.DefaultHealthConfig(), logger)
	hm.RegisterChecker(health.NewPingHealthChecker(db, "mongodb"))
	hm.RegisterChecker(health.NewPingHealthChecker(broker, "rabbitmq"))
	hm.RegisterChecker(health.NewWorkerHealthChecker("workers", func() interface{} { return engine.GetStats() }))

	// Config hot-reload: worker counts are re-applied live; changes that
	// cannot be applied live are logged so operators know a restart is
	// needed.
	cw := config.NewWatcher(time.Duration(cfg.ConfigReloadIntervalSeconds) * time.Second)
	cw.Start()
	go func() {
		for chg := range cw.Subscribe() {
			if chg.Err != nil {
				logger.Error("config reload failed", chg.Err)
				continue
			}
			logger.Info("config reloaded", logging.String("fields", strconv.Itoa(len(chg.Fields))))
			counts := make(map[string]int, len(specs))
			for _, s := range specs {
				w, _, _ := qset[s.Name].Apply(defaultWorkers(chg.New), chg.New.RetryBudget, defaultPrefetch)
				counts[s.Name] = w
			}
			engine.ApplyConfig(counts)
		}
	}()

	// Ops HTTP surface
	router := mux.NewRouter()
	var reqMetrics *monitoring.Metrics
	if cfg.MetricsEnabled {
		reqMetrics = monitoring.NewMetrics(512)
		router.Use(monitoring.Middleware(reqMetrics))
		router.Handle(cfg.MetricsPath, metricsPkg.Handler()).Methods("GET")
		router.Handle("/metrics.json", monitoring.MetricsHandler(reqMetrics)).Methods("GET")
	}
	router.HandleFunc(cfg.HealthCheckPath, healthHandler(hm)).Methods("GET")
	router.HandleFunc("/stats", statsHandler(engine, rev)).Methods("GET")
	router.HandleFunc("/audit", auditHandler(auditSt)).Methods("GET")
	router.HandleFunc("/search", searchHandler(searchEng)).Methods("GET")
	router.HandleFunc("/requeue", requeueHandler(broker)).Methods("POST")

	server := &http.Server{Addr: ":" + cfg.OpsPort, Handler: router}
	go func() {
		logger.Info("ops server listening", logging.String("port", cfg.OpsPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server failed", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	if err := engine.Stop(30 * time.Second); err != nil {
		logger.Error("worker engine shutdown", err)
	}
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := server.Shutdown(shutCtx); err != nil {
		logger.Error("ops server shutdown", err)
	}
	cw.Close()
	if err := broker.Close(); err != nil {
		logger.Error("broker close", err)
	}
	if err := auditSt.Close(); err != nil {
		logger.Error("audit store close", err)
	}
	if err := db.Close(shutCtx); err != nil {
		logger.Error("database close", err)
	}
	logger.Info("shutdown complete")
}

func healthHandler(hm *health.HealthManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sys := hm.CheckAll(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if sys.Status != health.HealthStatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(sys)
	}
}

func statsHandler(engine *worker.Engine, rev *reviewer.Reviewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokens, requests, uptime := rev.GetUsageStats()
		resp := map[string]interface{}{
			"worker": engine.GetStats(),
			"openai": map[string]interface{}{
				"total_tokens":   tokens,
				"total_requests": requests,
				"uptime":         uptime.String(),
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func auditHandler(store audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			recs []audit.Record
			err  error
		)
		if jobID := r.URL.Query().Get("job"); jobID != "" {
			recs, err = store.ListByJob(r.Context(), jobID)
		} else {
			limit := 100
			if v := r.URL.Query().Get("limit"); v != "" {
				if n, perr := strconv.Atoi(v); perr == nil && n > 0 {
					limit = n
				}
			}
			recs, err = store.Recent(r.Context(), limit)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recs)
	}
}

// requeueHandler lets an operator re-run a review or embedding job for a
// single entity, e.g. after an upstream outage drained the dead queue.
func requeueHandler(enq queue.Enqueuer) http.HandlerFunc {
	known := map[string]bool{
		queue.QueueContentReview: true,
		queue.QueueEventReview:   true,
		queue.QueueEmbedding:     true,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		queueName := r.URL.Query().Get("queue")
		entityID := r.URL.Query().Get("entity")
		if !known[queueName] || entityID == "" {
			http.Error(w, "queue and entity are required", http.StatusBadRequest)
			return
		}
		jobID, err := enq.Enqueue(r.Context(), queueName, entityID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"job_id": jobID})
	}
}

func searchHandler(eng *search.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		p := search.Params{
			Query:    q.Get("q"),
			Category: q.Get("category"),
		}
		if v := q.Get("limit"); v != "" {
			p.Limit, _ = strconv.Atoi(v)
		}
		if v := q.Get("offset"); v != "" {
			p.Offset, _ = strconv.Atoi(v)
		}
		if v := q.Get("radius_km"); v != "" {
			p.RadiusKm, _ = strconv.ParseFloat(v, 64)
		}
		lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
		lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
		if latErr == nil && lngErr == nil {
			p.Location = models.NewGeoPoint(lng, lat)
		}
		resp, err := eng.Search(r.Context(), p)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
