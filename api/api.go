package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"argus/config"
	"argus/detect"
	"argus/storage"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiterEntry holds a per-client rate limiter with last seen time
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// API holds the HTTP server exposing rule management and rule testing.
type API struct {
	router         *mux.Router
	server         *http.Server
	rules          storage.RuleStore
	cache          *detect.PredicateCache
	matcher        *detect.Matcher
	config         *config.Config
	logger         *zap.SugaredLogger
	validate       *validator.Validate
	rateLimiters   map[string]*rateLimiterEntry
	rateLimitersMu sync.Mutex
	stopCh         chan struct{}
}

// NewAPI creates the API server over a rule store and a shared predicate
// cache.
func NewAPI(rules storage.RuleStore, cache *detect.PredicateCache, cfg *config.Config, logger *zap.SugaredLogger) *API {
	a := &API{
		router:       mux.NewRouter(),
		rules:        rules,
		cache:        cache,
		matcher:      detect.NewMatcher(logger),
		config:       cfg,
		logger:       logger,
		validate:     validator.New(),
		rateLimiters: make(map[string]*rateLimiterEntry),
		stopCh:       make(chan struct{}),
	}
	a.setupRoutes()
	go a.cleanupRateLimiters()
	return a
}

func (a *API) setupRoutes() {
	a.router.Use(a.requestIDMiddleware)
	a.router.Use(a.loggingMiddleware)
	a.router.Use(a.rateLimitMiddleware)
	a.router.Use(a.bodyLimitMiddleware)

	a.router.HandleFunc("/health", a.healthCheck).Methods("GET")
	a.router.HandleFunc("/api/v1/rules", a.listRules).Methods("GET")
	a.router.HandleFunc("/api/v1/rules", a.createRule).Methods("POST")
	a.router.HandleFunc("/api/v1/rules/test", a.testRule).Methods("POST")
	a.router.HandleFunc("/api/v1/rules/{id}", a.getRule).Methods("GET")
	a.router.HandleFunc("/api/v1/rules/{id}", a.updateRule).Methods("PUT")
	a.router.HandleFunc("/api/v1/rules/{id}", a.deleteRule).Methods("DELETE")
	a.router.HandleFunc("/api/v1/rules/{id}/test", a.testStoredRule).Methods("POST")
	a.router.Handle("/metrics", promhttp.Handler())
}

// Handler exposes the router for tests.
func (a *API) Handler() http.Handler {
	return a.router
}

// Start runs the server until Stop or a listener error.
func (a *API) Start() error {
	a.server = &http.Server{
		Addr:         a.config.ListenAddr(),
		Handler:      a.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	a.logger.Infow("API server listening", "addr", a.server.Addr)
	return a.server.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (a *API) Stop(ctx context.Context) error {
	close(a.stopCh)
	if a.server != nil {
		return a.server.Shutdown(ctx)
	}
	return nil
}
