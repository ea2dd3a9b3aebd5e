// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"

	"github.com/vialibre/crosshub/api"
	"github.com/vialibre/crosshub/internal/alerting"
	"github.com/vialibre/crosshub/internal/auth"
	"github.com/vialibre/crosshub/internal/broadcast"
	"github.com/vialibre/crosshub/internal/config"
	"github.com/vialibre/crosshub/internal/database"
	"github.com/vialibre/crosshub/internal/detector"
	"github.com/vialibre/crosshub/internal/hubservice"
	"github.com/vialibre/crosshub/internal/pipeline"
	"github.com/vialibre/crosshub/internal/ratelimit"
	"github.com/vialibre/crosshub/internal/repository/postgres"
	"github.com/vialibre/crosshub/internal/rules"
)

// Server represents our HTTP server
type Server struct {
	config *config.Config
	srv    *http.Server

	hub        *broadcast.Hub
	ruleEngine *rules.Engine
	db         database.DB
	rdb        *redis.Client
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config: cfg,
		srv:    srv,
	}
}

// Start wires all components together and begins listening for requests.
// It blocks until an interrupt signal arrives and the server has drained.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.db = initDB(s.config.Database)
	s.rdb = initRedis(s.config.Redis)

	// Repositories
	crossings := postgres.NewCrossingRepository(s.db)
	readings := postgres.NewReadingRepository(s.db)
	events := postgres.NewStateEventRepository(s.db)
	alerts := postgres.NewAlertRepository(s.db)
	ruleRepo := postgres.NewRuleRepository(s.db)
	work := postgres.NewWorkRepository(s.db)
	operators := postgres.NewOperatorRepository(s.db)

	// Processing engines
	det := detector.New(readings, events, s.config.Pipeline.DebounceWindow)
	alertEngine := alerting.New(alerts)
	s.ruleEngine = rules.New(crossings, readings, ruleRepo, work, alerts, s.config.Pipeline.ReadingInterval)

	// Realtime distribution
	s.hub = broadcast.NewHub(s.config.Socket.OutboundQueueSize)
	go s.hub.Run(ctx)

	pipe := pipeline.New(crossings, readings, det, alertEngine, s.ruleEngine, s.hub, s.config.Pipeline.StoreTimeout)

	authenticator := auth.New(s.config.Auth.JWTSecret, s.config.Auth.Issuer, operators)
	limiter := ratelimit.New(s.rdb,
		s.config.Socket.MaxConnectionsPerIP,
		s.config.Socket.MaxEventsPerMinute,
		s.config.Socket.RateLimitWindow)
	socket := broadcast.NewServer(s.hub, authenticator, limiter, s.config.Socket, s.config.Auth.HandshakeTimeout)

	svc := hubservice.New(crossings, readings, events, alerts, operators, s.hub)
	if err := svc.Validate(); err != nil {
		return fmt.Errorf("hub service wiring: %w", err)
	}

	router := api.NewRouter(svc, pipe, socket)
	router.SetHealthCheck(s.handleHealth())
	s.srv.Handler = s.withMiddleware(router)

	go s.runRuleSweep(ctx)

	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown(cancel)
}

// withMiddleware stacks recovery, CORS and request logging around the router.
func (s *Server) withMiddleware(h http.Handler) http.Handler {
	origins := s.config.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(h)
	h = handlers.LoggingHandler(os.Stdout, h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	return h
}

// runRuleSweep periodically re-evaluates date-scoped maintenance rules so
// seasonal work gets scheduled even for crossings that stop reporting.
func (s *Server) runRuleSweep(ctx context.Context) {
	if s.config.Pipeline.RuleSweepInterval <= 0 {
		nuts.L.Warnf("[Server] Rule sweep disabled, interval is %v", s.config.Pipeline.RuleSweepInterval)
		return
	}

	ticker := time.NewTicker(s.config.Pipeline.RuleSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := s.ruleEngine.EvaluateDue(ctx)
			if err != nil {
				nuts.L.Errorf("[Server] Rule sweep failed: %v", err)
				continue
			}
			if len(result.Work) > 0 || len(result.Alerts) > 0 {
				nuts.L.Infof("[Server] Rule sweep scheduled %d work orders, %d alerts",
					len(result.Work), len(result.Alerts))
			}
		}
	}
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func (s *Server) waitForShutdown(cancel context.CancelFunc) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down server...")
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancelTimeout()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	if err := s.rdb.Close(); err != nil {
		nuts.L.Warnf("[Server] Error closing redis client: %v", err)
	}
	if err := s.db.Close(); err != nil {
		nuts.L.Warnf("[Server] Error closing database: %v", err)
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

// handleHealth returns a simple health check handler
func (s *Server) handleHealth() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","version":"` + nuts.GetVersion() + `"}`))
	}
}

func initDB(cfg config.PostgresConfig) database.DB {
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		nuts.L.Fatalf("[Server] Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		nuts.L.Fatalf("[Server] Failed to ping database: %v", err)
	}

	if err := database.Migrate(ctx, db); err != nil {
		nuts.L.Fatalf("[Server] Failed to run migrations: %v", err)
	}
	return db
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		nuts.L.Fatalf("[Server] Failed to ping redis: %v", err)
	}
	return rdb
}
