package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/convograph/convograph/api/handlers"
	"github.com/convograph/convograph/config"
	"github.com/convograph/convograph/dialog"
	"github.com/convograph/convograph/faq"
	"github.com/convograph/convograph/internal/metrics"
	"github.com/convograph/convograph/internal/store"
	"github.com/convograph/convograph/nlu"
)

// Server wires the dialogue agent, its collaborators and the HTTP
// surface together.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	agent     *dialog.Agent
	snapStore *store.SnapshotStore
	redis     *redis.Client
	registry  *prometheus.Registry

	httpServer    *http.Server
	metricsServer *http.Server
}

// NewServer creates an unstarted server.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Start builds the agent and launches the HTTP and metrics listeners.
func (s *Server) Start() error {
	s.registry = prometheus.NewRegistry()
	collector := metrics.NewCollector(s.registry)

	interp, err := s.buildInterpreter()
	if err != nil {
		return fmt.Errorf("build interpreter: %w", err)
	}

	faqClient := faq.NewClient(faq.ClientConfig{
		KnowledgeBaseURL: s.cfg.KnowledgeBaseURL,
		QuestionBankURL:  s.cfg.QuestionBankURL,
	}, &http.Client{Timeout: s.cfg.HTTPTimeout}, s.logger)

	graphs, err := loadGraphDir(s.cfg.GraphDir)
	if err != nil {
		return fmt.Errorf("load graphs: %w", err)
	}
	s.logger.Info("graphs loaded",
		zap.Int("count", len(graphs)), zap.String("dir", s.cfg.GraphDir))

	s.agent = dialog.NewAgent(s.cfg.RobotCode, s.cfg, dialog.Collaborators{
		NLU:  interp,
		KB:   faqClient,
		Bank: faqClient,
	}, graphs, s.logger, collector)

	if s.cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     s.cfg.Redis.Addr,
			Password: s.cfg.Redis.Password,
			DB:       s.cfg.Redis.DB,
		})
		s.snapStore = store.NewSnapshotStore(s.redis, s.cfg.Redis.SnapshotTTL, s.logger)
		s.logger.Info("session persistence enabled", zap.String("addr", s.cfg.Redis.Addr))
	}

	if err := s.startHTTPServer(); err != nil {
		return err
	}
	s.startMetricsServer()

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

func (s *Server) buildInterpreter() (nlu.Interpreter, error) {
	if s.cfg.NLUDataPath == "" {
		s.logger.Info("no nlu data configured, running the empty interpreter")
		return nlu.EmptyInterpreter(s.cfg.RobotCode, s.logger), nil
	}
	raw, err := os.ReadFile(s.cfg.NLUDataPath)
	if err != nil {
		return nil, err
	}
	var data nlu.TrainingData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.cfg.NLUDataPath, err)
	}
	interp, err := nlu.NewRuleInterpreter(s.cfg.RobotCode, "local", data, s.logger)
	if err != nil {
		return nil, err
	}
	return interp, nil
}

// loadGraphDir reads every *.json under dir as one graph config, in
// filename order. Trigger scanning follows that order.
func loadGraphDir(dir string) ([]dialog.GraphConfig, error) {
	if dir == "" {
		return nil, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var graphs []dialog.GraphConfig
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var cfg dialog.GraphConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		graphs = append(graphs, cfg)
	}
	return graphs, nil
}

func (s *Server) startHTTPServer() error {
	sessionHandler := handlers.NewSessionHandler(s.agent, s.snapStore, s.logger)
	graphHandler := handlers.NewGraphHandler(s.agent, s.logger)
	healthHandler := handlers.NewHealthHandler(s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", healthHandler.HandleHealth)
	mux.HandleFunc("/version", healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("/api/v1/session/connect", sessionHandler.HandleConnect)
	mux.HandleFunc("/api/v1/session/message", sessionHandler.HandleMessage)
	mux.HandleFunc("/api/v1/session/close", sessionHandler.HandleClose)

	mux.HandleFunc("/api/v1/graph/update", graphHandler.HandleUpdate)
	mux.HandleFunc("/api/v1/graph/remove", graphHandler.HandleRemove)

	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
		RateLimiter(s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst),
	)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		Handler:      handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  2 * s.cfg.Server.ReadTimeout,
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("http server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) startMetricsServer() {
	if s.cfg.Server.MetricsPort <= 0 {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.metricsServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		Handler: mux,
	}
	go func() {
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// WaitForShutdown blocks until SIGINT/SIGTERM, then drains both
// listeners within the configured shutdown timeout.
func (s *Server) WaitForShutdown() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown failed", zap.Error(err))
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("metrics shutdown failed", zap.Error(err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("redis close failed", zap.Error(err))
		}
	}
}
