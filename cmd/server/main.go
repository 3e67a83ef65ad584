package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/spf13/afero"

	"github.com/liamcoop/tablerules/container"
	"github.com/liamcoop/tablerules/history"
	"github.com/liamcoop/tablerules/internal/config"
	"github.com/liamcoop/tablerules/internal/logger"
	"github.com/liamcoop/tablerules/transform"
)

type Server struct {
	db        *sql.DB
	manager   *container.Manager
	service   *transform.Service
	workbench *workbench
	router    *chi.Mux
}

// NewServer wires a server around svc. db may be nil.
func NewServer(db *sql.DB, svc *transform.Service) *Server {
	s := &Server{
		db:        db,
		manager:   svc.Manager(),
		service:   svc,
		workbench: &workbench{},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Workbench
	r.Get("/", s.handleWorkbench)
	r.Route("/workbench", func(r chi.Router) {
		r.Post("/csv", s.handleWorkbenchCSV)
		r.Post("/rules", s.handleWorkbenchRules)
		r.Post("/transform", s.handleWorkbenchTransform)
	})

	r.Get("/api/v1/health", s.handleHealth)
	r.Post("/api/v1/transform", s.handleTransform)

	r.Route("/api/v1/rulesets", func(r chi.Router) {
		r.Get("/", s.handleListRuleSets)
		r.Post("/", s.handleBuildRuleSet)

		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetRuleSet)
			r.Delete("/", s.handleDeleteRuleSet)
			r.Post("/execute", s.handleExecute)
		})
	})

	r.Route("/api/v1/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func openDatabase(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func openHistory(cfg config.Server, db *sql.DB) (history.Store, error) {
	switch {
	case db != nil:
		return history.NewPostgresStore(db), nil
	case cfg.HistoryPath != "":
		return history.OpenBoltStore(cfg.HistoryPath)
	default:
		return history.NoopStore{}, nil
	}
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(afero.NewOsFs(), *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Setup(cfg.LoggerOptions()); err != nil {
		logger.Warn("logger setup incomplete", "error", err)
	}

	ctx := context.Background()

	var db *sql.DB
	if cfg.Server.DatabaseURL != "" {
		if db, err = openDatabase(ctx, cfg.Server.DatabaseURL); err != nil {
			logger.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	manager := container.NewManager(db)
	if err := manager.LoadAll(ctx); err != nil {
		logger.Error("failed to load rulesets", "error", err)
		os.Exit(1)
	}

	store, err := openHistory(cfg.Server, db)
	if err != nil {
		logger.Error("failed to open run history", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	server := NewServer(db, transform.NewService(manager, store))

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", httpServer.Addr, "rulesets", len(manager.List()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown error: %v\n", err)
	}

	logger.Info("server stopped")
}
