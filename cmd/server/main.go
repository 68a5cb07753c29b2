package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liamcoop/underwriting/analysis"
	"github.com/liamcoop/underwriting/filterquery"
	"github.com/liamcoop/underwriting/internal/config"
	"github.com/liamcoop/underwriting/internal/logger"
	"github.com/liamcoop/underwriting/property"
	"github.com/liamcoop/underwriting/underwriting"
	_ "github.com/lib/pq"
	"github.com/rs/cors"
)

type Server struct {
	cfg        *config.Config
	db         *sql.DB
	properties property.Store
	analysis   *analysis.Service
	filters    *filterquery.Builder
	router     *chi.Mux
}

// NewServer wires the HTTP API over already-constructed dependencies. db may be nil
// when the in-memory backend is used.
func NewServer(cfg *config.Config, db *sql.DB, properties property.Store, svc *analysis.Service) (*Server, error) {
	filters, err := filterquery.NewBuilder(property.FilterSchema(), cfg.MaxPageSize)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		db:         db,
		properties: properties,
		analysis:   svc,
		filters:    filters,
	}

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.cfg.SlowRequest))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", userIDHeader},
	}).Handler)

	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/metrics", s.handleMetrics)

	r.Route("/api/v1/properties", func(r chi.Router) {
		r.Get("/", s.handleListProperties)
		r.Get("/within/{distance}/center/{latlng}/unit/{unit}", s.handlePropertiesWithin)
		r.Get("/{id}", s.handleGetProperty)
	})

	r.Route("/api/v1/analysis", func(r chi.Router) {
		r.Get("/roi/{propertyId}", s.handleROI)
		r.Get("/max-offer/{propertyId}", s.handleMaxOffer)
		r.Get("/overview", s.handleMarketOverview)

		r.Post("/history", s.handleSaveAnalysis)
		r.Get("/history", s.handleListHistory)
		r.Delete("/history/{analysisId}", s.handleDeleteAnalysis)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs each request once it completes and counts the slow ones.
func requestLogger(slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", elapsed.String(),
				"requestId", middleware.GetReqID(r.Context()),
			}
			if slow > 0 && elapsed > slow {
				logger.WarnSlowRequest()
				logger.Warn("slow request", args...)
				return
			}
			logger.Debug("request", args...)
		})
	}
}

// newStores builds the property and history stores for the configured backend.
func newStores(ctx context.Context, cfg *config.Config) (*sql.DB, property.Store, analysis.HistoryStore, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		store, err := property.NewInMemoryStore()
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.SeedFile != "" {
			n, err := property.SeedFromFile(ctx, store, cfg.SeedFile)
			if err != nil {
				return nil, nil, nil, err
			}
			logger.Info("Seeded in-memory store", "properties", n, "file", cfg.SeedFile)
		}
		return nil, store, analysis.NewInMemoryHistoryStore(), nil

	default:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return db, property.NewPostgresStore(db), analysis.NewPostgresHistoryStore(db), nil
	}
}

func loadModel(path string) (*underwriting.Model, error) {
	cfg := underwriting.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = underwriting.LoadConfig(path); err != nil {
			return nil, err
		}
		logger.Info("Loaded underwriting config", "file", path)
	}
	return underwriting.NewModel(cfg)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}

	model, err := loadModel(cfg.UnderwritingConfig)
	if err != nil {
		logger.Fatal("Failed to create underwriting model", "error", err)
	}

	db, properties, history, err := newStores(context.Background(), cfg)
	if err != nil {
		logger.Fatal("Failed to create stores", "backend", cfg.StoreBackend, "error", err)
	}
	if db != nil {
		defer db.Close()
	}

	server, err := NewServer(cfg, db, properties, analysis.NewService(properties, history, model))
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "backend", cfg.StoreBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}
