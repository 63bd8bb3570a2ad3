package main

import (
	"context"
	"encoding/json"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/fundsight/backend/src/config"
	"github.com/username/fundsight/backend/src/database"
	"github.com/username/fundsight/backend/src/embedding"
	"github.com/username/fundsight/backend/src/handlers"
	"github.com/username/fundsight/backend/src/logger"
	"github.com/username/fundsight/backend/src/parsers"
	"github.com/username/fundsight/backend/src/pdf"
	"github.com/username/fundsight/backend/src/processors"
	"github.com/username/fundsight/backend/src/security"
	"github.com/username/fundsight/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			log.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			log.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	log.Info("Fundsight backend server starting...")

	log.Info("Initializing database...", "path", cfg.DatabasePath)
	db, err := database.InitDB(cfg.DatabasePath, log)
	if err != nil {
		log.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("Database initialized successfully.")

	log.Info("Initializing metrics cache...")
	metricsCache := cache.New(cfg.MetricsCacheExpiry, cfg.MetricsCacheCleanup)

	log.Info("Initializing embedding client...", "embeddingModel", cfg.EmbeddingModel, "answerModel", cfg.AnswerModel)
	embeddingClient, err := embedding.NewClient(context.Background(), cfg.EmbeddingModel, cfg.AnswerModel, log)
	if err != nil {
		log.Error("Failed to initialize embedding client", "error", err)
		os.Exit(1)
	}

	log.Info("Initializing parsers and services...")
	fieldExtractor := parsers.NewFieldExtractor(log)
	grammar := parsers.NewTransactionGrammar(fieldExtractor, log)
	identityExtractor := parsers.NewFundIdentityExtractor(log)
	pdfExtractor := pdf.NewExtractor(log)

	metricsCalculator := processors.NewMetricsCalculator(db, metricsCache, log)

	ingestionService := services.NewIngestionService(
		db, pdfExtractor, embeddingClient,
		identityExtractor, grammar, metricsCalculator,
		cfg.ChunkSize, cfg.ChunkOverlap,
		log,
	)
	vectorStore := services.NewVectorStore(db, embeddingClient, log)
	queryService := services.NewQueryService(vectorStore, embeddingClient, log)

	authService := security.NewAuthService(cfg.APIAuthSecret, log)

	documentHandler := handlers.NewDocumentHandler(cfg, db, ingestionService, log)
	metricsHandler := handlers.NewMetricsHandler(metricsCalculator, log)
	queryHandler := handlers.NewQueryHandler(queryService, log)

	log.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/documents/process", documentHandler.HandleProcessDocument)
	apiRouter.HandleFunc("GET /api/funds/{id}/metrics", metricsHandler.HandleGetFundMetrics)
	apiRouter.HandleFunc("GET /api/funds/{id}/metrics/{metric}/breakdown", metricsHandler.HandleGetCalculationBreakdown)
	apiRouter.HandleFunc("POST /api/query", queryHandler.HandleQuery)

	rootMux.Handle("/api/", authService.Middleware(apiRouter))

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Fundsight backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				log.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	log.Info("Applying global middleware...")
	finalHandler := enableCORS(log, rateLimitMiddleware(log, rootMux))

	serverAddr := ":" + cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		log.Info("Server stopped gracefully.")
	}
}
