package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"lexgate/internal/auth"
	"lexgate/internal/cache"
	"lexgate/internal/config"
	"lexgate/internal/credits"
	"lexgate/internal/handler"
	"lexgate/internal/instance"
	"lexgate/internal/llm"
	"lexgate/internal/memory"
	"lexgate/internal/middleware"
	"lexgate/internal/normative"
	"lexgate/internal/orchestrator"
	"lexgate/internal/repository/postgres"
	"lexgate/internal/urlvalidator"
	"lexgate/internal/webtool"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	var logOutput io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOutput = io.MultiWriter(os.Stdout, logFile)
	}
	logger := slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("gateway starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"instances_root", cfg.InstancesRoot,
	)

	// Bearer-token verification against the identity provider's JWKS.
	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	// User/credit store.
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()
	logger.Info("database connected", "max_conns", 25, "min_conns", 5)

	userRepo := postgres.NewUserRepository(postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	})

	// Response cache; absence of an address degrades to always-miss.
	var responseCache cache.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, time.Duration(cfg.CacheTTL)*time.Second, logger)
		if err != nil {
			logger.Warn("redis unavailable, caching disabled", "addr", cfg.RedisAddr, "error", err)
			responseCache = cache.NewNoopCache()
		} else {
			responseCache = redisCache
			defer redisCache.Close()
			logger.Info("response cache connected", "addr", cfg.RedisAddr, "ttl_seconds", cfg.CacheTTL)
		}
	} else {
		responseCache = cache.NewNoopCache()
		logger.Info("no cache backend configured, running without response cache")
	}

	// Normative citation store, read-only for the whole process lifetime.
	var resolver orchestrator.CitationResolver
	if cfg.NormativeDBPath != "" {
		store, err := normative.OpenSQLite(cfg.NormativeDBPath)
		if err != nil {
			log.Fatalf("Failed to open normative database: %v", err)
		}
		defer store.Close()
		resolver = normative.NewResolver(store, logger)
		logger.Info("normative store opened", "path", cfg.NormativeDBPath)
	} else {
		logger.Warn("no normative database configured, citation annexes disabled")
	}

	pricing, err := config.NewPricingRegistry(cfg.PricingPath)
	if err != nil {
		log.Fatalf("Failed to load pricing table: %v", err)
	}

	registry := instance.NewRegistry(cfg.InstancesRoot, logger)
	memoryStore := memory.NewStore(cfg.MemoryRoot, logger)
	creditManager := credits.NewManager(userRepo, pricing, logger)
	validator := urlvalidator.New(logger)
	provider := llm.NewOpenAIProvider(cfg.OpenAIAPIKey, validator, logger)
	navigator := webtool.NewNavigator(logger)
	sink := llm.NewVectorStoreSink(cfg.OpenAIAPIKey, logger)

	orch := orchestrator.New(orchestrator.Config{
		Tenants:         registry,
		Memory:          memoryStore,
		Cache:           responseCache,
		Credits:         creditManager,
		Users:           userRepo,
		Provider:        provider,
		Resolver:        resolver,
		Navigator:       navigator,
		Sink:            sink,
		DefaultInstance: cfg.DefaultInstance,
		Logger:          logger,
	})

	instanceHandler := handler.NewInstanceHandler(registry, logger)
	turnHandler := handler.NewTurnHandler(orch, time.Duration(cfg.TurnTimeout)*time.Second, logger)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns).
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", instanceHandler.HealthCheck)
	mux.HandleFunc("GET /api/instances", instanceHandler.ListInstances)
	mux.HandleFunc("GET /api/instances/{id}", instanceHandler.GetInstance)
	mux.HandleFunc("POST /api/instances/{id}/turns", turnHandler.RunTurn)

	// Middleware chain: CORS → Recovery → Auth → Routes.
	var h http.Handler = mux
	h = middleware.AuthMiddleware(jwtVerifier)(h)
	h = middleware.Recovery(logger)(h)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
