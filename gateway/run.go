// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

// Package gateway wires the Nexus platform services into one HTTP
// server: the LLM cost optimizer, the provider adapters, and the
// session layer.
package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"nexus/platform/optimizer"
	"nexus/platform/provider"
	"nexus/platform/provider/anthropic"
	"nexus/platform/provider/openai"
	"nexus/platform/session"
)

// Run is the exported entry point for the gateway service.
//
// It connects to Postgres, builds the optimizer, registers provider
// adapters, sets up HTTP routes, and starts the server. The function
// blocks until the server is shut down.
//
// Environment variables used:
//   - PORT: HTTP server port (default: 8080)
//   - DATABASE_URL or DATABASE_HOST/PORT/NAME/USER/PASSWORD/SSLMODE
//   - REDIS_URL: Redis endpoint for session persistence (optional)
//   - NEXUS_JWT_SECRET: HS256 secret for API auth (optional)
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY: provider credentials (optional)
func Run() {
	log.Println("Starting Nexus Gateway...")

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Database connected")

	opt := optimizer.New(optimizer.NewPostgresRepository(db))
	log.Println("Cost optimizer initialized")

	providers := provider.NewRegistry()
	registerProviders(providers, cfg)

	sessions := session.NewCache(cfg.SessionTTL)
	ctx := context.Background()
	startSessionJanitor(ctx, sessions, cfg.JanitorInterval)

	var store *session.RedisStore
	if cfg.RedisURL != "" {
		store, err = session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			log.Printf("Warning: Redis unavailable, sessions kept in-memory only: %v", err)
		} else if err := store.Ping(ctx); err != nil {
			log.Printf("Warning: Redis ping failed, sessions kept in-memory only: %v", err)
			store = nil
		} else {
			log.Println("Session Redis store connected")
		}
	} else {
		log.Println("REDIS_URL not set, sessions kept in-memory only")
	}

	chat := NewChatHandler(opt, providers, sessions, store)

	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler(db, opt, providers)).Methods("GET")
	r.HandleFunc("/metrics", metricsHandler(opt, sessions)).Methods("GET")
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	optimizer.NewHandler(opt).RegisterRoutes(r)

	r.HandleFunc("/api/v1/chat", chat.Chat).Methods("POST")
	r.HandleFunc("/api/v1/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		chat.GetSession(w, req, mux.Vars(req)["id"])
	}).Methods("GET")
	r.HandleFunc("/api/v1/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		chat.DeleteSession(w, req, mux.Vars(req)["id"])
	}).Methods("DELETE")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(metricsMiddleware(authMiddleware(cfg.JWTSecret)(r)))

	log.Printf("Nexus Gateway listening on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler))
}

func registerProviders(registry *provider.Registry, cfg *Config) {
	if cfg.AnthropicAPIKey != "" {
		p, err := anthropic.NewProvider(anthropic.Config{APIKey: cfg.AnthropicAPIKey})
		if err != nil {
			log.Printf("Warning: Anthropic provider disabled: %v", err)
		} else {
			_ = registry.Register(p)
			log.Println("Anthropic provider registered")
		}
	}
	if cfg.OpenAIAPIKey != "" {
		p, err := openai.NewProvider(openai.Config{APIKey: cfg.OpenAIAPIKey})
		if err != nil {
			log.Printf("Warning: OpenAI provider disabled: %v", err)
		} else {
			_ = registry.Register(p)
			log.Println("OpenAI provider registered")
		}
	}
	if len(registry.Names()) == 0 {
		log.Println("WARNING: no LLM providers configured, chat endpoint will fail")
	}
}

// startSessionJanitor evicts expired sessions on an interval and feeds
// the eviction counter.
func startSessionJanitor(ctx context.Context, sessions *session.Cache, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if evicted := sessions.Cleanup(); evicted > 0 {
					promSessionEvictions.Add(float64(evicted))
				}
			}
		}
	}()
}

// metricsHandler reports cache statistics as JSON. Prometheus series
// live on /prometheus; this is the human-readable summary.
func metricsHandler(opt *optimizer.Optimizer, sessions *session.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := sessions.GetStats()

		metrics := map[string]interface{}{
			"service":       "nexus-gateway",
			"timestamp":     time.Now().UTC(),
			"catalog_cache": opt.CatalogStats(),
			"session_cache": map[string]interface{}{
				"entries":      sessions.Len(),
				"hits":         stats.Hits,
				"misses":       stats.Misses,
				"evictions":    stats.Evictions,
				"hit_rate_pct": sessions.HitRate(),
			},
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(metrics); err != nil {
			log.Printf("Error encoding response: %v", err)
		}
	}
}

func healthHandler(db *sql.DB, opt *optimizer.Optimizer, providers *provider.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]bool{
			"database":  db.PingContext(r.Context()) == nil,
			"optimizer": opt.IsHealthy(r.Context()),
		}

		health := map[string]interface{}{
			"status":     "healthy",
			"service":    "nexus-gateway",
			"version":    "1.0.0",
			"timestamp":  time.Now().UTC(),
			"components": components,
			"providers":  providers.HealthSnapshot(),
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(health); err != nil {
			log.Printf("Error encoding response: %v", err)
		}
	}
}
