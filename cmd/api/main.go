// cmd/api/main.go
// Main entry point for the matching service
// This file bootstraps all components and starts the server

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	// Internal packages
	"github.com/imadgeboyega/kiekky-matching/internal/auth"
	"github.com/imadgeboyega/kiekky-matching/internal/cache"
	"github.com/imadgeboyega/kiekky-matching/internal/common/database"
	"github.com/imadgeboyega/kiekky-matching/internal/config"
	"github.com/imadgeboyega/kiekky-matching/internal/matching"
	"github.com/imadgeboyega/kiekky-matching/internal/notification"
	"github.com/imadgeboyega/kiekky-matching/internal/profile"
	"github.com/imadgeboyega/kiekky-matching/internal/scheduler"
)

var startTime = time.Now()

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("========================================")
	log.Println("🚀 Starting Kiekky Matching Engine")
	log.Println("========================================")

	// 1. Load environment variables
	log.Println("📁 Step 1: Loading .env file...")
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found (%v), using environment variables", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// 2. Load configuration
	log.Println("\n📋 Step 2: Loading configuration...")
	cfg := config.Load()
	log.Printf("✅ Configuration loaded")

	// 3. Validate configuration
	log.Println("\n✔️  Step 3: Validating configuration...")
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration validation failed:", err)
	}
	log.Println("✅ Configuration is valid")

	// 4. Connect to PostgreSQL
	log.Println("\n🗄️  Step 4: Connecting to PostgreSQL...")
	db, err := database.NewPostgresDBFromURL(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("❌ Failed to connect to PostgreSQL:", err)
	}
	defer db.Close()
	log.Println("✅ Connected to PostgreSQL successfully")

	// 5. Run database migrations
	log.Println("\n🔨 Step 5: Running database migrations...")
	if err := database.RunMigrations(context.Background(), db); err != nil {
		log.Fatal("❌ Failed to run migrations:", err)
	}
	log.Println("✅ Database migrations completed")

	// 6. Score cache
	log.Println("\n📮 Step 6: Initializing score cache...")
	var store cache.Store
	if cfg.CacheBackend == "redis" {
		var redisClient *redis.Client
		redisClient, err = database.NewRedisClientFromURL(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable (%v), falling back to in-memory cache", err)
			store = cache.NewMemoryStore()
		} else {
			defer redisClient.Close()
			store = cache.NewRedisStore(redisClient)
			log.Println("✅ Connected to Redis successfully")
		}
	} else {
		store = cache.NewMemoryStore()
		log.Println("✅ Using in-memory cache")
	}
	scoreCache := cache.New(store, cache.TTLs{
		Compatibility: cfg.Matching.CompatibilityTTL,
		Profile:       cfg.Matching.ProfileTTL,
		Preferences:   cfg.Matching.PreferencesTTL,
	})

	// 7. Notifications
	log.Println("\n🔔 Step 7: Initializing notifications...")
	hub := notification.NewHub(cfg.CORSOrigins)
	go hub.Run()
	notificationRepo := notification.NewPostgresRepository(db)
	dispatcher := notification.NewDispatcher(notificationRepo, hub)
	notificationHandler := notification.NewHandler(notificationRepo)
	log.Println("✅ Notifications initialized")

	// 8. Matching engine
	log.Println("\n💘 Step 8: Initializing matching engine...")
	engine := matching.NewEngine(matching.Dependencies{
		Profiles:  profile.NewPostgresRepository(db),
		Matches:   matching.NewPostgresRepository(db),
		Alerts:    matching.NewPostgresAlertRepository(db),
		Cache:     scoreCache,
		Notifier:  dispatcher,
		Chemistry: matching.NewRandomChemistry(cfg.Matching.ChemistrySeed, cfg.Matching.ChemistryMax),
	}, cfg.Matching, cfg.Alerts)
	matchingHandler := matching.NewHandler(engine)
	log.Println("✅ Matching engine initialized")

	// 9. Background maintenance
	log.Println("\n⏰ Step 9: Starting background maintenance...")
	var supervisor *scheduler.Supervisor
	if cfg.Maintenance.Enabled {
		maintainer := matching.NewMaintainer(engine, cfg.Maintenance, cfg.Matching.ActiveWindow)
		supervisor = scheduler.NewSupervisor(maintainer.Tasks()...)
		supervisor.Start(context.Background())
		log.Println("✅ Background maintenance started")
	} else {
		log.Println("⚠️  Background maintenance disabled")
	}

	// 10. Setup routes
	log.Println("\n🛣️  Step 10: Setting up routes...")
	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)

	api := chi.NewRouter()
	matching.RegisterRoutes(api, matchingHandler, authMiddleware)
	notification.RegisterRoutes(api, notificationHandler, authMiddleware)

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck(db)).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.Handle("/ws", authMiddleware.Authenticate(http.HandlerFunc(hub.ServeWS)))
	router.PathPrefix("/api/").Handler(api)
	router.Use(loggingMiddleware)
	log.Println("✅ Routes registered")

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	// 11. Create and start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Println("\n========================================")
		log.Printf("🚀 Server starting on http://localhost%s", srv.Addr)
		log.Printf("🌍 Environment: %s", cfg.Environment)
		log.Println("========================================")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("❌ Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n⚠️  Shutdown signal received...")

	if supervisor != nil {
		log.Println("   - Stopping background maintenance...")
		supervisor.Stop()
	}

	log.Println("   - Shutting down notification hub...")
	hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server forced to shutdown:", err)
	}

	log.Println("✅ Server exited gracefully")
}

// healthCheck returns server health status
func healthCheck(db interface{ PingContext(context.Context) error }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		if err := db.PingContext(ctx); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
			"uptime":    time.Since(startTime).String(),
		})
	}
}

// loggingMiddleware logs every request with its status and duration
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("→ %s %s from %s", r.Method, r.RequestURI, r.RemoteAddr)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		log.Printf("← %s %s [%d] %v", r.Method, r.RequestURI, wrapped.statusCode, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the wrapper
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}
