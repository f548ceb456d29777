package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"habitQuestAPI/handlers"
	"habitQuestAPI/internal/reward"
	"habitQuestAPI/middleware"
	"habitQuestAPI/services"
)

var (
	dbPool           *pgxpool.Pool
	userService      *services.UserService
	statsService     *services.StatsService
	streakService    *services.StreakService
	checklistService *services.ChecklistService
	challengeService *services.ChallengeService
	medalService     *services.MedalService
	goalService      *services.GoalService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to Postgres")

	rules := reward.DefaultRules()

	statsService = services.NewStatsService(dbPool)
	userService = services.NewUserService(dbPool, statsService)
	streakService = services.NewStreakService(dbPool, statsService, rules)
	checklistService = services.NewChecklistService(dbPool, statsService, streakService, rules)
	challengeService = services.NewChallengeService(dbPool)
	medalService = services.NewMedalService(dbPool, statsService)
	goalService = services.NewGoalService(dbPool, statsService, rules)

	middleware.InitPrometheus()
	services.InitMetrics()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	userHandler := handlers.NewUserHandler(userService, statsService)
	challengeHandler := handlers.NewChallengeHandler(challengeService, checklistService)
	medalHandler := handlers.NewMedalHandler(medalService)
	goalHandler := handlers.NewGoalHandler(goalService)
	webhookHandler := handlers.NewWebhookHandler(userService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "habitQuest-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	// -------------------------------------------------------------------------
	// API V1 SUBROUTER (REQUIRES AUTH HEADER)
	// -------------------------------------------------------------------------
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.ClerkAuthMiddleware)

	api.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	api.HandleFunc("/user/stats", userHandler.GetUserStats).Methods("GET")
	api.HandleFunc("/user/stats/reconcile", userHandler.GetReconciliation).Methods("GET")
	api.HandleFunc("/user/ledger", userHandler.GetLedger).Methods("GET")

	api.HandleFunc("/challenges", challengeHandler.GetChallenges).Methods("GET")
	api.HandleFunc("/challenges", challengeHandler.CreateChallenge).Methods("POST")
	api.HandleFunc("/challenges/{challengeID}/checklist", challengeHandler.GetChecklist).Methods("GET")
	api.HandleFunc("/challenges/{challengeID}/items/{itemID}/completion", challengeHandler.SetItemCompletion).Methods("POST")
	api.HandleFunc("/challenges/{challengeID}/progress", challengeHandler.GetProgressHistory).Methods("GET")

	api.HandleFunc("/medals", medalHandler.GetMedals).Methods("GET")
	api.HandleFunc("/medals/daily", medalHandler.AwardDailyMedal).Methods("POST")

	api.HandleFunc("/goals", goalHandler.GetGoals).Methods("GET")
	api.HandleFunc("/goals", goalHandler.CreateGoal).Methods("POST")
	api.HandleFunc("/goals/{goalID}/complete", goalHandler.CompleteGoal).Methods("POST")

	// CORS configuration
	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
