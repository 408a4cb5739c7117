package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/astroline/backend/docs"
	"github.com/astroline/backend/internal/config"
	"github.com/astroline/backend/internal/database"
	"github.com/astroline/backend/internal/handlers"
	mW "github.com/astroline/backend/internal/middleware"
	"github.com/astroline/backend/internal/services"
)

// @title Astroline Consultation API
// @version 1.0
// @description API for wallet-funded astrology consultations
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("gateway.webhook_secret", "GATEWAY_WEBHOOK_SECRET")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Astroline Consultation API"
	docs.SwaggerInfo.Description = "API for wallet-funded astrology consultations"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	consultationCfg := config.LoadConsultationConfig()

	ledgerService := services.NewWalletLedgerService(db)
	rateResolver := services.NewRateResolver(db)
	channelService := services.NewChannelService(redisClient, consultationCfg.ChannelTokenTTL)
	consultationService := services.NewConsultationService(db, ledgerService, rateResolver, channelService)
	payoutService := services.NewPayoutService()
	walletService := services.NewWalletService(db, ledgerService, payoutService)
	astrologerService := services.NewAstrologerService(db)

	consultationHandler := handlers.NewConsultationHandler(consultationService, channelService)
	walletHandler := handlers.NewWalletHandler(walletService)
	astrologerHandler := handlers.NewAstrologerHandler(astrologerService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for astrologer avatars
	r.Handle("/static/avatars/*", http.StripPrefix("/static/avatars/",
		mW.StaticFileServer("./static/avatars")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required); the gateway webhook and the
		// media transport carry their own shared-secret signature instead of
		// a bearer token
		r.Post("/payments/recharge", walletHandler.Recharge)
		r.Get("/channels/{token}", consultationHandler.ResolveChannel)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			// Consultation lifecycle
			r.Post("/consultations", consultationHandler.Book)
			r.Get("/consultations", consultationHandler.List)
			r.Get("/consultations/{sessionId}", consultationHandler.Get)
			r.Post("/consultations/{sessionId}/accept", consultationHandler.Accept)
			r.Post("/consultations/{sessionId}/reject", consultationHandler.Reject)
			r.Post("/consultations/{sessionId}/cancel", consultationHandler.Cancel)
			r.Post("/consultations/{sessionId}/start", consultationHandler.Start)
			r.Post("/consultations/{sessionId}/end", consultationHandler.End)
			r.Post("/consultations/{sessionId}/review", consultationHandler.Review)
			r.Get("/consultations/{sessionId}/channel/qr", consultationHandler.ChannelQR)

			// Wallet endpoints
			r.Get("/wallet/balance", walletHandler.Balance)
			r.Get("/wallet/entries", walletHandler.History)
			r.Get("/wallet/recharge/qr", walletHandler.RechargeQR)

			// Astrologer-only endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRole(mW.RoleAstrologer))

				r.Post("/wallet/withdraw", walletHandler.Withdraw)
				r.Get("/astrologers/me", astrologerHandler.Profile)
				r.Put("/astrologers/me/rates", astrologerHandler.SetRates)
				r.Put("/astrologers/me/availability", astrologerHandler.SetAvailability)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
