package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mesikahq/niv-onboarding/internal/api"
	"github.com/mesikahq/niv-onboarding/internal/audit"
	"github.com/mesikahq/niv-onboarding/internal/auth"
	"github.com/mesikahq/niv-onboarding/internal/config"
	"github.com/mesikahq/niv-onboarding/internal/criteria"
	"github.com/mesikahq/niv-onboarding/internal/database"
	"github.com/mesikahq/niv-onboarding/internal/ehr"
	"github.com/mesikahq/niv-onboarding/internal/onboarding"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Error loading .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	ctx := context.Background()

	// PostgreSQL holds the onboarding aggregates.
	db, err := database.Connect(ctx, database.PostgresConfig{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		Database:    cfg.Database.Name,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		SSLMode:     cfg.Database.SSLMode,
		MaxPoolSize: 10,
		ConnTimeout: 5 * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer database.Disconnect(db)

	// MongoDB serves the qualification criteria reference data.
	mongoClient, err := database.NewMongoClient(ctx, database.MongoConfig{
		URI:            cfg.Mongo.URI,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoClient.Disconnect(ctx)

	esClient, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Elasticsearch.URL},
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", zap.Error(err))
	}

	auditService := audit.NewService(esClient)

	ehrClient, err := ehr.NewClient(ehr.Config{
		BaseURL:      cfg.EHR.BaseURL,
		TokenURL:     cfg.EHR.TokenURL,
		ClientID:     cfg.EHR.ClientID,
		ClientSecret: cfg.EHR.ClientSecret,
		CertFile:     cfg.EHR.CertFile,
		KeyFile:      cfg.EHR.KeyFile,
		Timeout:      cfg.EHR.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize EHR client", zap.Error(err))
	}

	criteriaStore := criteria.NewMongoStore(mongoClient.Database(cfg.Mongo.Database), logger)
	if err := criteriaStore.Seed(ctx); err != nil {
		logger.Fatal("Failed to seed qualification criteria", zap.Error(err))
	}

	repo := onboarding.NewPostgresRepository(db)
	onboardingService := onboarding.NewService(repo, criteriaStore, ehrClient, auditService, logger)

	authService := auth.NewService(auditService, auth.ServiceConfig{
		JWTSecret:          cfg.Auth.JWTSecret,
		TokenExpiry:        cfg.Auth.TokenExpiry,
		OperatorEmail:      cfg.Auth.OperatorEmail,
		OperatorSecretHash: cfg.Auth.OperatorSecretHash,
	})

	handler := api.NewHandler(authService, onboardingService, auditService)
	router := api.NewRouter(handler, authService)
	engine := router.SetupRouter(logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	go func() {
		log.Printf("Starting server on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if cfg.Server.TLS.Enabled {
			if err := srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		} else {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
