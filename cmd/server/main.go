package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/duoauth/duoauth/internal/clock"
	"github.com/duoauth/duoauth/internal/config"
	"github.com/duoauth/duoauth/internal/handlers"
	"github.com/duoauth/duoauth/internal/middleware"
	"github.com/duoauth/duoauth/internal/models"
	"github.com/duoauth/duoauth/internal/repository"
	"github.com/duoauth/duoauth/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	dynamoClient, err := initDynamoDB(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize DynamoDB")
	}

	accountRepo := repository.NewAccountRepository(dynamoClient, cfg.DynamoDB.TableName, logger)

	var challengeStore service.ChallengeStore
	if cfg.OTP.Store == config.ChallengeStoreRedis {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Endpoint,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		challengeStore = repository.NewRedisChallengeStore(redisClient, logger)
		logger.Info("Using Redis challenge store")
	} else {
		challengeStore = repository.NewChallengeRepository(dynamoClient, cfg.DynamoDB.TableName, logger)
		logger.Info("Using DynamoDB challenge store")
	}

	clk := clock.New()
	hasher := service.NewPasswordHasher(cfg.Auth.BcryptCost)
	codec := service.NewOTPCodec(cfg.Auth.BcryptCost)
	generator := service.NewOTPGenerator(clk)

	credentialService := service.NewCredentialService(accountRepo, hasher, logger)
	otpService := service.NewOTPService(accountRepo, challengeStore, generator, codec, cfg.OTP.TTL, clk, logger)

	if err := ensureAdmin(context.Background(), accountRepo, hasher, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Failed to seed admin account")
	}

	authHandlers := handlers.NewAuthHandlers(credentialService, otpService, logger)
	userHandlers := handlers.NewUserHandlers(accountRepo, hasher, logger)

	router := setupRouter(authHandlers, userHandlers, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func initDynamoDB(cfg *config.Config, logger *logrus.Logger) (*dynamodb.Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.DynamoDB.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(),
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.DynamoDB.Endpoint,
						SigningRegion: cfg.DynamoDB.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO())
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)
	logger.Info("DynamoDB client initialized")
	return client, nil
}

// ensureAdmin creates the privileged account on first boot when ADMIN_EMAIL is
// configured. An existing account with that email is left untouched.
func ensureAdmin(ctx context.Context, accounts service.AccountStore, hasher *service.PasswordHasher, cfg *config.Config, logger *logrus.Logger) error {
	if cfg.Admin.Email == "" {
		return nil
	}

	_, err := accounts.FindByEmail(ctx, cfg.Admin.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, service.ErrAccountNotFound) {
		return err
	}

	passwordHash, err := hasher.Hash(cfg.Admin.Password)
	if err != nil {
		return err
	}

	admin := &models.Account{
		ID:           uuid.New().String(),
		Email:        cfg.Admin.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleAdmin,
	}

	if err := accounts.Create(ctx, admin); err != nil {
		return err
	}

	logger.WithField("email", cfg.Admin.Email).Info("Admin account created")
	return nil
}

func setupRouter(
	authHandlers *handlers.AuthHandlers,
	userHandlers *handlers.UserHandlers,
	logger *logrus.Logger,
) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.LoggingMiddleware(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	api := router.PathPrefix("/api/v1").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", authHandlers.Login).Methods("POST", "OPTIONS")
	auth.HandleFunc("/issue-otp", authHandlers.IssueOTP).Methods("POST", "OPTIONS")
	auth.HandleFunc("/verify-otp", authHandlers.VerifyOTP).Methods("POST", "OPTIONS")

	api.HandleFunc("/users", userHandlers.ListUsers).Methods("GET", "OPTIONS")
	api.HandleFunc("/users", userHandlers.CreateUser).Methods("POST", "OPTIONS")
	api.HandleFunc("/users/{id}", userHandlers.UpdateUser).Methods("PUT", "OPTIONS")
	api.HandleFunc("/users/{id}", userHandlers.DeleteUser).Methods("DELETE", "OPTIONS")

	return router
}
