package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/config"
	"checkout-service/controllers"
	"checkout-service/database"
	applog "checkout-service/logger"
	"checkout-service/middleware"
	aws_pkg "checkout-service/pkg/aws"
	"checkout-service/providers"
	"checkout-service/repository"
	"checkout-service/routes"
	servicepkg "checkout-service/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const serviceName = "checkout-service"

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// AWS is only needed for DynamoDB, SNS and CloudWatch
	var awsCfg *sdkaws.Config
	if cfg.OrderStore == config.StoreDynamoDB || cfg.OrderSNSTopicARN != "" || cfg.CloudWatchEnabled {
		c, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		awsCfg = &c
	}

	var logSink io.Writer
	if cfg.CloudWatchEnabled {
		cw, err := aws_pkg.NewCloudWatchLogsClient(ctx, *awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log.Printf("CloudWatch Logs unavailable, logging to stdout only: %v", err)
		} else {
			logSink = cw
		}
	}

	logger, err := applog.New(cfg.AppEnv, logSink)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	// Store
	var mongoClient *mongo.Client
	var orderRepo repository.OrderRepository
	switch cfg.OrderStore {
	case config.StoreDynamoDB:
		orderRepo = repository.NewDynamoAdapter(dynamodb.NewFromConfig(*awsCfg), cfg.DynamoOrdersTable, cfg.DynamoUserIndex, cfg.StoreTimeout)
	default:
		mongoClient, err = database.ConnectMongo(ctx, cfg.MongoURI, cfg.StoreTimeout)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		orderRepo = repository.NewMongoAdapter(mongoClient.Database(cfg.MongoDatabase), cfg.MongoCollection, cfg.StoreTimeout)
	}
	if err := orderRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("Failed to ensure order indexes", zap.Error(err))
	}
	logger.Info("Order store ready", zap.String("store", cfg.OrderStore))

	// Idempotency cache
	var redisClient *redis.Client
	var idemStore repository.IdempotencyStore
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, Idempotency-Key support disabled", zap.Error(err))
		} else {
			idemStore = repository.NewRedisIdempotencyStore(redisClient, cfg.IdempotencyTTL)
		}
	}

	// Payment gateway
	var gateway providers.PaymentGateway
	switch cfg.PaymentProvider {
	case config.ProviderStripe:
		gateway = providers.NewStripeGateway(cfg.StripeAPIKey, "", cfg.Currency, cfg.GatewayTimeout)
	default:
		gateway = providers.NewRazorpayGateway(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.Currency, cfg.GatewayTimeout,
			servicepkg.NewSignatureVerifier(cfg.PaymentSignatureSecret))
	}

	// Events and metrics
	var snsClient aws_pkg.SNSPublisher
	if cfg.OrderSNSTopicARN != "" {
		snsClient = aws_pkg.NewSNSClient(*awsCfg)
	}
	var metricsClient aws_pkg.MetricsRecorder
	if cfg.CloudWatchEnabled {
		metricsClient = aws_pkg.NewMetricsClient(*awsCfg, cfg.CloudWatchNamespace, true)
	}

	orderService := servicepkg.NewOrderService(servicepkg.OrderServiceDeps{
		Repo:        orderRepo,
		Gateway:     gateway,
		Idempotency: idemStore,
		SNS:         snsClient,
		SNSTopicArn: cfg.OrderSNSTopicARN,
		Metrics:     metricsClient,
		Currency:    cfg.Currency,
		Logger:      logger,
	})
	orderController := controllers.NewOrderController(orderService, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Metrics(metricsClient, serviceName, gateway.Name()))
	r.Use(middleware.Timeout(config.MaxExternalTimeout))

	routes.RegisterOrderRoutes(r, orderController)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Checkout service started",
		zap.String("port", cfg.Port),
		zap.String("gateway", gateway.Name()),
	)
	<-quit
	logger.Info("Shutting down checkout service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if mongoClient != nil {
		if err := database.DisconnectMongo(mongoClient); err != nil {
			logger.Warn("MongoDB disconnect failed", zap.Error(err))
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	logger.Info("Server exited cleanly")
}
