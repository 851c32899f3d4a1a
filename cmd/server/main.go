package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/qcom/phoneotp/internal/config"
	"github.com/qcom/phoneotp/internal/events"
	"github.com/qcom/phoneotp/internal/handlers"
	"github.com/qcom/phoneotp/internal/logging"
	"github.com/qcom/phoneotp/internal/middleware"
	"github.com/qcom/phoneotp/internal/repository"
	"github.com/qcom/phoneotp/internal/service"
	"github.com/qcom/phoneotp/internal/sms"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.New(cfg.Log.Level)

	otpRepo, closeStore, err := initStore(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize OTP store")
	}
	defer closeStore()

	sender := initSender(cfg, logger)

	publisher := initPublisher(cfg, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close event publisher")
		}
	}()

	tokenService, err := service.NewTokenService(&cfg.Token, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize token service")
	}

	otpService := service.NewOTPService(otpRepo, sender, &cfg.OTP, logger, service.WithPublisher(publisher))
	otpHandlers := handlers.NewOTPHandlers(otpService, tokenService, cfg.OTP.ExposeCode, logger)
	authMiddleware := middleware.NewAuthMiddleware(tokenService, logger)
	router := handlers.NewRouter(otpHandlers, authMiddleware, cfg.Server.AllowedOrigins, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":  cfg.Server.Port,
			"store": cfg.Store.Driver,
			"sms":   cfg.SMS.Driver,
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func initStore(cfg *config.Config, logger *logrus.Logger) (repository.OTPRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDynamoDB:
		client, err := initDynamoDB(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewDynamoOTPRepository(client, cfg.DynamoDB.TableName, logger), func() {}, nil

	case config.StoreMongoDB:
		client, err := initMongo(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		coll := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
		repo := repository.NewMongoOTPRepository(coll, logger)
		if err := repo.EnsureIndexes(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to ensure MongoDB indexes")
		}
		return repo, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}, nil

	case config.StoreRedis:
		client, err := initRedis(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisOTPRepository(client, logger), func() { _ = client.Close() }, nil

	default:
		logger.Warn("Using in-memory OTP store; records are lost on restart")
		return repository.NewMemoryOTPRepository(), func() {}, nil
	}
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
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(cfg.DynamoDB.Region))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)
	logger.Info("DynamoDB client initialized")
	return client, nil
}

func initMongo(cfg *config.Config, logger *logrus.Logger) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.WithField("database", cfg.Mongo.Database).Info("MongoDB is connected")
	return client, nil
}

func initRedis(cfg *config.Config, logger *logrus.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Endpoint,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logger.WithField("endpoint", cfg.Redis.Endpoint).Info("Redis client initialized")
	return client, nil
}

func initSender(cfg *config.Config, logger *logrus.Logger) sms.Sender {
	if cfg.SMS.Driver == config.SMSLog {
		logger.Warn("SMS driver is 'log'; codes are written to the log, not sent")
		return sms.NewLogSender(logger)
	}
	return sms.NewTwilioSender(sms.TwilioConfig{
		AccountSID: cfg.SMS.AccountSID,
		AuthToken:  cfg.SMS.AuthToken,
		From:       cfg.SMS.FromNumber,
		BaseURL:    cfg.SMS.BaseURL,
		Timeout:    cfg.SMS.Timeout,
	}, logger)
}

func initPublisher(cfg *config.Config, logger *logrus.Logger) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NopPublisher{}
	}
	logger.WithField("topic", cfg.Kafka.Topic).Info("Publishing OTP events to Kafka")
	return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
}
