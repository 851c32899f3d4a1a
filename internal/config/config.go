package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDynamoDB = "dynamodb"
	StoreMongoDB  = "mongodb"
	StoreRedis    = "redis"
	StoreMemory   = "memory"

	SMSTwilio = "twilio"
	SMSLog    = "log"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	DynamoDB DynamoDBConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	SMS      SMSConfig
	OTP      OTPConfig
	Token    TokenConfig
	Kafka    KafkaConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type StoreConfig struct {
	Driver string
}

type DynamoDBConfig struct {
	Endpoint  string
	Region    string
	TableName string
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

type RedisConfig struct {
	Endpoint string
	Password string
	DB       int
}

type SMSConfig struct {
	Driver     string
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	Timeout    time.Duration
}

// OTPConfig has no length setting: codes are always six digits.
type OTPConfig struct {
	ValidFor   time.Duration
	ExposeCode bool
}

type TokenConfig struct {
	Secret string
	TTL    time.Duration
}

// KafkaConfig is optional; an empty broker list disables event publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type LogConfig struct {
	Level string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreMongoDB)),
		},
		DynamoDB: DynamoDBConfig{
			Endpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
			Region:    getEnv("DYNAMODB_REGION", "us-east-1"),
			TableName: getEnv("DYNAMODB_TABLE_NAME", "PhoneOTP"),
		},
		Mongo: MongoConfig{
			URI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:   getEnv("MONGODB_DATABASE", "phoneotp"),
			Collection: getEnv("MONGODB_COLLECTION", "otps"),
		},
		Redis: RedisConfig{
			Endpoint: getEnv("REDIS_ENDPOINT", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		SMS: SMSConfig{
			Driver:     strings.ToLower(getEnv("SMS_DRIVER", SMSTwilio)),
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", os.Getenv("Account_SID")),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", os.Getenv("Auth_Token")),
			FromNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
			BaseURL:    getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
			Timeout:    getEnvAsDuration("SMS_TIMEOUT", 10*time.Second),
		},
		OTP: OTPConfig{
			ValidFor:   getEnvAsDuration("OTP_VALID_FOR", time.Minute),
			ExposeCode: getEnvAsBool("OTP_EXPOSE_CODE", false),
		},
		Token: TokenConfig{
			Secret: getEnv("VERIFY_TOKEN_SECRET", ""),
			TTL:    getEnvAsDuration("VERIFY_TOKEN_TTL", 10*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "otp.events"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the combinations Load cannot default its way out of.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDynamoDB, StoreMongoDB, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.SMS.Driver {
	case SMSTwilio:
		if c.SMS.AccountSID == "" || c.SMS.AuthToken == "" {
			return fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN environment variables are required")
		}
		if c.SMS.FromNumber == "" {
			return fmt.Errorf("TWILIO_PHONE_NUMBER environment variable is required")
		}
	case SMSLog:
	default:
		return fmt.Errorf("unsupported SMS_DRIVER %q", c.SMS.Driver)
	}

	if c.OTP.ValidFor <= 0 {
		return fmt.Errorf("OTP_VALID_FOR must be positive")
	}

	if c.Token.Secret == "" {
		return fmt.Errorf("VERIFY_TOKEN_SECRET environment variable is required")
	}
	if len(c.Token.Secret) < 32 {
		return fmt.Errorf("VERIFY_TOKEN_SECRET must be at least 32 bytes (256 bits)")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
