package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	aws_pkg "checkout-service/pkg/aws"

	"github.com/joho/godotenv"
)

const (
	ProviderRazorpay = "razorpay"
	ProviderStripe   = "stripe"

	StoreMongo    = "mongo"
	StoreDynamoDB = "dynamodb"

	// MaxExternalTimeout bounds every gateway and store call.
	MaxExternalTimeout = 30 * time.Second

	credentialsSecret = "checkout/RAZORPAY_CREDENTIALS"
)

// Config holds all configuration for the checkout service.
type Config struct {
	Port   string
	AppEnv string

	PaymentProvider        string
	RazorpayKeyID          string
	RazorpayKeySecret      string
	RazorpayBaseURL        string
	StripeAPIKey           string
	PaymentSignatureSecret string
	Currency               string
	GatewayTimeout         time.Duration

	OrderStore        string
	MongoURI          string
	MongoDatabase     string
	MongoCollection   string
	DynamoOrdersTable string
	DynamoUserIndex   string
	StoreTimeout      time.Duration

	RedisURL       string
	IdempotencyTTL time.Duration

	OrderSNSTopicARN string
	AllowedOrigins   []string

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string
	UseSecretsManager   bool
}

// SecretSource is satisfied by aws_pkg.SecretsClient.
type SecretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// LoadConfig reads configuration from .env and the environment, with an
// optional Secrets Manager override for gateway credentials.
func LoadConfig(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.UseSecretsManager {
		awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplySecrets(ctx, aws_pkg.NewSecretsClient(awsCfg)); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		Port:   getEnv("PORT", "5000"),
		AppEnv: getEnv("APP_ENV", "development"),

		PaymentProvider:        strings.ToLower(getEnv("PAYMENT_PROVIDER", ProviderRazorpay)),
		RazorpayKeyID:          os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:      os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayBaseURL:        getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),
		StripeAPIKey:           os.Getenv("STRIPE_API_KEY"),
		PaymentSignatureSecret: os.Getenv("PAYMENT_SIGNATURE_SECRET"),
		Currency:               strings.ToUpper(getEnv("PAYMENT_CURRENCY", "INR")),

		OrderStore:        strings.ToLower(getEnv("ORDER_STORE", StoreMongo)),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDatabase:     getEnv("MONGO_DATABASE", "checkout"),
		MongoCollection:   getEnv("MONGO_COLLECTION", "orders"),
		DynamoOrdersTable: getEnv("DDB_TABLE_ORDERS", "orders"),
		DynamoUserIndex:   getEnv("DDB_ORDERS_USER_INDEX", "userId-createdAt-index"),

		RedisURL:         os.Getenv("REDIS_URL"),
		OrderSNSTopicARN: os.Getenv("ORDER_SNS_TOPIC_ARN"),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "*")),

		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Checkout"),
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/checkout/services"),
		UseSecretsManager:   os.Getenv("AWS_USE_SECRETS") == "true",
	}

	var err error
	if cfg.GatewayTimeout, err = getDuration("GATEWAY_TIMEOUT", MaxExternalTimeout); err != nil {
		return nil, err
	}
	if cfg.StoreTimeout, err = getDuration("STORE_TIMEOUT", MaxExternalTimeout); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplySecrets overrides gateway credentials with values from the secret
// store. Missing keys keep their environment values.
func (c *Config) ApplySecrets(ctx context.Context, src SecretSource) error {
	m, err := src.GetSecretMap(ctx, credentialsSecret)
	if err != nil {
		return fmt.Errorf("load gateway credentials: %w", err)
	}
	if v := m["RAZORPAY_KEY_ID"]; v != "" {
		c.RazorpayKeyID = v
	}
	if v := m["RAZORPAY_KEY_SECRET"]; v != "" {
		c.RazorpayKeySecret = v
	}
	if v := m["STRIPE_API_KEY"]; v != "" {
		c.StripeAPIKey = v
	}
	if v := m["PAYMENT_SIGNATURE_SECRET"]; v != "" {
		c.PaymentSignatureSecret = v
	}
	return nil
}

// Validate fills derived defaults and rejects incomplete configuration.
func (c *Config) Validate() error {
	switch c.PaymentProvider {
	case ProviderRazorpay:
		if c.RazorpayKeyID == "" || c.RazorpayKeySecret == "" {
			return fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required")
		}
		if c.PaymentSignatureSecret == "" {
			c.PaymentSignatureSecret = c.RazorpayKeySecret
		}
		if c.PaymentSignatureSecret == "" {
			return fmt.Errorf("PAYMENT_SIGNATURE_SECRET is required")
		}
	case ProviderStripe:
		if c.StripeAPIKey == "" {
			return fmt.Errorf("STRIPE_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.PaymentProvider)
	}

	switch c.OrderStore {
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required")
		}
	case StoreDynamoDB:
		if c.DynamoOrdersTable == "" {
			return fmt.Errorf("DDB_TABLE_ORDERS is required")
		}
	default:
		return fmt.Errorf("unknown ORDER_STORE %q", c.OrderStore)
	}

	for name, d := range map[string]time.Duration{"GATEWAY_TIMEOUT": c.GatewayTimeout, "STORE_TIMEOUT": c.StoreTimeout} {
		if d <= 0 || d > MaxExternalTimeout {
			return fmt.Errorf("%s must be between 0 and %s", name, MaxExternalTimeout)
		}
	}
	if c.Currency == "" {
		return fmt.Errorf("PAYMENT_CURRENCY must not be empty")
	}
	return nil
}

// IsProduction reports whether the service runs with production logging.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(p), "/")); p != "" {
			out = append(out, p)
		}
	}
	return out
}
