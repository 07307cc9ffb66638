package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the service
type Config struct {
	// Server configuration
	Port            string
	GinMode         string
	APIVersion      string
	APIPrefix       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	AllowedOrigins  []string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Booking   BookingConfig
	Payment   PaymentConfig
	Kafka     KafkaConfig
	Email     EmailConfig
	PubNub    PubNubConfig
	Jobs      JobsConfig

	// Logging
	LogLevel string

	MetricsEnabled bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string // postgres | memory
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string

	AvailabilityTTL  time.Duration
	DeliveryDedupTTL time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	JWTExpiresIn     time.Duration
	RefreshExpiresIn time.Duration
	GuestExpiresIn   time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool          `json:"enabled"`
	WindowDuration  time.Duration `json:"window_duration"`
	DefaultRequests int           `json:"default_requests"`
	PublicRequests  int           `json:"public_requests"`
	AuthRequests    int           `json:"auth_requests"`
	HoldRequests    int           `json:"hold_requests"`
	OrderRequests   int           `json:"order_requests"`
	PaymentRequests int           `json:"payment_requests"`
	AdminRequests   int           `json:"admin_requests"`
	WhitelistedIPs  []string      `json:"whitelisted_ips"`
}

// BookingConfig holds seat hold and order pricing rules
type BookingConfig struct {
	HoldTTL           time.Duration
	MaxHoldTTL        time.Duration
	MaxSeatsPerOrder  int
	ServiceFeePercent decimal.Decimal
	DefaultCurrency   string
}

// PaymentConfig holds payment authority configuration
type PaymentConfig struct {
	Provider      string // http | mock
	BaseURL       string
	APIKey        string
	ReturnURL     string // provider redirect landing on this API; {ORDER_ID} is substituted
	SuccessURL    string
	CancelURL     string
	FailureURL    string
	WebhookSecret string
	MockAutoPay   bool

	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// KafkaConfig holds delivery messaging configuration
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	DeliveryTopic string
	GroupID       string
	Workers       int
	MaxRetries    int
	RetryBackoff  time.Duration
}

// EmailConfig holds email configuration
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

// PubNubConfig holds realtime broadcast configuration
type PubNubConfig struct {
	Enabled      bool
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

// JobsConfig holds background job intervals
type JobsConfig struct {
	Enabled               bool
	HoldSweepInterval     time.Duration
	PendingOrderInterval  time.Duration
	PendingOrderMaxAge    time.Duration
	DeliveryRetryInterval time.Duration
	BatchSize             int
	LockTTL               time.Duration
}

// DefaultJobsConfig returns the job settings used when nothing is configured
func DefaultJobsConfig() JobsConfig {
	return JobsConfig{
		Enabled:               true,
		HoldSweepInterval:     time.Minute,
		PendingOrderInterval:  5 * time.Minute,
		PendingOrderMaxAge:    45 * time.Minute,
		DeliveryRetryInterval: 2 * time.Minute,
		BatchSize:             100,
		LockTTL:               55 * time.Second,
	}
}

// WithDefaults replaces zero or negative settings with the defaults
func (j JobsConfig) WithDefaults() JobsConfig {
	def := DefaultJobsConfig()
	if j.HoldSweepInterval <= 0 {
		j.HoldSweepInterval = def.HoldSweepInterval
	}
	if j.PendingOrderInterval <= 0 {
		j.PendingOrderInterval = def.PendingOrderInterval
	}
	if j.PendingOrderMaxAge <= 0 {
		j.PendingOrderMaxAge = def.PendingOrderMaxAge
	}
	if j.DeliveryRetryInterval <= 0 {
		j.DeliveryRetryInterval = def.DeliveryRetryInterval
	}
	if j.BatchSize <= 0 {
		j.BatchSize = def.BatchSize
	}
	if j.LockTTL <= 0 {
		j.LockTTL = def.LockTTL
	}
	return j
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:            getEnv("PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		APIVersion:      getEnv("API_VERSION", "v1"),
		APIPrefix:       getEnv("API_PREFIX", "/api"),
		ReadTimeout:     getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:  getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB
		AllowedOrigins:  getStringSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		// Database configuration
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "seatflow_db"),
			User:            getEnv("DB_USER", "seatflow_user"),
			Password:        getEnv("DB_PASSWORD", "seatflow_password"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
		},

		// Redis configuration
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),

			AvailabilityTTL:  getDurationEnv("REDIS_AVAILABILITY_TTL", 30*time.Second),
			DeliveryDedupTTL: getDurationEnv("REDIS_DELIVERY_DEDUP_TTL", 7*24*time.Hour),
		},

		// JWT configuration
		JWT: JWTConfig{
			Secret:           getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
			JWTExpiresIn:     getDurationEnvSeconds("JWT_EXPIRES_IN", 15*time.Minute),
			RefreshExpiresIn: getDurationEnvSeconds("JWT_REFRESH_EXPIRES_IN", 24*time.Hour),
			GuestExpiresIn:   getDurationEnvSeconds("JWT_GUEST_EXPIRES_IN", 24*time.Hour),
		},

		// Rate limiting
		RateLimit: RateLimitConfig{
			Enabled:         getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:  getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests: getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			PublicRequests:  getIntEnv("RATE_LIMIT_PUBLIC_REQUESTS", 120),
			AuthRequests:    getIntEnv("RATE_LIMIT_AUTH_REQUESTS", 10),
			HoldRequests:    getIntEnv("RATE_LIMIT_HOLD_REQUESTS", 60),
			OrderRequests:   getIntEnv("RATE_LIMIT_ORDER_REQUESTS", 10),
			PaymentRequests: getIntEnv("RATE_LIMIT_PAYMENT_REQUESTS", 30),
			AdminRequests:   getIntEnv("RATE_LIMIT_ADMIN_REQUESTS", 200),
			WhitelistedIPs:  getStringSliceEnv("RATE_LIMIT_WHITELISTED_IPS", []string{}),
		},

		// Booking rules
		Booking: BookingConfig{
			HoldTTL:           getDurationEnv("HOLD_TTL", 15*time.Minute),
			MaxHoldTTL:        getDurationEnv("HOLD_MAX_TTL", 30*time.Minute),
			MaxSeatsPerOrder:  getIntEnv("MAX_SEATS_PER_ORDER", 10),
			ServiceFeePercent: getDecimalEnv("SERVICE_FEE_PERCENT", decimal.Zero),
			DefaultCurrency:   strings.ToUpper(getEnv("DEFAULT_CURRENCY", "EUR")),
		},

		// Payment authority
		Payment: PaymentConfig{
			Provider:        getEnv("PAYMENT_PROVIDER", "mock"),
			BaseURL:         getEnv("PAYMENT_BASE_URL", "https://api.stripe.com"),
			APIKey:          getEnv("PAYMENT_API_KEY", ""),
			ReturnURL:       getEnv("PAYMENT_RETURN_URL", "http://localhost:8080/api/v1/payments/return?order_id={ORDER_ID}"),
			SuccessURL:      getEnv("PAYMENT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
			CancelURL:       getEnv("PAYMENT_CANCEL_URL", "http://localhost:3000/checkout/cancel"),
			FailureURL:      getEnv("PAYMENT_FAILURE_URL", "http://localhost:3000/checkout/failure"),
			WebhookSecret:   getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			MockAutoPay:     getBoolEnv("PAYMENT_MOCK_AUTO_PAY", true),
			Timeout:         getDurationEnv("PAYMENT_TIMEOUT", 10*time.Second),
			MaxRetries:      getIntEnv("PAYMENT_MAX_RETRIES", 3),
			RetryBackoff:    getDurationEnv("PAYMENT_RETRY_BACKOFF", 200*time.Millisecond),
			BreakerFailures: getIntEnv("PAYMENT_BREAKER_FAILURES", 5),
			BreakerTimeout:  getDurationEnv("PAYMENT_BREAKER_TIMEOUT", 30*time.Second),
		},

		// Kafka
		Kafka: KafkaConfig{
			Enabled:       getBoolEnv("KAFKA_ENABLED", false),
			Brokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			DeliveryTopic: getEnv("KAFKA_DELIVERY_TOPIC", "seatflow.ticket-delivery"),
			GroupID:       getEnv("KAFKA_GROUP_ID", "seatflow-delivery"),
			Workers:       getIntEnv("KAFKA_WORKERS", 2),
			MaxRetries:    getIntEnv("KAFKA_MAX_RETRIES", 3),
			RetryBackoff:  getDurationEnv("KAFKA_RETRY_BACKOFF", time.Second),
		},

		// Email configuration
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getIntEnv("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("FROM_EMAIL", "tickets@seatflow.local"),
			FromName:     getEnv("FROM_NAME", "Seatflow Tickets"),
		},

		// PubNub realtime
		PubNub: PubNubConfig{
			Enabled:      getBoolEnv("PUBNUB_ENABLED", false),
			PublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
			SubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
			SecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
			UserID:       getEnv("PUBNUB_USER_ID", "seatflow-server"),
		},

		// Background jobs
		Jobs: JobsConfig{
			Enabled:               getBoolEnv("JOBS_ENABLED", true),
			HoldSweepInterval:     getPositiveDurationEnv("HOLD_SWEEP_INTERVAL", time.Minute),
			PendingOrderInterval:  getPositiveDurationEnv("PENDING_ORDER_SWEEP_INTERVAL", 5*time.Minute),
			PendingOrderMaxAge:    getPositiveDurationEnv("PENDING_ORDER_MAX_AGE", 45*time.Minute),
			DeliveryRetryInterval: getPositiveDurationEnv("DELIVERY_RETRY_INTERVAL", 2*time.Minute),
			BatchSize:             getPositiveIntEnv("JOBS_BATCH_SIZE", 100),
			LockTTL:               getPositiveDurationEnv("JOBS_LOCK_TTL", 55*time.Second),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		MetricsEnabled: getBoolEnv("METRICS_ENABLED", true),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	return cfg
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getPositiveIntEnv is getIntEnv that also falls back on zero or negative values
func getPositiveIntEnv(key string, fallback int) int {
	if value := getIntEnv(key, fallback); value > 0 {
		return value
	}
	return fallback
}

// getPositiveDurationEnv is getDurationEnv that also falls back on zero or negative values
func getPositiveDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := getDurationEnv(key, fallback); value > 0 {
		return value
	}
	return fallback
}

// getDurationEnvSeconds gets an environment variable as seconds (int) and converts to time.Duration
func getDurationEnvSeconds(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getDecimalEnv gets a decimal environment variable with a fallback value
func getDecimalEnv(key string, fallback decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// UsesMemoryStore reports whether the in-process store replaces PostgreSQL
func (c *Config) UsesMemoryStore() bool {
	return c.Database.Driver == "memory"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// GetAPIBasePath returns the API base path
func (c *Config) GetAPIBasePath() string {
	return c.APIPrefix + "/" + c.APIVersion
}
