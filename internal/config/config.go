package config

import (
	"errors"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverDynamo = "dynamo"
	StoreDriverMemory = "memory"

	// MinBcryptCost is the lowest accepted adaptive cost for password hashes.
	MinBcryptCost = 12
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	RequestTimeout time.Duration
	StoreDriver    string // "dynamo" | "memory"

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTSecret     string
	JWTIssuer     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	BcryptCost    int
	HashMaxConcur int

	OTPExpiry      time.Duration
	OTPMaxAttempts int
	OTPRateLimit   time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion      string
	SMSCountryCode string // prepended to bare national numbers
	NotifyTimeout  time.Duration

	RedisURL           string // optional; enables the shared rate limiter
	RateLimitPerMinute int
	AllowedOrigins     []string // CORS allowed origins
	// TrustProxy takes the client address from forwarding headers. Enable
	// only when a proxy that overwrites them fronts the service.
	TrustProxy bool

	DefaultSuperAdminEmail    string
	DefaultSuperAdminPassword string
	DefaultSuperAdminName     string
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Admins        string
	Supervisors   string
	Guards        string
	OTPChallenges string
	RefreshTokens string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "8000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		StoreDriver:    getEnv("STORE_DRIVER", StoreDriverDynamo),

		AWSRegion:      getEnv("AWS_REGION", "ap-south-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Admins:        getEnv("DYNAMO_TABLE_ADMINS", "admins"),
			Supervisors:   getEnv("DYNAMO_TABLE_SUPERVISORS", "supervisors"),
			Guards:        getEnv("DYNAMO_TABLE_GUARDS", "guards"),
			OTPChallenges: getEnv("DYNAMO_TABLE_OTP_CHALLENGES", "otp_challenges"),
			RefreshTokens: getEnv("DYNAMO_TABLE_REFRESH_TOKENS", "refresh_tokens"),
		},

		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTIssuer:     getEnv("JWT_ISSUER", "patrol-auth"),
		AccessTTL:     time.Duration(getEnvInt("JWT_ACCESS_TTL_MINUTES", 30)) * time.Minute,
		RefreshTTL:    time.Duration(getEnvInt("JWT_REFRESH_TTL_DAYS", 7)) * 24 * time.Hour,
		BcryptCost:    getEnvInt("BCRYPT_COST", MinBcryptCost),
		HashMaxConcur: getEnvInt("HASH_MAX_CONCURRENCY", 2*runtime.GOMAXPROCS(0)),

		OTPExpiry:      time.Duration(getEnvInt("OTP_EXPIRE_MINUTES", 10)) * time.Minute,
		OTPMaxAttempts: getEnvInt("OTP_MAX_ATTEMPTS", 3),
		OTPRateLimit:   time.Duration(getEnvInt("OTP_RATE_LIMIT_MINUTES", 1)) * time.Minute,

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@lh.io.in"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion:      getEnv("SNS_REGION", "ap-south-1"),
		SMSCountryCode: getEnv("SMS_COUNTRY_CODE", "91"),
		NotifyTimeout:  time.Duration(getEnvInt("NOTIFY_TIMEOUT_SECONDS", 15)) * time.Second,

		RedisURL:           getEnv("REDIS_URL", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
		AllowedOrigins:     strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustProxy:         getEnvBool("TRUST_PROXY", false),

		DefaultSuperAdminEmail:    getEnv("DEFAULT_SUPER_ADMIN_EMAIL", ""),
		DefaultSuperAdminPassword: getEnv("DEFAULT_SUPER_ADMIN_PASSWORD", ""),
		DefaultSuperAdminName:     getEnv("DEFAULT_SUPER_ADMIN_NAME", "Super Administrator"),
	}
}

// Validate reports configuration that would leave the service insecure or unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}
	if c.BcryptCost < MinBcryptCost || c.BcryptCost > 31 {
		errs = append(errs, errors.New("BCRYPT_COST must be between 12 and 31"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.OTPExpiry <= 0 {
		errs = append(errs, errors.New("OTP_EXPIRE_MINUTES must be positive"))
	}
	if c.OTPMaxAttempts < 1 {
		errs = append(errs, errors.New("OTP_MAX_ATTEMPTS must be at least 1"))
	}
	if c.HashMaxConcur < 1 {
		errs = append(errs, errors.New("HASH_MAX_CONCURRENCY must be at least 1"))
	}
	switch c.StoreDriver {
	case StoreDriverDynamo, StoreDriverMemory:
	default:
		errs = append(errs, errors.New("STORE_DRIVER must be dynamo or memory"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
