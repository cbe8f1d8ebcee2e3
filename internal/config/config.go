package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Config captures application runtime configuration loaded from the environment
// and an optional .env file.
type Config struct {
	AppName        string        `mapstructure:"APP_NAME"`
	AppEnv         string        `mapstructure:"APP_ENV"`
	Port           string        `mapstructure:"PORT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	LogFormat      string        `mapstructure:"LOG_FORMAT"`
	StoreDriver    string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	MongoURI       string        `mapstructure:"MONGO_URI"`
	MongoDatabase  string        `mapstructure:"MONGO_DATABASE"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	NSQAddr        string        `mapstructure:"NSQ_ADDR"`
	NSQOTPTopic    string        `mapstructure:"NSQ_OTP_TOPIC"`
	ShutdownPeriod time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	IdempotencyTTL time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	// OTPTTL is how long an issued code stays valid.
	OTPTTL time.Duration `mapstructure:"OTP_TTL"`
	// OTPReturnToClient echoes generated codes in API responses. Never honoured
	// when AppEnv is production; Load rejects that combination outright.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	BcryptCost        int  `mapstructure:"BCRYPT_COST"`

	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	AccessTokenTTL time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`

	GeoPrimaryURL   string        `mapstructure:"GEO_PRIMARY_URL"`
	GeoBackupURL    string        `mapstructure:"GEO_BACKUP_URL"`
	GeoTimeout      time.Duration `mapstructure:"GEO_TIMEOUT"`
	GeoLocalCountry string        `mapstructure:"GEO_LOCAL_COUNTRY"`
	GeoLocalCode    string        `mapstructure:"GEO_LOCAL_COUNTRY_CODE"`
	GeoCacheTTL     time.Duration `mapstructure:"GEO_CACHE_TTL"`

	PANApprovalRate float64 `mapstructure:"PAN_APPROVAL_RATE"`

	OTPRateLimitPerMin    int `mapstructure:"OTP_RATE_LIMIT_PER_MIN"`
	// OTPVerifyRateLimitPerMin caps code guesses per phone.
	OTPVerifyRateLimitPerMin int `mapstructure:"OTP_VERIFY_RATE_LIMIT_PER_MIN"`
	SignInRateLimitPerMin    int `mapstructure:"SIGNIN_RATE_LIMIT_PER_MIN"`
}

// Load reads .env (if present), then the environment, and validates the result.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "KYCFlow")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DATABASE", "kyc")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("NSQ_ADDR", "")
	v.SetDefault("NSQ_OTP_TOPIC", "otp.dispatch")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("GEO_PRIMARY_URL", "http://ip-api.com/json")
	v.SetDefault("GEO_BACKUP_URL", "https://ipapi.co")
	v.SetDefault("GEO_TIMEOUT", "5s")
	v.SetDefault("GEO_LOCAL_COUNTRY", "India")
	v.SetDefault("GEO_LOCAL_COUNTRY_CODE", "IN")
	v.SetDefault("GEO_CACHE_TTL", "24h")
	v.SetDefault("PAN_APPROVAL_RATE", 0.8)
	v.SetDefault("OTP_RATE_LIMIT_PER_MIN", 5)
	v.SetDefault("OTP_VERIFY_RATE_LIMIT_PER_MIN", 5)
	v.SetDefault("SIGNIN_RATE_LIMIT_PER_MIN", 5)
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.RedisURL == "" {
		return errors.New("REDIS_URL must be set")
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set when STORE_DRIVER=postgres")
		}
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI must be set when STORE_DRIVER=mongo")
		}
	case StoreDriverMemory:
		if !c.IsDevelopment() {
			return fmt.Errorf("STORE_DRIVER=memory is not allowed when APP_ENV=%s", c.AppEnv)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.OTPReturnToClient && c.IsProduction() {
		return errors.New("OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("BCRYPT_COST must be between 4 and 31")
	}
	if c.JWTSecret == "" && !c.IsDevelopment() {
		return errors.New("JWT_SECRET must be set outside development")
	}
	if c.OTPTTL <= 0 {
		return errors.New("OTP_TTL must be positive")
	}
	if c.PANApprovalRate < 0 || c.PANApprovalRate > 1 {
		return errors.New("PAN_APPROVAL_RATE must be between 0 and 1")
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether the app runs in a local/dev environment.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func (c Config) IsProduction() bool {
	switch strings.ToLower(c.AppEnv) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

// ExposeOTP reports whether generated codes may be returned to the client.
func (c Config) ExposeOTP() bool {
	return c.OTPReturnToClient && !c.IsProduction()
}
