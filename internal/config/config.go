// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultHTTPAddr           = "0.0.0.0:8080"
	defaultGRPCAddr           = ":9090"
	defaultAPIToken           = "dev-token"
	defaultClaimDelay         = time.Second
	defaultNotifyWriteTimeout = 5 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultPacketAmount       = "10.0"
	defaultPacketShares       = 5
	defaultLogLevel           = "info"
	defaultLogFormat          = "json"
)

// Config stores every parameter the server reads at startup.
type Config struct {
	HTTPAddr           string
	GRPCAddr           string
	APIToken           string
	ClaimDelay         time.Duration // simulated backend latency before a claim is arbitrated
	NotifyWriteTimeout time.Duration // write deadline for one push to a client
	ShutdownTimeout    time.Duration
	DefaultAmount      decimal.Decimal // used when a create request omits "money"
	DefaultShares      int             // used when a create request omits "count"
	LogLevel           string
	LogFormat          string
	StaticDir          string // served at / when set
}

// Load reads the configuration. Variables from the given .env files (".env" when none)
// are applied first; variables already present in the environment take precedence.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("cannot load env file %q: %w", file, err)
		}
	}

	var errs []error

	cfg := Config{
		HTTPAddr:           getEnv("HTTP_ADDR", defaultHTTPAddr),
		GRPCAddr:           getEnv("GRPC_ADDR", defaultGRPCAddr),
		APIToken:           getEnv("API_TOKEN", defaultAPIToken),
		ClaimDelay:         getEnvDuration("CLAIM_DELAY", defaultClaimDelay, &errs),
		NotifyWriteTimeout: getEnvDuration("NOTIFY_WRITE_TIMEOUT", defaultNotifyWriteTimeout, &errs),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout, &errs),
		DefaultShares:      getEnvInt("DEFAULT_PACKET_SHARES", defaultPacketShares, &errs),
		LogLevel:           getEnv("LOG_LEVEL", defaultLogLevel),
		LogFormat:          getEnv("LOG_FORMAT", defaultLogFormat),
		StaticDir:          os.Getenv("STATIC_DIR"),
	}

	amount, err := decimal.NewFromString(getEnv("DEFAULT_PACKET_AMOUNT", defaultPacketAmount))
	if err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_PACKET_AMOUNT: %w", err))
	}
	cfg.DefaultAmount = amount

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures the configuration is usable
func (c Config) Validate() error {
	if c.ClaimDelay < 0 {
		return errors.New("CLAIM_DELAY cannot be negative")
	}
	if c.NotifyWriteTimeout <= 0 {
		return errors.New("NOTIFY_WRITE_TIMEOUT must be positive")
	}
	if c.DefaultShares <= 0 {
		return errors.New("DEFAULT_PACKET_SHARES must be positive")
	}
	if c.DefaultAmount.LessThanOrEqual(decimal.Zero) {
		return errors.New("DEFAULT_PACKET_AMOUNT must be positive")
	}
	if c.APIToken == "" {
		return errors.New("API_TOKEN cannot be empty")
	}
	return nil
}

// LogFields returns the effective configuration as log fields, with the token redacted.
func (c Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("http_addr", c.HTTPAddr),
		zap.String("grpc_addr", c.GRPCAddr),
		zap.Bool("api_token_default", c.APIToken == defaultAPIToken),
		zap.Duration("claim_delay", c.ClaimDelay),
		zap.Duration("notify_write_timeout", c.NotifyWriteTimeout),
		zap.Duration("shutdown_timeout", c.ShutdownTimeout),
		zap.String("default_amount", c.DefaultAmount.String()),
		zap.Int("default_shares", c.DefaultShares),
		zap.String("log_level", c.LogLevel),
		zap.String("static_dir", c.StaticDir),
	}
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return parsed
}
