package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN is the lib/pq keyword/value connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL is the postgres:// form golang-migrate expects.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type WalletConfig struct {
	// Store selects the ledger backend: "postgres" or "memory".
	Store               string
	LockTimeout         time.Duration
	BalanceCacheTTL     time.Duration
	VoucherTTL          time.Duration
	VoucherMaxAmount    decimal.Decimal
	VoucherMaxPerWindow int64
	VoucherWindow       time.Duration
}

type Config struct {
	Port           string
	LogLevel       string
	Development    bool
	JWTSecret      string
	AllowedOrigins []string
	Database       DatabaseConfig
	Redis          RedisConfig
	Wallet         WalletConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("cors.allowed_origins", "")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "credit_wallet")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("wallet.store", "postgres")
	v.SetDefault("wallet.lock_timeout", 5*time.Second)
	v.SetDefault("wallet.balance_cache_ttl", 30*time.Second)
	v.SetDefault("wallet.voucher_ttl", 24*time.Hour)
	v.SetDefault("wallet.voucher_max_amount", "500")
	v.SetDefault("wallet.voucher_max_per_window", 5)
	v.SetDefault("wallet.voucher_window", time.Hour)
}

var envBindings = map[string]string{
	"port":            "PORT",
	"log.level":       "LOG_LEVEL",
	"log.development": "LOG_DEVELOPMENT",
	"jwt.secret_key":  "JWT_SECRET_KEY",

	"cors.allowed_origins": "CORS_ALLOWED_ORIGINS",

	"database.host":              "DATABASE_HOST",
	"database.port":              "DATABASE_PORT",
	"database.user":              "DATABASE_USER",
	"database.password":          "DATABASE_PASSWORD",
	"database.name":              "DATABASE_NAME",
	"database.ssl_mode":          "DATABASE_SSL_MODE",
	"database.max_open_conns":    "DATABASE_MAX_OPEN_CONNS",
	"database.max_idle_conns":    "DATABASE_MAX_IDLE_CONNS",
	"database.conn_max_lifetime": "DATABASE_CONN_MAX_LIFETIME",

	"redis.host":     "REDIS_HOST",
	"redis.port":     "REDIS_PORT",
	"redis.password": "REDIS_PASSWORD",
	"redis.db":       "REDIS_DB",

	"wallet.store":                  "WALLET_STORE",
	"wallet.lock_timeout":           "WALLET_LOCK_TIMEOUT",
	"wallet.balance_cache_ttl":      "WALLET_BALANCE_CACHE_TTL",
	"wallet.voucher_ttl":            "WALLET_VOUCHER_TTL",
	"wallet.voucher_max_amount":     "WALLET_VOUCHER_MAX_AMOUNT",
	"wallet.voucher_max_per_window": "WALLET_VOUCHER_MAX_PER_WINDOW",
	"wallet.voucher_window":         "WALLET_VOUCHER_WINDOW",
}

// Load reads configFile (a .env file, optional) and the environment.
// Environment variables win over the file.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("env")
		err := v.ReadInConfig()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", configFile, err)
		}
		// .env keys are flat; file values sit below the environment.
		for key, env := range envBindings {
			if fileKey := strings.ToLower(env); v.InConfig(fileKey) {
				v.SetDefault(key, v.Get(fileKey))
			}
		}
	}

	maxVoucher, err := decimal.NewFromString(v.GetString("wallet.voucher_max_amount"))
	if err != nil {
		return nil, fmt.Errorf("WALLET_VOUCHER_MAX_AMOUNT: %w", err)
	}

	cfg := &Config{
		Port:           v.GetString("port"),
		LogLevel:       v.GetString("log.level"),
		Development:    v.GetBool("log.development"),
		JWTSecret:      v.GetString("jwt.secret_key"),
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetString("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			Name:            v.GetString("database.name"),
			SSLMode:         v.GetString("database.ssl_mode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetString("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Wallet: WalletConfig{
			Store:               strings.ToLower(v.GetString("wallet.store")),
			LockTimeout:         v.GetDuration("wallet.lock_timeout"),
			BalanceCacheTTL:     v.GetDuration("wallet.balance_cache_ttl"),
			VoucherTTL:          v.GetDuration("wallet.voucher_ttl"),
			VoucherMaxAmount:    maxVoucher,
			VoucherMaxPerWindow: v.GetInt64("wallet.voucher_max_per_window"),
			VoucherWindow:       v.GetDuration("wallet.voucher_window"),
		},
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Wallet.Store {
	case "postgres", "memory":
	default:
		return fmt.Errorf("WALLET_STORE must be postgres or memory, got %q", c.Wallet.Store)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET_KEY is required")
	}
	return nil
}

// CORSCredentials reports whether browsers may send credentials cross-origin.
// Only an explicit list of origins qualifies; any wildcard turns it off.
func (c *Config) CORSCredentials() bool {
	if len(c.AllowedOrigins) == 0 {
		return false
	}
	for _, origin := range c.AllowedOrigins {
		if strings.Contains(origin, "*") {
			return false
		}
	}
	return true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
