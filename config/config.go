package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig          `mapstructure:"server"`
	Database DatabaseConfig        `mapstructure:"database"`
	Redis    RedisConfig           `mapstructure:"redis"`
	JWT      JWTConfig             `mapstructure:"jwt"`
	Log      LogConfig             `mapstructure:"log"`
	Ledger   LedgerConfig          `mapstructure:"ledger"`
	Kafka    KafkaConfig           `mapstructure:"kafka"`
	Coins    map[string]CoinConfig `mapstructure:"coins"` // keyed by unit symbol
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"` // 0 waits forever
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"` // dial, read and write
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// LedgerConfig holds accounting policy shared by every coin.
type LedgerConfig struct {
	AllowOverdraft bool          `mapstructure:"allow_overdraft"`
	WalletLockTTL  time.Duration `mapstructure:"wallet_lock_ttl"` // distributed wallet bracket lease
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// KafkaConfig configures the ledger event stream. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Enabled reports whether events should be published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// CoinConfig describes one coin daemon and its accounting parameters.
type CoinConfig struct {
	Name                 string        `mapstructure:"name"`
	Unit                 string        `mapstructure:"unit"`
	RPC                  RPCConfig     `mapstructure:"rpc"`
	TxFee                float64       `mapstructure:"txfee"`
	WalletPassphrase     string        `mapstructure:"walletpassphrase"`
	Minconf              MinconfConfig `mapstructure:"minconf"`
	SettleDelay          time.Duration `mapstructure:"settle_delay"`
	SendUnlockTimeout    time.Duration `mapstructure:"send_unlock_timeout"`
	AddressUnlockTimeout time.Duration `mapstructure:"address_unlock_timeout"`
	AddressRetry         RetryConfig   `mapstructure:"address_retry"`
}

// RPCConfig is the daemon connection descriptor.
type RPCConfig struct {
	Host       string        `mapstructure:"host"`
	User       string        `mapstructure:"user"`
	Pass       string        `mapstructure:"pass"`
	DisableTLS bool          `mapstructure:"disable_tls"`
	Timeout    time.Duration `mapstructure:"timeout"` // per single-shot call
}

// MinconfConfig holds the confirmation policy for each use.
type MinconfConfig struct {
	Balance  int `mapstructure:"balance"`
	Withdraw int `mapstructure:"withdraw"`
}

// RetryConfig bounds a fixed-backoff retry loop. Attempts excludes the first call.
type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
}

// HasPassphrase reports whether privileged calls need a wallet unlock bracket.
func (c CoinConfig) HasPassphrase() bool {
	return c.WalletPassphrase != ""
}

// withDefaults fills zero values. key is the map key the coin was declared under.
func (c CoinConfig) withDefaults(key string) CoinConfig {
	if c.Unit == "" {
		c.Unit = strings.ToUpper(key)
	}
	if c.Name == "" {
		c.Name = c.Unit
	}
	if c.RPC.Timeout == 0 {
		c.RPC.Timeout = 30 * time.Second
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	if c.SendUnlockTimeout == 0 {
		c.SendUnlockTimeout = 10 * time.Second
	}
	if c.AddressUnlockTimeout == 0 {
		c.AddressUnlockTimeout = time.Second
	}
	if c.AddressRetry.Attempts == 0 {
		c.AddressRetry.Attempts = 3
	}
	if c.AddressRetry.Delay == 0 {
		c.AddressRetry.Delay = 10 * time.Second
	}
	return c
}

// Validate rejects a coin entry that cannot be connected to.
func (c CoinConfig) Validate() error {
	if c.RPC.Host == "" {
		return fmt.Errorf("coin %s: rpc.host is required", c.Unit)
	}
	if c.TxFee < 0 {
		return fmt.Errorf("coin %s: txfee must not be negative", c.Unit)
	}
	if c.Minconf.Balance < 0 || c.Minconf.Withdraw < 0 {
		return fmt.Errorf("coin %s: minconf must not be negative", c.Unit)
	}
	if c.AddressRetry.Attempts < 0 {
		return fmt.Errorf("coin %s: address_retry.attempts must not be negative", c.Unit)
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CTL_ (Coin Tip Ledger).
// Nested keys use underscore: CTL_DATABASE_HOST, CTL_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "cointip")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.lock_timeout", "5s")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.timeout", "2s")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "720h")
	v.SetDefault("jwt.issuer", "coin-tip-ledger")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("ledger.allow_overdraft", false)
	v.SetDefault("ledger.wallet_lock_ttl", "30s")
	v.SetDefault("ledger.idempotency_ttl", "24h")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "ledger_events")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: CTL_DATABASE_HOST -> database.host
	v.SetEnvPrefix("CTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required: env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	coins := make(map[string]CoinConfig, len(cfg.Coins))
	for key, coin := range cfg.Coins {
		coin = coin.withDefaults(key)
		if err := coin.Validate(); err != nil {
			return nil, err
		}
		coins[coin.Unit] = coin
	}
	cfg.Coins = coins

	return &cfg, nil
}
