// Package config loads terminal settings from defaults, an optional YAML
// file, a .env file and POS_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix  = "POS"
	ConfigName = "pos"
)

type Config struct {
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Store    StoreConfig    `mapstructure:"store"`
	Mock     MockConfig     `mapstructure:"mock"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Log      LogConfig      `mapstructure:"log"`
}

// GatewayConfig points the poller at the payment backend.
type GatewayConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type StoreConfig struct {
	DBPath       string        `mapstructure:"db_path"`
	DraftTTL     time.Duration `mapstructure:"draft_ttl"`
	HistoryLimit int           `mapstructure:"history_limit"`
}

type MockConfig struct {
	Addr       string `mapstructure:"addr"`
	TillNumber string `mapstructure:"till_number"`
}

type OutboxConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	RetryBase    time.Duration `mapstructure:"retry_base"`
	RetryMax     time.Duration `mapstructure:"retry_max"`
	KafkaBrokers []string      `mapstructure:"kafka_brokers"`
	KafkaTopic   string        `mapstructure:"kafka_topic"`
}

type CheckoutConfig struct {
	TaxRate string `mapstructure:"tax_rate"`
}

type LogConfig struct {
	Component string `mapstructure:"component"`
}

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			BaseURL:        "http://localhost:5000",
			PollInterval:   3 * time.Second,
			MaxAttempts:    60,
			RequestTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			DBPath:       "pos.db",
			DraftTTL:     24 * time.Hour,
			HistoryLimit: 100,
		},
		Mock: MockConfig{
			Addr:       ":5000",
			TillNumber: "174379",
		},
		Outbox: OutboxConfig{
			Interval:     5 * time.Second,
			BatchSize:    50,
			RetryBase:    time.Second,
			RetryMax:     time.Minute,
			KafkaBrokers: []string{},
			KafkaTopic:   "pos.sales",
		},
		Checkout: CheckoutConfig{
			TaxRate: "0.16",
		},
		Log: LogConfig{
			Component: "pos",
		},
	}
}

// Load reads path when given, otherwise an optional pos.yaml in the
// working directory. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Gateway.BaseURL) == "" {
		errs = append(errs, errors.New("gateway.base_url is required"))
	}
	if c.Gateway.PollInterval <= 0 {
		errs = append(errs, errors.New("gateway.poll_interval must be positive"))
	}
	if c.Gateway.MaxAttempts < 1 {
		errs = append(errs, errors.New("gateway.max_attempts must be at least 1"))
	}
	if _, err := c.TaxRate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) TaxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.Checkout.TaxRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("checkout.tax_rate: %w", err)
	}
	if rate.IsNegative() {
		return decimal.Zero, errors.New("checkout.tax_rate must not be negative")
	}
	return rate, nil
}

// KafkaEnabled reports whether outbox events go to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.Outbox.KafkaBrokers) > 0 && c.Outbox.KafkaTopic != ""
}

// WriteDefault writes the default config as YAML. It refuses to replace
// an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	data, err := Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Marshal renders cfg as YAML with durations in their string form.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(settings(cfg))
}

func setDefaults(v *viper.Viper, cfg *Config) {
	for section, values := range settings(cfg) {
		for key, value := range values {
			v.SetDefault(section+"."+key, value)
		}
	}
}

func settings(cfg *Config) map[string]map[string]any {
	brokers := cfg.Outbox.KafkaBrokers
	if brokers == nil {
		brokers = []string{}
	}

	return map[string]map[string]any{
		"gateway": {
			"base_url":        cfg.Gateway.BaseURL,
			"poll_interval":   cfg.Gateway.PollInterval.String(),
			"max_attempts":    cfg.Gateway.MaxAttempts,
			"request_timeout": cfg.Gateway.RequestTimeout.String(),
		},
		"store": {
			"db_path":       cfg.Store.DBPath,
			"draft_ttl":     cfg.Store.DraftTTL.String(),
			"history_limit": cfg.Store.HistoryLimit,
		},
		"mock": {
			"addr":        cfg.Mock.Addr,
			"till_number": cfg.Mock.TillNumber,
		},
		"outbox": {
			"interval":      cfg.Outbox.Interval.String(),
			"batch_size":    cfg.Outbox.BatchSize,
			"retry_base":    cfg.Outbox.RetryBase.String(),
			"retry_max":     cfg.Outbox.RetryMax.String(),
			"kafka_brokers": brokers,
			"kafka_topic":   cfg.Outbox.KafkaTopic,
		},
		"checkout": {
			"tax_rate": cfg.Checkout.TaxRate,
		},
		"log": {
			"component": cfg.Log.Component,
		},
	}
}
