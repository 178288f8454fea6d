package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	RTD       RTDConfig       `mapstructure:"rtd"`
	Feeder    FeederConfig    `mapstructure:"feeder"`
	Alpaca    AlpacaConfig    `mapstructure:"alpaca"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // "json" or "console"
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	KeyTTL   time.Duration `mapstructure:"key_ttl"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// Source kinds understood by the rtd server.
const (
	SourceFile  = "file"
	SourceRedis = "redis"
	SourceKafka = "kafka"
)

type RTDConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Source       string        `mapstructure:"source"`
	DataFile     string        `mapstructure:"data_file"`
	Symbol       string        `mapstructure:"symbol"`
}

// Quote providers understood by the feeder.
const (
	ProviderRandom = "random"
	ProviderAlpaca = "alpaca"
)

type FeederConfig struct {
	Symbol    string        `mapstructure:"symbol"`
	Interval  time.Duration `mapstructure:"interval"`
	Provider  string        `mapstructure:"provider"`
	BasePrice float64       `mapstructure:"base_price"` // random provider only
	Spread    float64       `mapstructure:"spread"`     // random provider only
	Sinks     []string      `mapstructure:"sinks"`
}

// AlpacaConfig holds market data credentials, read from ALPACA_API_KEY and ALPACA_SECRET_KEY.
type AlpacaConfig struct {
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
}

type ProcessorConfig struct {
	NumWorkers int `mapstructure:"num_workers"`
}

type GatewayConfig struct {
	CommandsPerSecond float64 `mapstructure:"commands_per_second"`
	CommandBurst      int     `mapstructure:"command_burst"`
}

// MinFeedInterval is the fastest the feeder is allowed to publish.
const MinFeedInterval = time.Second

// DefaultDataFile is the shared file the feeder writes and the rtd server polls.
func DefaultDataFile() string {
	return filepath.Join(os.TempDir(), "nvda_price_data.json")
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Load .env into the process environment so APP_PORT style vars are visible to viper
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	setDefaults(v)

	// "app.port" -> "APP_PORT"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees nested keys that were bound explicitly
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level", "logger.encoding")
	bindEnv(v, "redis.addr", "redis.password", "redis.db", "redis.key_ttl")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id")
	bindEnv(v, "rtd.poll_interval", "rtd.source", "rtd.data_file", "rtd.symbol")
	bindEnv(v, "feeder.symbol", "feeder.interval", "feeder.provider", "feeder.base_price", "feeder.spread", "feeder.sinks")
	bindEnv(v, "alpaca.api_key", "alpaca.secret_key", "alpaca.base_url")
	bindEnv(v, "processor.num_workers")
	bindEnv(v, "gateway.commands_per_second", "gateway.command_burst")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_ttl", time.Hour)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "quotes")
	v.SetDefault("kafka.group_id", "quote-processor-group")

	v.SetDefault("rtd.poll_interval", time.Second)
	v.SetDefault("rtd.source", SourceFile)
	v.SetDefault("rtd.data_file", DefaultDataFile())
	v.SetDefault("rtd.symbol", "NVDA")

	v.SetDefault("feeder.symbol", "NVDA")
	v.SetDefault("feeder.interval", 5*time.Second)
	v.SetDefault("feeder.provider", ProviderRandom)
	v.SetDefault("feeder.base_price", 120.0)
	v.SetDefault("feeder.spread", 0.02)
	v.SetDefault("feeder.sinks", []string{SourceFile})

	v.SetDefault("processor.num_workers", 4)

	v.SetDefault("gateway.commands_per_second", 20.0)
	v.SetDefault("gateway.command_burst", 40)
}

// Validate checks cross-field constraints and clamps the feeder interval.
func (c *Config) Validate() error {
	if c.RTD.PollInterval <= 0 {
		return fmt.Errorf("rtd poll interval must be positive, got %s", c.RTD.PollInterval)
	}
	switch c.RTD.Source {
	case SourceFile, SourceRedis, SourceKafka:
	default:
		return fmt.Errorf("unknown rtd source %q", c.RTD.Source)
	}
	if c.UsesKafka() && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty")
	}
	switch c.Feeder.Provider {
	case "", ProviderRandom:
	case ProviderAlpaca:
		if c.Alpaca.APIKey == "" || c.Alpaca.SecretKey == "" {
			return fmt.Errorf("alpaca provider needs ALPACA_API_KEY and ALPACA_SECRET_KEY")
		}
	default:
		return fmt.Errorf("unknown feeder provider %q", c.Feeder.Provider)
	}
	if c.Feeder.Interval < MinFeedInterval {
		log.Printf("Minimum feeder interval is %s, got %s", MinFeedInterval, c.Feeder.Interval)
		c.Feeder.Interval = MinFeedInterval
	}
	if c.Processor.NumWorkers < 1 {
		c.Processor.NumWorkers = 1
	}
	return nil
}

// UsesKafka reports whether the rtd source or a feeder sink reads or writes kafka.
// The processor always needs kafka and checks brokers itself.
func (c *Config) UsesKafka() bool {
	if c.RTD.Source == SourceKafka {
		return true
	}
	for _, s := range c.Feeder.Sinks {
		if s == SourceKafka {
			return true
		}
	}
	return false
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
