package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8000"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"5s"`
		CORS            bool          `yaml:"cors" default:"true"`
		TrustedProxies  []string      `yaml:"trusted_proxies"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Model struct {
		Dir         string `yaml:"dir" default:"models"`
		MaxHorizon  int    `yaml:"max_horizon" default:"90"`
		DefaultDays int    `yaml:"default_days" default:"30"`
	} `yaml:"model"`
	History struct {
		Provider     string `yaml:"provider" default:"yahoo"`
		LookbackDays int    `yaml:"lookback_days" default:"365"`
		ChartDays    int    `yaml:"chart_days" default:"90"`
		Cache        struct {
			Backend       string        `yaml:"backend" default:"none"`
			TTL           time.Duration `yaml:"ttl" default:"15m"`
			MemoryMaxSize int           `yaml:"memory_max_size" default:"1000"`
		} `yaml:"cache"`
	} `yaml:"history"`
	Yahoo struct {
		BaseURL           string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
		Timeout           time.Duration `yaml:"timeout" default:"30s"`
		RequestsPerSecond float64       `yaml:"requests_per_second" default:"2"`
		Burst             int           `yaml:"burst" default:"2"`
		UserAgent         string        `yaml:"user_agent" default:"Mozilla/5.0"`
	} `yaml:"yahoo"`
	StockInfo struct {
		CacheTTL time.Duration `yaml:"cache_ttl" default:"1h"`
	} `yaml:"stock_info"`
	RateLimit struct {
		Enabled      bool    `yaml:"enabled" default:"true"`
		Capacity     float64 `yaml:"capacity" default:"10"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"1"`
	} `yaml:"rate_limit"`
	Redis struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"pricecast"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"pricecast.events"`
		LogTopic     string   `yaml:"log_topic" default:"pricecast.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async" default:"true"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"pricecast"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table" default:"daily_bars"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Training struct {
		Ticker          string  `yaml:"ticker" default:"AAPL"`
		StartDate       string  `yaml:"start_date" default:"2015-01-01"`
		SequenceLength  int     `yaml:"sequence_length" default:"60"`
		TrainSplit      float64 `yaml:"train_split" default:"0.8"`
		ValidationSplit float64 `yaml:"validation_split" default:"0.1"`
		Epochs          int     `yaml:"epochs" default:"50"`
		BatchSize       int     `yaml:"batch_size" default:"32"`
		Patience        int     `yaml:"patience" default:"10"`
		LearningRate    float64 `yaml:"learning_rate" default:"0.001"`
		Units           int     `yaml:"units" default:"50"`
		Layers          int     `yaml:"layers" default:"3"`
		DenseUnits      int     `yaml:"dense_units" default:"25"`
		Dropout         float64 `yaml:"dropout" default:"0.2"`
		Seed            int64   `yaml:"seed" default:"42"`
		LedgerPath      string  `yaml:"ledger_path" default:"models/training_runs.db"`
		Schedule        string  `yaml:"schedule"`
	} `yaml:"training"`
}

// Default returns a configuration populated only from struct defaults.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides selected fields from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.Model.Dir = v
	}
	if v := os.Getenv("HISTORY_PROVIDER"); v != "" {
		c.History.Provider = v
	}
	if v := os.Getenv("HISTORY_CACHE"); v != "" {
		c.History.Cache.Backend = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("TRAIN_TICKER"); v != "" {
		c.Training.Ticker = v
	}
}

// ClickHouseEnabled reports whether a ClickHouse connection is needed,
// either as the history provider or as the sync-history archive.
func (c *Config) ClickHouseEnabled() bool {
	return c.ClickHouse.Enabled || c.History.Provider == "clickhouse"
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.History.Provider {
	case "yahoo", "clickhouse":
	default:
		return fmt.Errorf("history.provider must be 'yahoo' or 'clickhouse', got '%s'", c.History.Provider)
	}
	switch c.History.Cache.Backend {
	case "none", "memory", "redis", "layered":
	default:
		return fmt.Errorf("history.cache.backend must be one of none, memory, redis, layered, got '%s'", c.History.Cache.Backend)
	}
	if c.History.LookbackDays <= 0 {
		return fmt.Errorf("history.lookback_days must be positive")
	}
	if c.Model.MaxHorizon <= 0 {
		return fmt.Errorf("model.max_horizon must be positive")
	}
	if c.Model.DefaultDays <= 0 {
		return fmt.Errorf("model.default_days must be positive")
	}
	if c.Training.SequenceLength <= 0 {
		return fmt.Errorf("training.sequence_length must be positive")
	}
	if c.Training.TrainSplit <= 0 || c.Training.TrainSplit >= 1 {
		return fmt.Errorf("training.train_split must be in (0,1), got %v", c.Training.TrainSplit)
	}
	if c.Training.ValidationSplit < 0 || c.Training.ValidationSplit >= 1 {
		return fmt.Errorf("training.validation_split must be in [0,1), got %v", c.Training.ValidationSplit)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
