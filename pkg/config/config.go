package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Backend struct {
		// kafka: ticks go through the ticks topic and a consumer group drives the candle engine.
		// direct: ticks are handed to the candle engine in-process.
		Type       string `yaml:"type" default:"kafka" validate:"oneof=kafka direct"`
		BufferSize int    `yaml:"buffer_size" default:"2000" validate:"gt=0"`
	} `yaml:"backend"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Redis      RedisConfig      `yaml:"redis"`
	Exchanges  struct {
		Binance ExchangeConfig `yaml:"binance"`
		Alpaca  ExchangeConfig `yaml:"alpaca"`
	} `yaml:"exchanges"`
	Candles struct {
		Timeframes []string `yaml:"timeframes" default:"[\"1m\",\"5m\",\"15m\",\"1h\"]" validate:"min=1"`
	} `yaml:"candles"`
	Features struct {
		Window  int `yaml:"window" default:"20" validate:"gte=2"`
		MinSize int `yaml:"min_size" default:"20" validate:"gte=2"`
	} `yaml:"features"`
	Regime    RegimeConfig `yaml:"regime"`
	Decision  struct {
		Threshold float64       `yaml:"threshold" default:"0.6" validate:"gte=0,lte=1"`
		Cooldown  time.Duration `yaml:"cooldown" default:"5m"`
	} `yaml:"decision"`
	Risk      RiskConfig `yaml:"risk"`
	Portfolio struct {
		Store string `yaml:"store" default:"memory" validate:"oneof=redis memory"`
	} `yaml:"portfolio"`
	Execution struct {
		AutoExecute bool   `yaml:"auto_execute"`
		// Timeframe whose latest feature vector supplies price and ATR for decision-driven trades.
		Timeframe   string `yaml:"timeframe" default:"1m"`
	} `yaml:"execution"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	TicksTopic   string   `yaml:"ticks_topic" default:"ticks"`
	LiveTopic    string   `yaml:"live_topic" default:"live_updates"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"snappy"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"candle-engine"`
		Workers    int           `yaml:"workers" default:"4"`
		BufferSize int           `yaml:"buffer_size" default:"256"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic   string        `yaml:"dlq_topic" default:"ticks_dlq"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"tradeflow"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

type RedisConfig struct {
	// Enabled wires the shared order-book cache, the poller leader lock and the redis portfolio store.
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size" default:"10"`
	Prefix   string `yaml:"prefix" default:"tradeflow"`
}

type ExchangeConfig struct {
	Enabled           bool          `yaml:"enabled"`
	WebSocketURL      string        `yaml:"websocket_url"`
	APIKey            string        `yaml:"api_key"`
	APISecret         string        `yaml:"api_secret"`
	Symbols           []string      `yaml:"symbols"`
	OrderBook         bool          `yaml:"orderbook"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay" default:"5s"`
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay" default:"1m"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout" default:"20s"`
	PingInterval      time.Duration `yaml:"ping_interval" default:"15s"`
}

type RegimeConfig struct {
	ClassifierURL       string             `yaml:"classifier_url"`
	Timeout             time.Duration      `yaml:"timeout" default:"5s"`
	PollInterval        time.Duration      `yaml:"poll_interval" default:"10s"`
	StabilityWindow     int                `yaml:"stability_window" default:"5" validate:"gte=1"`
	MinConfirmations    int                `yaml:"min_confirmations" default:"3" validate:"gte=1"`
	ConfidenceThreshold float64            `yaml:"confidence_threshold" default:"0.6" validate:"gte=0,lte=1"`
	Timeframes          []string           `yaml:"timeframes" default:"[\"1h\",\"15m\",\"5m\",\"1m\"]" validate:"min=1"`
	Weights             map[string]float64 `yaml:"weights" default:"{\"1h\":0.4,\"15m\":0.3,\"5m\":0.2,\"1m\":0.1}"`
	Instruments         []Instrument       `yaml:"instruments" validate:"dive"`
}

type Instrument struct {
	Market string `yaml:"market" json:"market" validate:"required"`
	Symbol string `yaml:"symbol" json:"symbol" validate:"required"`
}

type RiskConfig struct {
	TotalCapital        float64 `yaml:"total_capital" default:"100000" validate:"gt=0"`
	RiskPerTrade        float64 `yaml:"risk_per_trade" default:"0.02" validate:"gt=0,lte=1"`
	MaxExposurePerAsset float64 `yaml:"max_exposure_per_asset" default:"0.2" validate:"gt=0,lte=1"`
	MaxTotalExposure    float64 `yaml:"max_total_exposure" default:"0.8" validate:"gt=0,lte=1"`
	ATRMultiplier       float64 `yaml:"atr_multiplier" default:"1.5" validate:"gt=0"`
	KellyEnabled        bool    `yaml:"kelly_enabled"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("CLASSIFIER_URL"); v != "" {
		c.Regime.ClassifierURL = v
	}
	if v := getenv("ALPACA_API_KEY"); v != "" {
		c.Exchanges.Alpaca.APIKey = v
	}
	if v := getenv("ALPACA_API_SECRET"); v != "" {
		c.Exchanges.Alpaca.APISecret = v
	}
	if v := getenv("BINANCE_SYMBOLS"); v != "" {
		c.Exchanges.Binance.Symbols = strings.Split(v, ",")
	}
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when backend.type is kafka")
	}
	if c.Features.MinSize > c.Features.Window {
		return fmt.Errorf("features.min_size (%d) must not exceed features.window (%d)", c.Features.MinSize, c.Features.Window)
	}
	if c.Regime.MinConfirmations > c.Regime.StabilityWindow {
		return fmt.Errorf("regime.min_confirmations (%d) must not exceed regime.stability_window (%d)",
			c.Regime.MinConfirmations, c.Regime.StabilityWindow)
	}
	if c.Exchanges.Binance.Enabled && len(c.Exchanges.Binance.Symbols) == 0 {
		return fmt.Errorf("exchanges.binance.symbols cannot be empty")
	}
	if c.Exchanges.Alpaca.Enabled {
		if len(c.Exchanges.Alpaca.Symbols) == 0 {
			return fmt.Errorf("exchanges.alpaca.symbols cannot be empty")
		}
		if c.Exchanges.Alpaca.APIKey == "" || c.Exchanges.Alpaca.APISecret == "" {
			return fmt.Errorf("exchanges.alpaca api_key and api_secret are required")
		}
	}
	if c.Portfolio.Store == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("portfolio.store redis requires redis.enabled")
	}
	if c.Regime.ClassifierURL != "" && len(c.Regime.Instruments) == 0 {
		return fmt.Errorf("regime.instruments cannot be empty when classifier_url is set")
	}
	return nil
}
