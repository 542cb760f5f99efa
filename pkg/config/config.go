package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"StockFrame/internal/domain/models"
	"StockFrame/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Logging     struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout" validate:"required"`
		TimeFormat string `yaml:"time_format"`
		Collector  struct {
			Enabled   bool          `yaml:"enabled"`
			Topic     string        `yaml:"topic" default:"stockframe.logs"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100" validate:"gte=1"`
			MinLevel  string        `yaml:"min_level" default:"error" validate:"oneof=warn error"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Server struct {
		Enabled         bool          `yaml:"enabled"`
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Alpaca struct {
		BaseURL      string        `yaml:"base_url" default:"https://data.alpaca.markets" validate:"url"`
		KeyID        string        `yaml:"key_id"`
		SecretKey    string        `yaml:"secret_key"`
		Timeframe    string        `yaml:"timeframe" default:"1Min" validate:"oneof=1Min"`
		PageLimit    int           `yaml:"page_limit" default:"10000" validate:"gte=0,lte=10000"`
		RateLimit    float64       `yaml:"rate_limit" default:"0.25" validate:"gt=0"`
		Burst        int           `yaml:"burst" default:"1" validate:"gte=1"`
		MaxRetries   int           `yaml:"max_retries" default:"3" validate:"gte=0"`
		RetryBackoff time.Duration `yaml:"retry_backoff" default:"2s"`
		Timeout      time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"alpaca"`
	Pipeline struct {
		Tickers        []string      `yaml:"tickers" default:"[\"AAPL\",\"TSLA\"]" validate:"min=1,dive,required"`
		Start          string        `yaml:"start"`
		End            string        `yaml:"end"`
		LookbackDays   int           `yaml:"lookback_days" default:"30" validate:"gte=1"`
		Interval       time.Duration `yaml:"interval"`
		FetchWorkers   int           `yaml:"fetch_workers" default:"1" validate:"gte=1,lte=64"`
		TickerTimeout  time.Duration `yaml:"ticker_timeout" default:"2m"`
		FeatureWorkers int           `yaml:"feature_workers" default:"4" validate:"gte=1,lte=64"`
		ShortHistory   string        `yaml:"short_history" default:"fail" validate:"oneof=fail degrade"`
		SessionStart   int           `yaml:"session_start_hour" default:"14" validate:"gte=0,lte=23"`
		SessionEnd     int           `yaml:"session_end_hour" default:"20" validate:"gte=0,lte=23"`
		MaxGridRows    int           `yaml:"max_grid_rows" default:"20000000" validate:"gte=0"`
	} `yaml:"pipeline"`
	Cache struct {
		Backend    string        `yaml:"backend" default:"none" validate:"oneof=none memory redis layered"`
		TTL        time.Duration `yaml:"ttl" default:"1h"`
		MaxEntries int           `yaml:"max_entries" default:"256"`
		LocalTTL   time.Duration `yaml:"local_ttl" default:"1m"`
		Redis      struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"stockframe:"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Sinks struct {
		File struct {
			Enabled bool   `yaml:"enabled" default:"true"`
			Format  string `yaml:"format" default:"csv" validate:"oneof=csv json parquet"`
			Path    string `yaml:"path" default:"data/features.csv"`
		} `yaml:"file"`
		ClickHouse struct {
			Enabled          bool          `yaml:"enabled"`
			Host             string        `yaml:"host" default:"localhost"`
			Port             int           `yaml:"port" default:"9000"`
			Database         string        `yaml:"database" default:"stockframe"`
			Table            string        `yaml:"table" default:"features"`
			User             string        `yaml:"user" default:"default"`
			Password         string        `yaml:"password"`
			UseHTTP          bool          `yaml:"use_http"`
			AsyncInsert      bool          `yaml:"async_insert"`
			WaitForAsync     bool          `yaml:"wait_for_async_insert"`
			DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
			ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
			MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
			BatchSize        int           `yaml:"batch_size" default:"2000" validate:"gte=1"`
		} `yaml:"clickhouse"`
		Kafka struct {
			Enabled      bool     `yaml:"enabled"`
			Brokers      []string `yaml:"brokers"`
			Topic        string   `yaml:"topic" default:"stockframe.features"`
			RequiredAcks int      `yaml:"required_acks" default:"-1"`
			Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
			Producer     struct {
				MaxAttempts  int           `yaml:"max_attempts" default:"3"`
				Linger       time.Duration `yaml:"linger" default:"100ms"`
				BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
				BatchSize    int           `yaml:"batch_size" default:"500"`
				WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
				ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
				Async        bool          `yaml:"async"`
			} `yaml:"producer"`
		} `yaml:"kafka"`
	} `yaml:"sinks"`
}

var validate = validator.New()

// Default returns a Config populated from struct defaults only.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	c, err := load(path, false)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A missing file is not an error; the environment and defaults are used.
func LoadWithEnv(path string) (*Config, error) {
	c, err := load(path, true)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.LookupEnv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func load(path string, optional bool) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables looked up with lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(k string) (string, bool) {
		v, ok := lookup(k)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}
	if v, ok := get("ALPACA_KEY"); ok {
		c.Alpaca.KeyID = v
	}
	if v, ok := get("ALPACA_SECRET"); ok {
		c.Alpaca.SecretKey = v
	}
	if v, ok := get("TICKERS"); ok {
		c.Pipeline.Tickers = strings.Split(v, ",")
	}
	if v, ok := get("PIPELINE_START"); ok {
		c.Pipeline.Start = v
	}
	if v, ok := get("PIPELINE_END"); ok {
		c.Pipeline.End = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := get("KAFKA_BROKERS"); ok {
		c.Sinks.Kafka.Brokers = strings.Split(v, ",")
	}
	if v, ok := get("KAFKA_TOPIC"); ok {
		c.Sinks.Kafka.Topic = v
	}
	if v, ok := get("CLICKHOUSE_HOST"); ok {
		c.Sinks.ClickHouse.Host = v
	}
	if v, ok := get("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	c.Pipeline.Tickers = normalizeTickers(c.Pipeline.Tickers)
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", models.ErrConfiguration, err)
	}
	if c.Alpaca.KeyID == "" {
		return fmt.Errorf("%w: alpaca.key_id is required (ALPACA_KEY)", models.ErrConfiguration)
	}
	if c.Alpaca.SecretKey == "" {
		return fmt.Errorf("%w: alpaca.secret_key is required (ALPACA_SECRET)", models.ErrConfiguration)
	}
	if c.Pipeline.SessionStart > c.Pipeline.SessionEnd {
		return fmt.Errorf("%w: pipeline.session_start_hour %d is after session_end_hour %d",
			models.ErrConfiguration, c.Pipeline.SessionStart, c.Pipeline.SessionEnd)
	}
	if c.Sinks.Kafka.Enabled && len(c.Sinks.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: sinks.kafka.brokers cannot be empty when kafka is enabled", models.ErrConfiguration)
	}
	if c.Logging.Collector.Enabled && !c.Sinks.Kafka.Enabled {
		return fmt.Errorf("%w: logging.collector requires sinks.kafka", models.ErrConfiguration)
	}
	if c.Sinks.File.Enabled && c.Sinks.File.Path == "" {
		return fmt.Errorf("%w: sinks.file.path is required when the file sink is enabled", models.ErrConfiguration)
	}
	if _, _, err := c.Range(time.Now()); err != nil {
		return fmt.Errorf("%w: %w", models.ErrConfiguration, err)
	}
	return nil
}

// Range resolves the fetch window. Without explicit bounds it ends at today
// 00:00 UTC and starts LookbackDays earlier.
func (c *Config) Range(now time.Time) (start, end time.Time, err error) {
	end = now.UTC().Truncate(24 * time.Hour)
	if c.Pipeline.End != "" {
		t, ok := util.ParseTime(c.Pipeline.End)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("pipeline.end: cannot parse %q", c.Pipeline.End)
		}
		end = t.UTC()
	}
	start = end.AddDate(0, 0, -c.Pipeline.LookbackDays)
	if c.Pipeline.Start != "" {
		t, ok := util.ParseTime(c.Pipeline.Start)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("pipeline.start: cannot parse %q", c.Pipeline.Start)
		}
		start = t.UTC()
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("pipeline range start %s is not before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}

func normalizeTickers(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
