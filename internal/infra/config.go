package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the deployment configuration: feed endpoints, friction
// bounds, storage and logging. The strategy doctrine is deliberately NOT
// here — its constants are locked in code and cannot be tuned at runtime.
type Config struct {
	App struct {
		Name    string `yaml:"name" default:"tradecore"`
		Version string `yaml:"version" default:"dev"`
	} `yaml:"app"`

	Feed struct {
		WSURL         string   `yaml:"ws_url" validate:"omitempty,startswith=ws"`
		Instruments   []string `yaml:"instruments" validate:"min=1"`
		StaleAfterSec int      `yaml:"stale_after_sec" default:"120" validate:"gt=0"`
	} `yaml:"feed"`

	Execution struct {
		MaxSlippagePts float64 `yaml:"max_slippage_pts" default:"2" validate:"gt=0"`
		MaxLatencyMS   int64   `yaml:"max_latency_ms" default:"500" validate:"gt=0"`
	} `yaml:"execution"`

	Storage struct {
		Path string `yaml:"path" default:"data/journal.db"`
	} `yaml:"storage"`

	Metrics struct {
		Addr string `yaml:"addr" default:":9100"`
	} `yaml:"metrics"`

	Control struct {
		Addr string `yaml:"addr" default:"localhost:9101"`
	} `yaml:"control"`

	Logging struct {
		Level string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies defaults,
// environment overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Feed.WSURL != "" && !strings.HasPrefix(c.Feed.WSURL, "ws://") && !strings.HasPrefix(c.Feed.WSURL, "wss://") {
		return fmt.Errorf("invalid feed WS URL: %s", c.Feed.WSURL)
	}
	return nil
}

// overrideWithEnv lets the environment override endpoint/secret-ish values.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("TRADECORE_FEED_URL"); url != "" {
		cfg.Feed.WSURL = url
	}
	if path := os.Getenv("TRADECORE_STORAGE_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if level := os.Getenv("TRADECORE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
