package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/feedwatch/metrics-alerting/detector"
	"github.com/pelletier/go-toml/v2"
)

// Known boundary estimation strategies
const (
	StrategyAdaptive = "adaptive"
	StrategyFixed    = "fixed"
)

// MetricConfig defines a single monitored metric and its boundary strategy
type MetricConfig struct {
	Name         string  `toml:"Name"`
	DisplayName  string  `toml:"DisplayName"`
	Strategy     string  `toml:"Strategy"`
	SpreadFactor float64 `toml:"SpreadFactor"`
	WindowSize   int     `toml:"WindowSize"`
	LowerBound   float64 `toml:"LowerBound"`
	UpperBound   float64 `toml:"UpperBound"`
}

// Display returns the human-facing metric name used in messages and charts
func (mc MetricConfig) Display() string {
	if len(mc.DisplayName) > 0 {
		return mc.DisplayName
	}
	if len(mc.Name) == 0 {
		return mc.Name
	}

	return strings.ToUpper(mc.Name[:1]) + mc.Name[1:]
}

// GeneralConfig holds the run cadence and alert destination settings.
// ChannelID is populated from the environment at startup, not from the file
type GeneralConfig struct {
	ChannelID                int64  `toml:"-"`
	DashboardURL             string `toml:"DashboardURL"`
	IntervalInSeconds        uint32 `toml:"IntervalInSeconds"`
	NotifyTimeoutInSeconds   uint32 `toml:"NotifyTimeoutInSeconds"`
	FetchRetries             uint32 `toml:"FetchRetries"`
	FetchRetryDelayInSeconds uint32 `toml:"FetchRetryDelayInSeconds"`
}

// WarehouseConfig holds the non-secret warehouse connection settings
type WarehouseConfig struct {
	Addr                 string `toml:"Addr"`
	Database             string `toml:"Database"`
	DialTimeoutInSeconds uint32 `toml:"DialTimeoutInSeconds"`
}

// StorageConfig holds the run-history database settings
type StorageConfig struct {
	DBPath           string `toml:"DBPath"`
	RetentionSeconds int    `toml:"RetentionSeconds"`
}

// APIConfig holds the status web server settings
type APIConfig struct {
	ListenAddress string `toml:"ListenAddress"`
}

// Config maps to the config.toml file for the alerting service
type Config struct {
	General   GeneralConfig   `toml:"General"`
	Warehouse WarehouseConfig `toml:"Warehouse"`
	Storage   StorageConfig   `toml:"Storage"`
	API       APIConfig       `toml:"API"`
	Metrics   []MetricConfig  `toml:"Metrics"`
}

// LoadConfig parses a TOML file into the Config struct, applies the adaptive
// strategy defaults and validates the metrics list
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filepath, err)
	}

	var cfg Config
	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.applyDefaults()
	err = cfg.validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	for i := range cfg.Metrics {
		mc := &cfg.Metrics[i]
		if mc.Strategy != StrategyAdaptive {
			continue
		}

		if mc.SpreadFactor == 0 {
			mc.SpreadFactor = detector.DefaultSpreadFactor
		}
		if mc.WindowSize == 0 {
			mc.WindowSize = detector.DefaultWindowSize
		}
	}
}

func (cfg *Config) validate() error {
	if len(cfg.Metrics) == 0 {
		return fmt.Errorf("no metrics configured")
	}

	for _, mc := range cfg.Metrics {
		if len(mc.Name) == 0 {
			return fmt.Errorf("metric with empty name")
		}

		switch mc.Strategy {
		case StrategyAdaptive:
			if mc.SpreadFactor <= 0 {
				return fmt.Errorf("metric '%s': spread factor must be positive", mc.Name)
			}
			if mc.WindowSize < 1 {
				return fmt.Errorf("metric '%s': window size must be positive", mc.Name)
			}
		case StrategyFixed:
			if mc.LowerBound > mc.UpperBound {
				return fmt.Errorf("metric '%s': lower bound exceeds upper bound", mc.Name)
			}
		default:
			return fmt.Errorf("metric '%s': unknown strategy '%s'", mc.Name, mc.Strategy)
		}
	}

	return nil
}
