package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the process-wide engine defaults. Component options fall back
// to these values when a field is zero. Loaded once with Load; read through
// GetConfig.
type Config struct {
	Sanitizer SanitizerConfig `mapstructure:"sanitizer"`
	Objects   ObjectsConfig   `mapstructure:"objects"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type SanitizerConfig struct {
	Level              string `mapstructure:"level"`
	MaxLineLength      int    `mapstructure:"max_line_length"`
	PreserveFormatting bool   `mapstructure:"preserve_formatting"`
	NormalizeUnicode   bool   `mapstructure:"normalize_unicode"`
}

type ObjectsConfig struct {
	Level             string        `mapstructure:"level"`
	MaxDepth          int           `mapstructure:"max_depth"`
	MaxObjectSize     int64         `mapstructure:"max_object_size"`
	MaxProperties     int           `mapstructure:"max_properties"`
	MaxStringLength   int           `mapstructure:"max_string_length"`
	MaxProcessingTime time.Duration `mapstructure:"max_processing_time"`
	MaskKeywords      []string      `mapstructure:"mask_keywords"`
	BatchConcurrency  int           `mapstructure:"batch_concurrency"`
}

type MonitorConfig struct {
	WindowSize     time.Duration `mapstructure:"window_size"`
	AlertThreshold int           `mapstructure:"alert_threshold"`
	EnableBlocking bool          `mapstructure:"enable_blocking"`
	BlockDuration  time.Duration `mapstructure:"block_duration"`
}

type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxEntries    int           `mapstructure:"max_entries"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type MetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	EnableScanTimes bool `mapstructure:"enable_scan_times"`
	EnableCacheHits bool `mapstructure:"enable_cache_hits"`
}

var globalConfig = defaultConfig()

// Load reads config.yaml from configPath (plus ./config and the working
// directory) and merges LOGARMOR_* environment variables over it. A missing
// file is not an error; environment variables and defaults still apply.
// An optional .env file is honored for local tooling.
func Load(configPath string) error {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LOGARMOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyEnvOverrides(v, &cfg)

	globalConfig = cfg
	return nil
}

// Viper only merges automatic env vars into Unmarshal for keys present in
// the file, so the common ones are re-read explicitly here.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if s := v.GetString("sanitizer.level"); s != "" {
		cfg.Sanitizer.Level = s
	}
	if n := v.GetInt("sanitizer.max_line_length"); n > 0 {
		cfg.Sanitizer.MaxLineLength = n
	}
	if n := v.GetInt("objects.max_depth"); n > 0 {
		cfg.Objects.MaxDepth = n
	}
	if n := v.GetInt("monitor.alert_threshold"); n > 0 {
		cfg.Monitor.AlertThreshold = n
	}
	if v.IsSet("metrics.enabled") {
		cfg.Metrics.Enabled = v.GetBool("metrics.enabled")
	}
}

// GetConfig returns the loaded configuration, or the built-in defaults when
// Load was never called.
func GetConfig() *Config {
	cfg := globalConfig
	return &cfg
}

// Reset restores the built-in defaults. Intended for tests.
func Reset() {
	globalConfig = defaultConfig()
}
