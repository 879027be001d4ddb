package config

import "github.com/TrustWeave/LogArmor/pkg/common"

func defaultConfig() Config {
	return Config{
		Sanitizer: SanitizerConfig{
			Level:         "standard",
			MaxLineLength: common.DefaultMaxLineLength,
		},
		Objects: ObjectsConfig{
			Level:             "standard",
			MaxDepth:          common.DefaultMaxDepth,
			MaxObjectSize:     common.DefaultMaxObjectSize,
			MaxProperties:     common.DefaultMaxProperties,
			MaxStringLength:   common.DefaultMaxLineLength,
			MaxProcessingTime: common.DefaultMaxProcessingTime,
			BatchConcurrency:  common.DefaultBatchConcurrency,
		},
		Monitor: MonitorConfig{
			WindowSize:     common.DefaultWindowSize,
			AlertThreshold: common.DefaultAlertThreshold,
			BlockDuration:  common.DefaultBlockDuration,
		},
		Cache: CacheConfig{
			Enabled:       true,
			MaxEntries:    common.DefaultCacheSize,
			TTL:           common.DefaultCacheTTL,
			SweepInterval: common.DefaultSweepInterval,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}
