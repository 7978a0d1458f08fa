package config

import (
	"strings"
)

const DEFAULT_METRICS_ADDR = "127.0.0.1:9464"

// ApplyDefaults fills zero values. Explicit values are kept.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyEngineDefaults(&cfg.Engine)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" { cfg.Level = "INFO" }
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" { cfg.Format = "text" }
	if cfg.Output == "" { cfg.Output = "stderr" }
}

func applyEngineDefaults(cfg *EngineConfig) {
	if cfg.Backend == "" { cfg.Backend = "threadpool" }
	cfg.Backend = strings.ToLower(cfg.Backend)
	if cfg.Threadpool == nil { cfg.Threadpool = map[string]any{} }
	if cfg.Uring == nil { cfg.Uring = map[string]any{} }
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Addr == "" { cfg.Addr = DEFAULT_METRICS_ADDR }
}

// Default is the configuration written by WriteDefault.
func Default() *Config {
	cfg := &Config{
		Engine: EngineConfig{
			Backend:	"threadpool",
			Inline:		true,
			Threadpool:	map[string]any{
				"workers":			16,
				"poll_interval":	"10ms",
			},
			Uring:		map[string]any{
				"ring_entries":		128,
				"depth_target":		64,
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
