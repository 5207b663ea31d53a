// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	RPCList      []string `mapstructure:"rpc_list"`
	WebSocketURL string   `mapstructure:"websocket_url"`
	PostgresURL  string   `mapstructure:"postgres_url"`
	DataDir      string   `mapstructure:"data_dir"`
	DebugLogging bool     `mapstructure:"debug_logging"`
	DryRun       bool     `mapstructure:"dry_run"`

	// Capital pool
	InitialPoolBalance float64 `mapstructure:"initial_pool_balance"`
	PositionSize       float64 `mapstructure:"position_size"`
	PoolTarget         float64 `mapstructure:"pool_target"`

	// Stage 1 filtering
	MinLiquidity        float64 `mapstructure:"min_liquidity"`
	MaxProcessingTimeMs int     `mapstructure:"max_processing_time_ms"`

	// Background rescoring
	MaxAttempts        int `mapstructure:"max_attempts"`
	RetryCooldownSec   int `mapstructure:"retry_cooldown_sec"`
	RescoreIntervalSec int `mapstructure:"rescore_interval_sec"`

	// Position monitoring
	MaxHoldTimeMinutes int `mapstructure:"max_hold_time_minutes"`
	MonitorIntervalMs  int `mapstructure:"monitor_interval_ms"`
	SummaryIntervalSec int `mapstructure:"summary_interval_sec"`
}

const (
	DefaultInitialPoolBalance = 600.0
	DefaultPositionSize       = 15.0
	DefaultPoolTarget         = 7000.0
	DefaultMinLiquidity       = 3.0
	DefaultMaxProcessingMs    = 3000
	DefaultMaxAttempts        = 5
	DefaultRetryCooldownSec   = 30
	DefaultRescoreIntervalSec = 30
	DefaultMaxHoldMinutes     = 30
	DefaultMonitorIntervalMs  = 5000
	DefaultSummaryIntervalSec = 60
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"data_dir":               "./data",
		"initial_pool_balance":   DefaultInitialPoolBalance,
		"position_size":          DefaultPositionSize,
		"pool_target":            DefaultPoolTarget,
		"min_liquidity":          DefaultMinLiquidity,
		"max_processing_time_ms": DefaultMaxProcessingMs,
		"max_attempts":           DefaultMaxAttempts,
		"retry_cooldown_sec":     DefaultRetryCooldownSec,
		"rescore_interval_sec":   DefaultRescoreIntervalSec,
		"max_hold_time_minutes":  DefaultMaxHoldMinutes,
		"monitor_interval_ms":    DefaultMonitorIntervalMs,
		"summary_interval_sec":   DefaultSummaryIntervalSec,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURL(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	if cfg.WebSocketURL != "" {
		if err := validateURL(cfg.WebSocketURL, "ws"); err != nil {
			return errors.New("invalid WebSocket URL protocol")
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.InitialPoolBalance <= 0 {
		return errors.New("invalid initial_pool_balance")
	}
	if cfg.PositionSize <= 0 {
		return errors.New("invalid position_size")
	}
	if cfg.PositionSize > cfg.InitialPoolBalance {
		return errors.New("position_size exceeds initial_pool_balance")
	}
	if cfg.PoolTarget <= cfg.InitialPoolBalance {
		return errors.New("pool_target must exceed initial_pool_balance")
	}
	if cfg.MinLiquidity <= 0 {
		return errors.New("invalid min_liquidity")
	}
	if cfg.MaxProcessingTimeMs <= 0 {
		return errors.New("invalid max_processing_time_ms")
	}
	if cfg.MaxAttempts <= 0 {
		return errors.New("invalid max_attempts")
	}
	if cfg.RetryCooldownSec < 0 || cfg.RescoreIntervalSec <= 0 {
		return errors.New("invalid rescorer intervals")
	}
	if cfg.MaxHoldTimeMinutes <= 0 {
		return errors.New("invalid max_hold_time_minutes")
	}
	if cfg.MonitorIntervalMs <= 0 || cfg.SummaryIntervalSec <= 0 {
		return errors.New("invalid monitoring intervals")
	}
	return nil
}

// RetryCooldown returns the rescorer cool-down as a duration.
func (c *Config) RetryCooldown() time.Duration {
	return time.Duration(c.RetryCooldownSec) * time.Second
}

// RescoreInterval returns the rescorer tick interval as a duration.
func (c *Config) RescoreInterval() time.Duration {
	return time.Duration(c.RescoreIntervalSec) * time.Second
}

// ProcessingBudget returns the stage-1 wall-clock budget as a duration.
func (c *Config) ProcessingBudget() time.Duration {
	return time.Duration(c.MaxProcessingTimeMs) * time.Millisecond
}

// MonitorInterval returns the position tick interval as a duration.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.MonitorIntervalMs) * time.Millisecond
}

// SummaryInterval returns the status summary interval as a duration.
func (c *Config) SummaryInterval() time.Duration {
	return time.Duration(c.SummaryIntervalSec) * time.Second
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("POOL_SNIPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envPostgres := v.GetString("POSTGRES_URL")
	if envPostgres != "" {
		cfg.PostgresURL = envPostgres
	}

	envRPCList := v.GetString("RPC_LIST")
	if envRPCList != "" {
		rpcs := strings.Split(envRPCList, ",")
		var cleanRPCs []string
		for _, rpc := range rpcs {
			clean := strings.TrimSpace(rpc)
			if clean != "" {
				cleanRPCs = append(cleanRPCs, clean)
			}
		}
		if len(cleanRPCs) > 0 {
			cfg.RPCList = cleanRPCs
		}
	}
	return nil
}
