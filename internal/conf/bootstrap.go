// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment
// variables, with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/durationpb"
)

// rawSource mirrors the pipeline.sources YAML shape for viper unmarshaling;
// durations are converted to durationpb afterwards.
type rawSource struct {
	Name           string            `mapstructure:"name"`
	BaseURL        string            `mapstructure:"base_url"`
	Endpoints      map[string]string `mapstructure:"endpoints"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	RateLimit      struct {
		MaxCalls int32         `mapstructure:"max_calls"`
		Period   time.Duration `mapstructure:"period"`
	} `mapstructure:"rate_limit"`
	CircuitBreaker struct {
		FailureThreshold int32         `mapstructure:"failure_threshold"`
		RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
		SuccessThreshold int32         `mapstructure:"success_threshold"`
	} `mapstructure:"circuit_breaker"`
	Attribution   string  `mapstructure:"attribution"`
	TermsAccepted bool    `mapstructure:"terms_accepted"`
	CostPerCall   float64 `mapstructure:"cost_per_call"`
}

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies
// defaults, and allows overrides from environment variables prefixed with
// SCOUTFEED_.
//
// Configuration priority: CLI flags > Environment variables > Config file >
// Defaults.
//
// Required environment variables:
//   - MYSQL_DSN or SCOUTFEED_DATA_DATABASE_SOURCE: MySQL connection string
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	// Enable environment variable support with SCOUTFEED_ prefix
	v.SetEnvPrefix("SCOUTFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow direct environment variable names for required fields
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "SCOUTFEED_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "SCOUTFEED_DATA_REDIS_ADDR")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	var rawSources []rawSource
	if err := v.UnmarshalKey("pipeline.sources", &rawSources); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline.sources: %w", err)
	}

	sources := make([]*Source, 0, len(rawSources))
	for _, rs := range rawSources {
		sources = append(sources, &Source{
			Name:           rs.Name,
			BaseUrl:        rs.BaseURL,
			Endpoints:      rs.Endpoints,
			RequestTimeout: durationpb.New(rs.RequestTimeout),
			RateLimit: &Source_RateLimit{
				MaxCalls: rs.RateLimit.MaxCalls,
				Period:   durationpb.New(rs.RateLimit.Period),
			},
			CircuitBreaker: &Source_CircuitBreaker{
				FailureThreshold: rs.CircuitBreaker.FailureThreshold,
				RecoveryTimeout:  durationpb.New(rs.CircuitBreaker.RecoveryTimeout),
				SuccessThreshold: rs.CircuitBreaker.SuccessThreshold,
			},
			Attribution:   rs.Attribution,
			TermsAccepted: rs.TermsAccepted,
			CostPerCall:   rs.CostPerCall,
		})
	}

	checkIntervals := make(map[string]int32)
	for name := range v.GetStringMap("pipeline.compliance.check_interval_minutes") {
		checkIntervals[name] = int32(v.GetInt("pipeline.compliance.check_interval_minutes." + name))
	}

	bc := &Bootstrap{
		Server: &Server{
			Http: &Server_HTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: durationpb.New(v.GetDuration("server.http.timeout")),
			},
		},
		Data: &Data{
			Database: &Data_Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Data_Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				ReadTimeout:  durationpb.New(v.GetDuration("data.redis.read_timeout")),
				WriteTimeout: durationpb.New(v.GetDuration("data.redis.write_timeout")),
			},
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
		Pipeline: &Pipeline{
			Sources: sources,
			Monitor: &Monitor{
				FailureStreakAlert: int32(v.GetInt("pipeline.monitor.failure_streak_alert")),
				FreshnessMaxAge:    durationpb.New(v.GetDuration("pipeline.monitor.freshness_max_age")),
				AlertHistorySize:   int32(v.GetInt("pipeline.monitor.alert_history_size")),
			},
			Compliance: &Compliance{
				RetentionMaxAge:      durationpb.New(v.GetDuration("pipeline.compliance.retention_max_age")),
				CostBudget:           v.GetFloat64("pipeline.compliance.cost_budget"),
				CheckIntervalMinutes: checkIntervals,
			},
		},
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 2*time.Minute)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Pipeline defaults
	v.SetDefault("pipeline.monitor.failure_streak_alert", 5)
	v.SetDefault("pipeline.monitor.freshness_max_age", 24*time.Hour)
	v.SetDefault("pipeline.monitor.alert_history_size", 100)
	v.SetDefault("pipeline.compliance.retention_max_age", 90*24*time.Hour)
}

// Validate checks that all required configuration fields are present and
// valid. It returns an error listing all missing required fields.
func Validate(bc *Bootstrap) error {
	var missingFields []string

	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		missingFields = append(missingFields, "data.database.source (MYSQL_DSN)")
	}

	if bc.Pipeline == nil || len(bc.Pipeline.Sources) == 0 {
		missingFields = append(missingFields, "pipeline.sources (at least one source)")
	} else {
		for i, src := range bc.Pipeline.Sources {
			if src.Name == "" {
				missingFields = append(missingFields, fmt.Sprintf("pipeline.sources[%d].name", i))
			}
			if src.BaseUrl == "" {
				missingFields = append(missingFields, fmt.Sprintf("pipeline.sources[%d].base_url", i))
			}
		}
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missingFields, ", "))
	}

	return nil
}
