package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/stain"
)

// Config is the application configuration: the engine tuning plus the
// surrounding tooling. Fields are populated from defaults, then the config
// file, then STAIN_* environment variables, in that order.
type Config struct {
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	Taint  stain.Config `mapstructure:"taint" yaml:"taint"`
	Trace  TraceConfig  `mapstructure:"trace" yaml:"trace"`
	Report ReportConfig `mapstructure:"report" yaml:"report"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the terminal colors for each log level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// TraceConfig tunes the scenario runner.
type TraceConfig struct {
	// ScenarioDir is searched when a scenario argument names no file.
	ScenarioDir string `mapstructure:"scenario_dir" yaml:"scenario_dir"`

	// Concurrency caps scenarios running in parallel.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`

	// FailFast stops the run at the first failing scenario.
	FailFast bool `mapstructure:"fail_fast" yaml:"fail_fast"`

	// Timeout bounds a single scenario's execution.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ReportConfig selects how trace results are written.
type ReportConfig struct {
	// Format is one of console, json or junit.
	Format string `mapstructure:"format" yaml:"format"`

	// Output is a file path, or empty/"stdout" for standard output.
	Output string `mapstructure:"output" yaml:"output"`

	// NoColor disables styled console output even on a terminal.
	NoColor bool `mapstructure:"no_color" yaml:"no_color"`
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "stain")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Taint engine --
	v.SetDefault("taint.max_tracked_values", 0)
	v.SetDefault("taint.max_ranges_per_value", 0)
	v.SetDefault("taint.max_source_value_length", 0)
	v.SetDefault("taint.max_interned_sources", 0)
	v.SetDefault("taint.failure_log_interval", time.Duration(0))

	// -- Trace runner --
	v.SetDefault("trace.scenario_dir", "scenarios")
	v.SetDefault("trace.concurrency", 4)
	v.SetDefault("trace.fail_fast", false)
	v.SetDefault("trace.timeout", "30s")

	// -- Reporting --
	v.SetDefault("report.format", "console")
	v.SetDefault("report.output", "")
	v.SetDefault("report.no_color", false)
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper unmarshals and validates a configuration from v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	switch c.Report.Format {
	case "console", "json", "junit":
	default:
		return fmt.Errorf("report.format must be console, json or junit, got %q", c.Report.Format)
	}
	if c.Trace.Concurrency <= 0 {
		return fmt.Errorf("trace.concurrency must be a positive integer")
	}
	if c.Trace.Timeout <= 0 {
		return fmt.Errorf("trace.timeout must be a positive duration")
	}
	return nil
}

// Bind wires v to the given config file (optional), the working directory
// search path and the STAIN_* environment.
func Bind(v *viper.Viper, cfgFile string) {
	SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("stain")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("STAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}
