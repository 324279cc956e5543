package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment override, e.g. EXPENSE_SERVER_PORT
const EnvPrefix = "EXPENSE"

// Org chart providers
const (
	OrgChartDatabase = "database"
	OrgChartLark     = "lark"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Currency CurrencyConfig `mapstructure:"currency"`
	OrgChart OrgChartConfig `mapstructure:"org_chart"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// WorkflowConfig tunes the approval engine
type WorkflowConfig struct {
	LockTimeout      time.Duration `mapstructure:"lock_timeout"`
	LockIdleTTL      time.Duration `mapstructure:"lock_idle_ttl"`
	JanitorInterval  time.Duration `mapstructure:"janitor_interval"`
	MaxChainDepth    int           `mapstructure:"max_chain_depth"`
	EventMaxInFlight int64         `mapstructure:"event_max_in_flight"`
}

// CurrencyConfig is the static rate table, quoted against Base
type CurrencyConfig struct {
	Base  string            `mapstructure:"base"`
	Rates map[string]string `mapstructure:"rates"`
}

// OrgChartConfig selects where reporting lines come from
type OrgChartConfig struct {
	Provider          string   `mapstructure:"provider"`
	TerminalApprovers []string `mapstructure:"terminal_approvers"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configuration from an optional YAML file, a .env file in the working
// directory and EXPENSE_* environment variables, in increasing precedence.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(configPath); statErr != nil {
				return nil, fmt.Errorf("config file %s: %w", configPath, statErr)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.mode", "release")

	// Database defaults
	v.SetDefault("database.path", "data/expenses.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.auto_migrate", true)

	// Workflow defaults
	v.SetDefault("workflow.lock_timeout", 3*time.Second)
	v.SetDefault("workflow.lock_idle_ttl", 5*time.Minute)
	v.SetDefault("workflow.janitor_interval", time.Minute)
	v.SetDefault("workflow.max_chain_depth", 10)
	v.SetDefault("workflow.event_max_in_flight", 64)

	// Currency defaults
	v.SetDefault("currency.base", "USD")

	// Org chart defaults
	v.SetDefault("org_chart.provider", OrgChartDatabase)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the unprefixed credential variables
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("lark.app_id", EnvPrefix+"_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", EnvPrefix+"_LARK_APP_SECRET", "LARK_APP_SECRET")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Workflow.LockTimeout <= 0 {
		return fmt.Errorf("workflow.lock_timeout must be positive")
	}
	if c.Workflow.MaxChainDepth <= 0 {
		return fmt.Errorf("workflow.max_chain_depth must be positive")
	}
	if len(c.Currency.Base) != 3 {
		return fmt.Errorf("currency.base must be a 3-letter code")
	}

	switch c.OrgChart.Provider {
	case OrgChartDatabase:
	case OrgChartLark:
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required for the lark org chart")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required for the lark org chart")
		}
	default:
		return fmt.Errorf("unknown org_chart.provider %q", c.OrgChart.Provider)
	}

	return nil
}
