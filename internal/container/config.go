// Package container provides dependency injection and lifecycle management
// for the expense approval service.
package container

import (
	"fmt"
	"strings"
	"time"
)

// Org chart providers understood by ProvideOrgChart
const (
	OrgChartDatabase = "database"
	OrgChartLark     = "lark"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Workflow engine tuning
	Workflow WorkflowConfig

	// Currency conversion rates
	Currency CurrencyConfig

	// Where manager chains are read from
	OrgChart OrgChartConfig

	// Lark API configuration, only used by the lark org chart
	Lark LarkConfig

	// Server configuration
	Server ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long SQLite waits on a locked database
	BusyTimeout time.Duration

	// AutoMigrate applies the embedded migrations on start
	AutoMigrate bool
}

// WorkflowConfig holds approval engine settings.
type WorkflowConfig struct {
	// LockTimeout bounds the wait for a per-expense lock
	LockTimeout time.Duration

	// LockIdleTTL is how long an unused lock entry survives
	LockIdleTTL time.Duration

	// JanitorInterval is how often idle locks are swept
	JanitorInterval time.Duration

	// MaxChainDepth bounds manager walks
	MaxChainDepth int

	// EventMaxInFlight bounds concurrently running async event handlers
	EventMaxInFlight int64
}

// CurrencyConfig holds the static rate table.
type CurrencyConfig struct {
	// Base is the currency whose rate is 1
	Base string

	// Rates maps currency code to units of Base
	Rates map[string]string
}

// OrgChartConfig selects the org chart provider.
type OrgChartConfig struct {
	Provider          string
	TerminalApprovers []string
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	// AppID is the Lark application ID
	AppID string

	// AppSecret is the Lark application secret
	AppSecret string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Mode            string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/expenses.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			BusyTimeout:     5 * time.Second,
			AutoMigrate:     true,
		},
		Workflow: WorkflowConfig{
			LockTimeout:      3 * time.Second,
			LockIdleTTL:      5 * time.Minute,
			JanitorInterval:  time.Minute,
			MaxChainDepth:    10,
			EventMaxInFlight: 64,
		},
		Currency: CurrencyConfig{
			Base:  "USD",
			Rates: map[string]string{},
		},
		OrgChart: OrgChartConfig{
			Provider: OrgChartDatabase,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Mode:            "release",
		},
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.Currency.Base) == "" {
		return fmt.Errorf("currency.base is required")
	}
	if c.Workflow.MaxChainDepth < 1 {
		return fmt.Errorf("workflow.max_chain_depth must be positive")
	}

	switch c.OrgChart.Provider {
	case "", OrgChartDatabase:
	case OrgChartLark:
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required")
		}
	default:
		return fmt.Errorf("unknown org_chart.provider %q", c.OrgChart.Provider)
	}
	return nil
}
