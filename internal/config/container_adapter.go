package config

import (
	"github.com/garyjia/expense-approval/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
			AutoMigrate:     c.Database.AutoMigrate,
		},
		Workflow: container.WorkflowConfig{
			LockTimeout:      c.Workflow.LockTimeout,
			LockIdleTTL:      c.Workflow.LockIdleTTL,
			JanitorInterval:  c.Workflow.JanitorInterval,
			MaxChainDepth:    c.Workflow.MaxChainDepth,
			EventMaxInFlight: c.Workflow.EventMaxInFlight,
		},
		Currency: container.CurrencyConfig{
			Base:  c.Currency.Base,
			Rates: c.Currency.Rates,
		},
		OrgChart: container.OrgChartConfig{
			Provider:          c.OrgChart.Provider,
			TerminalApprovers: c.OrgChart.TerminalApprovers,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
			Mode:            c.Server.Mode,
		},
	}
}
