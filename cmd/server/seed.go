package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/expense-approval/internal/container"
	"github.com/garyjia/expense-approval/internal/infrastructure/fixture"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/repository"
)

func init() {
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>",
	Short: "Load companies, users and approval rules from a YAML fixture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := fixture.Load(args[0])
		if err != nil {
			return err
		}

		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx := context.Background()
		dbCfg := cfg.ToContainerConfig().Database
		dbCfg.AutoMigrate = true
		bundle, err := container.ProvideDatabase(ctx, &dbCfg, logger)
		if err != nil {
			return err
		}
		defer bundle.Conn.Close()

		seeder := fixture.NewSeeder(
			bundle.TransactionMgr,
			repository.NewCompanyRepository(bundle.SqlDB, logger),
			repository.NewUserRepository(bundle.SqlDB, logger),
			repository.NewRuleRepository(bundle.SqlDB, logger),
			logger,
		)
		res, err := seeder.Apply(ctx, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d companies %v, %d users, %d rules\n",
			len(res.Companies), res.Companies, res.Users, res.Rules)
		return nil
	},
}
