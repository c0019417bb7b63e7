/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mautops/permit-gin/internal/api"
	"github.com/mautops/permit-gin/internal/config"
	"github.com/mautops/permit-gin/internal/database"
	"github.com/mautops/permit-gin/internal/service"
	"github.com/spf13/cobra"
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Close expired permits",
	Long: `Run a single auto-close sweep over all permits.
Expired regular permits and expired extended permits are closed and an
action history entry is recorded for each. The sweep is idempotent, so
it is safe to schedule this command from cron.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// 2. 连接数据库
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		defer func() {
			sqlDB, _ := db.DB()
			if sqlDB != nil {
				sqlDB.Close()
			}
		}()

		// 3. 执行清扫
		sweeper := service.NewSweeperService(db, api.GetLogger())
		result, err := sweeper.Sweep(context.Background(), time.Now())
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}

		log.Printf("Sweep completed: %d regular, %d extended permits closed, %d failures",
			result.RegularClosed, result.ExtendedClosed, len(result.Failures))
		for _, failure := range result.Failures {
			log.Printf("  failed to close permit %s: %s", failure.PermitID, failure.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().String("config", "", "Config file path (default: search in current directory, ./config, or $HOME/.permit-gin)")
}
