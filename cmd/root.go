// Package cmd holds the lifequest command line: serve, migrate and seed.
package cmd

import (
	"fmt"
	"os"

	"github.com/Bekzhanizb/LifeQuestBackend/config"
	"github.com/Bekzhanizb/LifeQuestBackend/db"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lifequest",
		Short:         "LifeQuest backend: gamified tasks, calendar agent and syllabus parsing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSeedCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads config, starts logging and opens the database.
func bootstrap() (config.Config, *gorm.DB, error) {
	cfg := config.Load()
	utils.InitLogger(cfg.LogFile, cfg.Debug)

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		return cfg, nil, fmt.Errorf("connecting to database: %w", err)
	}
	return cfg, conn, nil
}

func closeDB(conn *gorm.DB) {
	if sqlDB, err := conn.DB(); err == nil {
		sqlDB.Close()
	}
}
