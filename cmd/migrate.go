package cmd

import (
	"fmt"

	"github.com/Bekzhanizb/LifeQuestBackend/db"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(conn)
			defer utils.Logger.Sync()

			if err := db.Migrate(conn); err != nil {
				return fmt.Errorf("migrating: %w", err)
			}
			color.Green("Schema is up to date.")
			return nil
		},
	}
}
