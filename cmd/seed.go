package cmd

import (
	"fmt"

	"github.com/Bekzhanizb/LifeQuestBackend/db"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the default shop catalog when the shop is empty",
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
			n, err := db.SeedShop(conn)
			if err != nil {
				return fmt.Errorf("seeding shop: %w", err)
			}
			if n == 0 {
				color.Yellow("Shop already has items, nothing to seed.")
				return nil
			}
			color.Green("Seeded %d shop items.", n)
			return nil
		},
	}
}
