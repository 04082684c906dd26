package commands

import (
	"fmt"
	"os"
	"strconv"
	"umsassist-backend/internal/leaderboard"
	"umsassist-backend/pkg/configutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type Config struct {
	Leaderboard leaderboard.Config `json:"leaderboard"`
}

var leaderboardConfig *string

func init() {
	leaderboardConfig = leaderboardCmd.Flags().String("config", "config.json5", "Server config to read the store settings from.")
	rootCmd.AddCommand(leaderboardCmd)
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard [--config <path/to/config.json5>]",
	Short: "Prints the top of the leaderboard from the configured store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configutil.ReadConfig[Config](*leaderboardConfig)
		if err != nil && !os.IsNotExist(err) {
			return err
		}

		store, err := leaderboard.Open(cmd.Context(), cfg.Leaderboard)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Top(cmd.Context(), leaderboard.DefaultLimit)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"#", "Roll No", "Name", "Percentage"})
		for i, entry := range entries {
			t.AppendRow(table.Row{
				i + 1,
				entry.RollNo,
				entry.Name,
				strconv.FormatFloat(entry.Percentage, 'f', 2, 64),
			})
		}
		t.Render()
		fmt.Printf("%d entries\n", len(entries))
		return nil
	},
}
