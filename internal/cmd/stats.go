package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Request a few sample years and print the engine's observability snapshot",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().IntSlice("years", []int{time.Now().Year() - 1, time.Now().Year()}, "Years to warm the caches with before reporting")
	if err := viper.BindPFlag("stats.years", statsCmd.Flags().Lookup("years")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	eng := buildEngine(1024)
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, year := range viper.GetIntSlice("stats.years") {
		if _, err := eng.RequestYear(ctx, year); err != nil {
			logger.Warn("warming year failed", "year", year, "error", err)
		}
	}

	fmt.Println(eng.Stats().String())
	return nil
}
