package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "Show tracked price areas",
	Long:  "Commands for inspecting stored data per NordPool price area",
}

var listCountriesCmd = &cobra.Command{
	Use:   "list",
	Short: "List per-country data coverage",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, db, _, cfg, err := newEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		stats, err := db.GetCountryStats(ctx)
		if err != nil {
			return fmt.Errorf("failed to read country stats: %w", err)
		}

		loc := cfg.Location()
		fmt.Printf("%-8s %12s %-12s %-12s\n", "Country", "Records", "Earliest", "Latest")
		fmt.Println(strings.Repeat("-", 48))

		byCountry := make(map[string]int)
		for i, s := range stats {
			byCountry[s.Country] = i
		}
		for _, country := range engine.Countries() {
			i, ok := byCountry[country]
			if !ok {
				fmt.Printf("%-8s %12d %-12s %-12s\n", country, 0, "-", "-")
				continue
			}
			s := stats[i]
			fmt.Printf("%-8s %12d %-12s %-12s\n",
				s.Country,
				s.RecordCount,
				time.Unix(s.EarliestTS, 0).In(loc).Format("2006-01-02"),
				time.Unix(s.LatestTS, 0).In(loc).Format("2006-01-02"),
			)
		}
		return nil
	},
}

var completenessCmd = &cobra.Command{
	Use:   "completeness",
	Short: "Check recent daily data completeness",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		engine, db, _, _, err := newEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		results, err := engine.RecentCompleteness(context.Background(), days)
		if err != nil {
			return fmt.Errorf("failed to check completeness: %w", err)
		}

		countries := engine.Countries()
		header := fmt.Sprintf("%-12s", "Date")
		for _, c := range countries {
			header += fmt.Sprintf(" %4s", c)
		}
		fmt.Println(header + "  Complete")
		fmt.Println(strings.Repeat("-", len(header)+10))

		for _, r := range results {
			line := fmt.Sprintf("%-12s", r.Date)
			for _, c := range countries {
				line += fmt.Sprintf(" %4d", r.Counts[c])
			}
			mark := "yes"
			if !r.Complete {
				mark = "NO"
			}
			fmt.Printf("%s  %s\n", line, mark)
		}
		return nil
	},
}

func init() {
	completenessCmd.Flags().Int("days", 7, "Number of recent days to check")

	countriesCmd.AddCommand(listCountriesCmd)
	countriesCmd.AddCommand(completenessCmd)
	rootCmd.AddCommand(countriesCmd)
}
