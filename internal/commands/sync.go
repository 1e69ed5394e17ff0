package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alicemq/LT-electricity-full-price-NordPool/internal/database"
	"github.com/alicemq/LT-electricity-full-price-NordPool/internal/market"
	syncer "github.com/alicemq/LT-electricity-full-price-NordPool/internal/sync"
	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/config"
)

var (
	syncStartDate string
	syncEndDate   string
	syncCountry   string
	syncYear      int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run price synchronization without the server",
	Long: `Run one-shot price synchronization against the configured database.

Examples:
  # Sync from each country's latest stored day onward
  electricity-backend sync efficient

  # Sync an explicit date range
  electricity-backend sync historical --start 2023-01-01 --end 2023-06-30

  # Sync one year for one country
  electricity-backend sync year --year 2022 --country lt`,
}

var syncEfficientCmd = &cobra.Command{
	Use:   "efficient",
	Short: "Sync from each country's resume point",
	RunE:  runSyncEfficient,
}

var syncHistoricalCmd = &cobra.Command{
	Use:   "historical",
	Short: "Sync an explicit date range",
	RunE:  runSyncHistorical,
}

var syncYearCmd = &cobra.Command{
	Use:   "year",
	Short: "Sync one calendar year",
	RunE:  runSyncYear,
}

func init() {
	syncHistoricalCmd.Flags().StringVar(&syncStartDate, "start", "", "Start date (YYYY-MM-DD)")
	syncHistoricalCmd.Flags().StringVar(&syncEndDate, "end", "", "End date (YYYY-MM-DD)")
	syncYearCmd.Flags().IntVar(&syncYear, "year", 0, "Calendar year to sync")
	syncCmd.PersistentFlags().StringVar(&syncCountry, "country", "", "Country code (lt, ee, lv, fi); all countries when omitted")

	syncCmd.AddCommand(syncEfficientCmd)
	syncCmd.AddCommand(syncHistoricalCmd)
	syncCmd.AddCommand(syncYearCmd)
	rootCmd.AddCommand(syncCmd)
}

// newEngine bootstraps the sync engine for one-shot commands.
func newEngine() (*syncer.Engine, *database.PostgresClient, *logrus.Logger, *config.Config, error) {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   true,
	})

	db, err := database.NewPostgresClient(&cfg.Postgres, cfg.GetPostgresDSN(), logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	client := market.NewClient(&cfg.Elering, logger)
	engine := syncer.NewEngine(client, db, &cfg.Sync, logger)

	return engine, db, logger, cfg, nil
}

func runSyncEfficient(cmd *cobra.Command, args []string) error {
	engine, db, logger, _, err := newEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	// One-shot runs retry transient upstream failures instead of
	// waiting for the next scheduled trigger.
	retrier := syncer.NewRetrier(3, 5*time.Second, time.Minute, logger)
	return retrier.Do(context.Background(), "sync efficient", func(ctx context.Context) error {
		res, err := engine.SyncEfficient(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Processed %d records (%d created, %d updated) in %s\n",
			res.RecordsProcessed, res.RecordsCreated, res.RecordsUpdated, res.Duration)
		return nil
	})
}

func runSyncHistorical(cmd *cobra.Command, args []string) error {
	if syncStartDate == "" || syncEndDate == "" {
		return fmt.Errorf("both --start and --end must be specified")
	}
	if syncCountry != "" && !market.IsKnownCountry(syncCountry) {
		return fmt.Errorf("unknown country: %s", syncCountry)
	}

	engine, db, _, cfg, err := newEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	loc := cfg.Location()
	start, err := time.ParseInLocation("2006-01-02", syncStartDate, loc)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", syncEndDate, loc)
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}

	ctx := context.Background()

	if syncCountry == "" {
		result, err := engine.SyncAllCountriesHistorical(ctx, start, end)
		if err != nil {
			return err
		}
		fmt.Printf("Processed %d records (%d created, %d updated) in %d chunk(s)\n",
			result.RecordsProcessed, result.RecordsCreated, result.RecordsUpdated, result.Chunks)
		return nil
	}

	result, err := engine.SyncHistoricalRange(ctx, start, end, syncCountry)
	if err != nil {
		return err
	}
	fmt.Printf("Processed %d records (%d created, %d updated) in %d chunk(s)\n",
		result.RecordsProcessed, result.RecordsCreated, result.RecordsUpdated, result.Chunks)
	return nil
}

func runSyncYear(cmd *cobra.Command, args []string) error {
	if syncYear < 2012 || syncYear > time.Now().Year()+1 {
		return fmt.Errorf("invalid year: %d", syncYear)
	}
	syncStartDate = fmt.Sprintf("%d-01-01", syncYear)
	syncEndDate = fmt.Sprintf("%d-12-31", syncYear)
	return runSyncHistorical(cmd, args)
}
