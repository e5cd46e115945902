package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pfrederiksen/weather-scrape/internal/config"
	"github.com/pfrederiksen/weather-scrape/internal/logger"
	"github.com/pfrederiksen/weather-scrape/internal/schedule"
	"github.com/pfrederiksen/weather-scrape/internal/scraper"
	"github.com/pfrederiksen/weather-scrape/internal/storage"
	"github.com/spf13/cobra"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

var (
	flagConfig    string
	flagDatabase  string
	flagLocation  string
	flagStation   int
	flagBaseURL   string
	flagStartYear int
	flagFormat    string
	flagSort      string
	flagVerbose   bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weather-scrape",
		Short: "Scrape daily temperatures into a local database",
		Long: `A CLI tool that scrapes daily max, min, and mean temperatures from the
climate data site, stores each new day once per location, and prints the
stored history for that location.`,
		RunE:          runScrape,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "Config file (default: config.yaml in the working directory, if present)")
	flags.StringVar(&flagDatabase, "db", storage.DefaultPath, "SQLite database file")
	flags.StringVar(&flagLocation, "location", "MyLocation", "Location label records are stored under")
	flags.IntVar(&flagStation, "station", scraper.DefaultStationID, "Climate station ID")
	flags.StringVar(&flagBaseURL, "base-url", scraper.DefaultBaseURL, "Climate data site")
	flags.IntVar(&flagStartYear, "start-year", scraper.DefaultStartYear, "First year to scrape")
	flags.StringVar(&flagFormat, "format", "text", "Output format: text or json")
	flags.StringVar(&flagSort, "sort", "date", "Row order: date, max (warmest first), min (coldest first), or mean (warmest first)")
	flags.BoolVar(&flagVerbose, "verbose", false, "Enable debug logging and print run metrics")

	cmd.AddCommand(newShowCmd(), newPurgeCmd(), newScheduleCmd())

	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print stored records for the location without scraping",
		Args:  cobra.NoArgs,
		RunE:  runShow,
	}
}

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every stored record for every location",
		Args:  cobra.NoArgs,
		RunE:  runPurge,
	}
}

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Scrape and store on the configured interval until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runSchedule,
	}
}

// options holds everything a command needs after flags and config are resolved
type options struct {
	conf   *config.Config
	format OutputFormat
	sort   SortOrder
	log    *logger.Logger
}

// resolve loads config, applies explicitly set flags on top, and sets up logging
func resolve(cmd *cobra.Command) (*options, error) {
	var (
		conf *config.Config
		err  error
	)
	if flagConfig != "" {
		conf, err = config.LoadFile(flagConfig)
	} else {
		conf, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		conf.Database = flagDatabase
	}
	if flags.Changed("location") {
		conf.Location = flagLocation
	}
	if flags.Changed("station") {
		conf.Source.StationID = flagStation
	}
	if flags.Changed("base-url") {
		conf.Source.BaseURL = flagBaseURL
	}
	if flags.Changed("start-year") {
		conf.Source.StartYear = flagStartYear
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	format := OutputFormat(strings.ToLower(flagFormat))
	if format != FormatText && format != FormatJSON {
		return nil, fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
	}

	order := SortOrder(strings.ToLower(flagSort))
	if !order.valid() {
		return nil, fmt.Errorf("invalid sort: %s (must be 'date', 'max', 'min', or 'mean')", flagSort)
	}

	level, err := logger.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}
	if flagVerbose {
		level = logger.LevelDebug
	}
	log := logger.New(level, cmd.ErrOrStderr())
	logger.SetDefault(log)

	return &options{conf: conf, format: format, sort: order, log: log}, nil
}

func newScraper(opts *options) *scraper.Scraper {
	return scraper.New(scraper.Options{
		BaseURL:   opts.conf.Source.BaseURL,
		StationID: opts.conf.Source.StationID,
		StartYear: opts.conf.Source.StartYear,
		Timeout:   opts.conf.Source.Timeout,
		Logger:    opts.log,
	})
}

func openStore(ctx context.Context, opts *options) (*storage.Store, error) {
	store, err := storage.Open(opts.conf.Database)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	if err := store.Initialize(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// scrapeAndSave runs one scrape and stores the results, returning the number of new rows
func scrapeAndSave(ctx context.Context, opts *options, sc *scraper.Scraper, store *storage.Store) (int, error) {
	records, err := sc.ScrapeAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("scraping: %w", err)
	}

	inserted, err := store.Save(ctx, records, opts.conf.Location)
	if err != nil {
		return 0, fmt.Errorf("saving records: %w", err)
	}

	total, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	logger.SetGauge("storage.rows", float64(total))

	opts.log.Info("Records saved", logger.Fields{
		"location": opts.conf.Location,
		"scraped":  len(records),
		"inserted": inserted,
	})
	return inserted, nil
}

// runScrape is the main command logic
func runScrape(cmd *cobra.Command, args []string) error {
	opts, err := resolve(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := openStore(ctx, opts)
	if err != nil {
		return err
	}
	defer store.Close()

	inserted, err := scrapeAndSave(ctx, opts, newScraper(opts), store)
	if err != nil {
		return err
	}

	if err := writeStored(cmd, opts, store, &inserted); err != nil {
		return err
	}
	return writeMetrics(cmd.ErrOrStderr())
}

func runShow(cmd *cobra.Command, args []string) error {
	opts, err := resolve(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer store.Close()

	return writeStored(cmd, opts, store, nil)
}

func runPurge(cmd *cobra.Command, args []string) error {
	opts, err := resolve(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer store.Close()

	deleted, err := store.Purge(cmd.Context())
	if err != nil {
		return fmt.Errorf("purging storage: %w", err)
	}
	opts.log.Info("Storage purged", logger.Fields{"rows": deleted, "database": store.Path()})

	return WritePurge(cmd.OutOrStdout(), deleted, opts.format)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	opts, err := resolve(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, opts)
	if err != nil {
		return err
	}
	defer store.Close()

	sc := newScraper(opts)
	runner, err := schedule.New(opts.conf.Schedule.Interval, func(ctx context.Context) error {
		_, err := scrapeAndSave(ctx, opts, sc, store)
		return err
	}, opts.log)
	if err != nil {
		return fmt.Errorf("creating schedule: %w", err)
	}

	if err := runner.Run(ctx); err != nil {
		return err
	}
	return writeMetrics(cmd.ErrOrStderr())
}

// writeStored fetches and prints the location's rows
func writeStored(cmd *cobra.Command, opts *options, store *storage.Store, inserted *int) error {
	rows, err := store.Fetch(cmd.Context(), opts.conf.Location)
	if err != nil {
		return fmt.Errorf("fetching records: %w", err)
	}
	sortRows(rows, opts.sort)

	result := &OutputResult{
		FetchedAt: time.Now().UTC(),
		Location:  opts.conf.Location,
		Rows:      rows,
		RowCount:  len(rows),
		Inserted:  inserted,
	}

	if err := WriteOutput(cmd.OutOrStdout(), result, opts.format, flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// writeMetrics dumps the run metrics when verbose output is on
func writeMetrics(w io.Writer) error {
	if !flagVerbose {
		return nil
	}
	data, err := json.MarshalIndent(logger.GetMetricsSnapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	fmt.Fprintf(w, "Metrics:\n%s\n", data)
	return nil
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
