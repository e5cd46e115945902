package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pfrederiksen/weather-scrape/internal/logger"
	"github.com/pfrederiksen/weather-scrape/internal/weather"
	"golang.org/x/net/html/charset"
)

const (
	DefaultBaseURL   = "http://climate.weather.gc.ca"
	DefaultStationID = 27174
	DefaultStartYear = 2020
	UserAgent        = "weather-scrape/1.0 (github.com/pfrederiksen/weather-scrape)"
	Timeout          = 30 * time.Second

	dailyDataPath  = "/climate_data/daily_data_e.html"
	dailyTimeframe = 2
)

// ErrUnexpectedStatus is returned for any non-200 page response
var ErrUnexpectedStatus = errors.New("unexpected status code")

// Options configures a Scraper. Zero values fall back to the package defaults.
type Options struct {
	BaseURL   string
	StationID int
	StartYear int
	Timeout   time.Duration
	UserAgent string

	// Stop ends a year's scan; defaults to EmptyPage
	Stop StopFunc
	// Now supplies the current time, which bounds the last year scanned
	Now func() time.Time

	Logger  *logger.Logger
	Metrics *logger.Metrics
}

// PageResult is the outcome of scraping one page. Err is set when the page
// could not be fetched or read, in which case Records is empty.
type PageResult struct {
	URL     string
	Records weather.Mapping
	Err     error
}

// Failed reports whether the page fetch failed
func (p PageResult) Failed() bool {
	return p.Err != nil
}

// Scraper handles fetching and parsing daily climate data pages
type Scraper struct {
	client    *http.Client
	baseURL   string
	stationID int
	startYear int
	userAgent string
	stop      StopFunc
	now       func() time.Time
	log       *logger.Logger
	metrics   *logger.Metrics
}

// New creates a new Scraper instance
func New(opts Options) *Scraper {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.StationID == 0 {
		opts.StationID = DefaultStationID
	}
	if opts.StartYear == 0 {
		opts.StartYear = DefaultStartYear
	}
	if opts.Timeout <= 0 {
		opts.Timeout = Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = UserAgent
	}
	if opts.Stop == nil {
		opts.Stop = EmptyPage
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = logger.DefaultMetrics()
	}

	return &Scraper{
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		stationID: opts.StationID,
		startYear: opts.StartYear,
		userAgent: opts.UserAgent,
		stop:      opts.Stop,
		now:       opts.Now,
		log:       opts.Logger,
		metrics:   opts.Metrics,
	}
}

// PageURL returns the daily data page for one month of the configured station
func (s *Scraper) PageURL(year, month int) string {
	return fmt.Sprintf("%s%s?StationID=%d&timeframe=%d&Year=%d&Month=%d",
		s.baseURL, dailyDataPath, s.stationID, dailyTimeframe, year, month)
}

// ScrapeAll scrapes every month from the start year through the current year.
// A year's scan ends at the first page the stop predicate rejects; the next
// year is always scanned. The merged records are returned along with
// ctx.Err() if the context ends between pages.
func (s *Scraper) ScrapeAll(ctx context.Context) (weather.Mapping, error) {
	all := weather.NewMapping()
	lastYear := s.now().Year()

	for year := s.startYear; year <= lastYear; year++ {
		for month := 1; month <= 12; month++ {
			if err := ctx.Err(); err != nil {
				return all, err
			}

			page := s.StartScraping(ctx, s.PageURL(year, month))
			if s.stop(page) {
				s.metrics.IncrCounter("pages.empty")
				s.log.Debug("Ending year scan", logger.Fields{
					"year":   year,
					"month":  month,
					"failed": page.Failed(),
				})
				break
			}
			all.Merge(page.Records)
		}
	}

	s.log.Info("Scrape complete", logger.Fields{
		"records":    len(all),
		"start_year": s.startYear,
		"end_year":   lastYear,
	})
	return all, nil
}

// StartScraping fetches one page and parses its daily data table. Failures are
// logged and carried in the result rather than returned.
func (s *Scraper) StartScraping(ctx context.Context, url string) PageResult {
	start := time.Now()
	body, err := s.fetchPage(ctx, url)
	s.metrics.RecordTiming("page.fetch", time.Since(start))
	if err != nil {
		return s.failed(url, err)
	}

	if err := CheckColumnLayout(bytes.NewReader(body)); err != nil {
		s.log.Warn("Column layout check failed", logger.Fields{"url": url, "error": err.Error()})
	}

	records, err := Parse(bytes.NewReader(body))
	if err != nil {
		return s.failed(url, err)
	}

	s.metrics.IncrCounter("pages.fetched")
	s.metrics.AddCounter("records.parsed", int64(len(records)))
	s.log.Debug("Page scraped", logger.Fields{"url": url, "records": len(records)})

	return PageResult{URL: url, Records: records}
}

func (s *Scraper) failed(url string, err error) PageResult {
	s.metrics.IncrCounter("pages.failed")
	s.log.Error("Error in scraping data", logger.Fields{"url": url}, err)
	return PageResult{URL: url, Records: weather.NewMapping(), Err: err}
}

// fetchPage downloads a page and returns its body decoded to UTF-8
func (s *Scraper) fetchPage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	r, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decoding page: %w", err)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}
	return body, nil
}
