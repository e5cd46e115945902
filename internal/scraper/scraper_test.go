package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pfrederiksen/weather-scrape/internal/logger"
)

func quietOptions(baseURL string) Options {
	return Options{
		BaseURL: baseURL,
		Logger:  logger.New(logger.LevelError, io.Discard),
		Metrics: logger.NewMetrics(),
	}
}

func TestNew(t *testing.T) {
	s := New(Options{})

	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.client == nil {
		t.Fatal("scraper client is nil")
	}
	if s.client.Timeout != Timeout {
		t.Errorf("client timeout = %v, want %v", s.client.Timeout, Timeout)
	}
	if s.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", s.baseURL, DefaultBaseURL)
	}
	if s.stationID != DefaultStationID {
		t.Errorf("stationID = %d, want %d", s.stationID, DefaultStationID)
	}
	if s.startYear != DefaultStartYear {
		t.Errorf("startYear = %d, want %d", s.startYear, DefaultStartYear)
	}
}

func TestPageURL(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		year int
		mon  int
		want string
	}{
		{
			name: "defaults",
			year: 2021,
			mon:  3,
			want: "http://climate.weather.gc.ca/climate_data/daily_data_e.html?StationID=27174&timeframe=2&Year=2021&Month=3",
		},
		{
			name: "custom station and trailing slash",
			opts: Options{BaseURL: "http://localhost:8080/", StationID: 51459},
			year: 2020,
			mon:  12,
			want: "http://localhost:8080/climate_data/daily_data_e.html?StationID=51459&timeframe=2&Year=2020&Month=12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.opts).PageURL(tt.year, tt.mon); got != tt.want {
				t.Errorf("PageURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStartScraping(t *testing.T) {
	fixture, err := os.ReadFile("testdata/daily_data.html")
	if err != nil {
		t.Fatalf("failed to load fixture: %v", err)
	}

	tests := []struct {
		name        string
		body        string
		contentType string
		statusCode  int
		wantErr     error
		wantRecords int
	}{
		{
			name:        "daily data page",
			body:        string(fixture),
			contentType: "text/html; charset=utf-8",
			statusCode:  http.StatusOK,
			wantRecords: 2,
		},
		{
			name:        "latin-1 page",
			body:        "<table><tbody>" + row("January 9, 2021", "1.0", "-1.0", "0.0") + "</tbody></table>\xb0",
			contentType: "text/html; charset=iso-8859-1",
			statusCode:  http.StatusOK,
			wantRecords: 1,
		},
		{
			name:        "month without data",
			body:        `<html><body><p>No data available.</p></body></html>`,
			contentType: "text/html",
			statusCode:  http.StatusOK,
			wantRecords: 0,
		},
		{
			name:       "not found",
			statusCode: http.StatusNotFound,
			wantErr:    ErrUnexpectedStatus,
		},
		{
			name:       "server error",
			statusCode: http.StatusInternalServerError,
			wantErr:    ErrUnexpectedStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "weather-scrape") {
					t.Errorf("User-Agent = %q, should contain 'weather-scrape'", ua)
				}
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			opts := quietOptions(server.URL)
			s := New(opts)
			page := s.StartScraping(context.Background(), s.PageURL(2021, 1))

			if tt.wantErr != nil {
				if !errors.Is(page.Err, tt.wantErr) {
					t.Errorf("page.Err = %v, want %v", page.Err, tt.wantErr)
				}
				if !page.Failed() {
					t.Error("page.Failed() = false, want true")
				}
				if page.Records == nil || len(page.Records) != 0 {
					t.Errorf("failed page records = %v, want empty mapping", page.Records)
				}
				if got := opts.Metrics.Counter("pages.failed"); got != 1 {
					t.Errorf("pages.failed = %d, want 1", got)
				}
				return
			}

			if page.Err != nil {
				t.Fatalf("page.Err = %v, want nil", page.Err)
			}
			if len(page.Records) != tt.wantRecords {
				t.Errorf("len(page.Records) = %d, want %d", len(page.Records), tt.wantRecords)
			}
			if got := opts.Metrics.Counter("records.parsed"); got != int64(tt.wantRecords) {
				t.Errorf("records.parsed = %d, want %d", got, tt.wantRecords)
			}
		})
	}
}

func TestStartScraping_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	s := New(quietOptions(url))
	page := s.StartScraping(context.Background(), s.PageURL(2021, 1))

	if page.Err == nil {
		t.Fatal("expected an error for a closed server")
	}
	if len(page.Records) != 0 {
		t.Errorf("len(page.Records) = %d, want 0", len(page.Records))
	}
}

func TestStartScraping_LogsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var buf strings.Builder
	opts := quietOptions(server.URL)
	opts.Logger = logger.New(logger.LevelError, &buf)

	New(opts).StartScraping(context.Background(), server.URL)

	if !strings.Contains(buf.String(), "Error in scraping data") {
		t.Errorf("log output = %q, want failure entry", buf.String())
	}
	if !strings.Contains(buf.String(), "502") {
		t.Errorf("log output = %q, want status code", buf.String())
	}
}

// climateSite serves synthetic monthly pages and records every request
type climateSite struct {
	mu       sync.Mutex
	requests []string
	// pages maps "year-month" to a response; missing months return a page without data
	pages map[string]int
}

const (
	pageWithData = iota
	pageError
)

func (c *climateSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, _ := strconv.Atoi(q.Get("Year"))
	month, _ := strconv.Atoi(q.Get("Month"))
	key := fmt.Sprintf("%d-%d", year, month)

	c.mu.Lock()
	c.requests = append(c.requests, key)
	kind, ok := c.pages[key]
	c.mu.Unlock()

	if !ok {
		w.Write([]byte(`<html><body><p>No data available.</p></body></html>`))
		return
	}

	switch kind {
	case pageError:
		w.WriteHeader(http.StatusInternalServerError)
	case pageWithData:
		title := fmt.Sprintf("%s 1, %d", time.Month(month), year)
		second := fmt.Sprintf("%s 2, %d", time.Month(month), year)
		w.Write([]byte(table(
			row(title, "10", "0", "5"),
			row(second, "11", "1", "6"),
		)))
	}
}

func (c *climateSite) requested() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.requests...)
}

func TestScrapeAll_StopsYearAtEmptyMonth(t *testing.T) {
	site := &climateSite{pages: map[string]int{
		"2020-1": pageWithData,
		"2020-2": pageWithData,
		// 2020-3 has no data
		"2020-4": pageWithData,
		"2021-1": pageWithData,
		"2021-2": pageError,
		"2021-3": pageWithData,
	}}
	server := httptest.NewServer(site)
	defer server.Close()

	opts := quietOptions(server.URL)
	opts.Now = func() time.Time { return time.Date(2021, time.June, 15, 0, 0, 0, 0, time.UTC) }
	s := New(opts)

	records, err := s.ScrapeAll(context.Background())
	if err != nil {
		t.Fatalf("ScrapeAll() error: %v", err)
	}

	wantRequests := []string{"2020-1", "2020-2", "2020-3", "2021-1", "2021-2"}
	got := site.requested()
	if strings.Join(got, ",") != strings.Join(wantRequests, ",") {
		t.Errorf("requests = %v, want %v", got, wantRequests)
	}

	if len(records) != 6 {
		t.Errorf("len(records) = %d, want 6", len(records))
	}
	for _, date := range []string{"2020-01-01", "2020-01-02", "2020-02-01", "2020-02-02", "2021-01-01", "2021-01-02"} {
		if _, ok := records[date]; !ok {
			t.Errorf("missing record for %s", date)
		}
	}
	if _, ok := records["2020-04-01"]; ok {
		t.Error("record for 2020-04-01 should not be fetched after the empty March page")
	}
	if got := opts.Metrics.Counter("pages.empty"); got != 2 {
		t.Errorf("pages.empty = %d, want 2", got)
	}
}

func TestScrapeAll_FullYear(t *testing.T) {
	pages := make(map[string]int)
	for m := 1; m <= 12; m++ {
		pages[fmt.Sprintf("2022-%d", m)] = pageWithData
	}
	site := &climateSite{pages: pages}
	server := httptest.NewServer(site)
	defer server.Close()

	opts := quietOptions(server.URL)
	opts.StartYear = 2022
	opts.Now = func() time.Time { return time.Date(2022, time.December, 31, 0, 0, 0, 0, time.UTC) }

	records, err := New(opts).ScrapeAll(context.Background())
	if err != nil {
		t.Fatalf("ScrapeAll() error: %v", err)
	}

	if got := len(site.requested()); got != 12 {
		t.Errorf("requests = %d, want 12", got)
	}
	if len(records) != 24 {
		t.Errorf("len(records) = %d, want 24", len(records))
	}
}

func TestScrapeAll_CustomStop(t *testing.T) {
	site := &climateSite{pages: map[string]int{
		"2020-1": pageWithData,
		"2020-2": pageWithData,
		"2021-1": pageWithData,
	}}
	server := httptest.NewServer(site)
	defer server.Close()

	opts := quietOptions(server.URL)
	opts.Now = func() time.Time { return time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC) }
	opts.Stop = func(PageResult) bool { return true }

	records, err := New(opts).ScrapeAll(context.Background())
	if err != nil {
		t.Fatalf("ScrapeAll() error: %v", err)
	}

	want := []string{"2020-1", "2021-1"}
	if got := site.requested(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("requests = %v, want %v", got, want)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
}

func TestScrapeAll_Cancelled(t *testing.T) {
	site := &climateSite{pages: map[string]int{"2020-1": pageWithData}}
	server := httptest.NewServer(site)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := quietOptions(server.URL)
	opts.Now = func() time.Time { return time.Date(2020, time.May, 1, 0, 0, 0, 0, time.UTC) }

	_, err := New(opts).ScrapeAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ScrapeAll() error = %v, want context.Canceled", err)
	}
	if got := len(site.requested()); got != 0 {
		t.Errorf("requests = %d, want 0", got)
	}
}
