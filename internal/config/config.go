// Package config loads weather-scrape settings from an optional YAML file and
// WEATHERSCRAPE_* environment variables. Every setting has a default, so an
// empty environment reproduces the stock run: station 27174 from 2020 onward,
// saved under "MyLocation" in weather_data.db.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkyr/fig"
	"github.com/pfrederiksen/weather-scrape/internal/logger"
)

const (
	envPrefix   = "WEATHERSCRAPE"
	DefaultFile = "config.yaml"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid config")

// Config holds all settings for a run
type Config struct {
	Location string `fig:"location" default:"MyLocation"`
	Database string `fig:"database" default:"weather_data.db"`
	LogLevel string `fig:"loglevel" default:"INFO"`

	Source struct {
		BaseURL   string        `fig:"base_url" default:"http://climate.weather.gc.ca"`
		StationID int           `fig:"station_id" default:"27174"`
		StartYear int           `fig:"start_year" default:"2020"`
		Timeout   time.Duration `fig:"timeout" default:"30s"`
	} `fig:"source"`

	Schedule struct {
		Interval time.Duration `fig:"interval" default:"24h"`
	} `fig:"schedule"`
}

// Load reads configuration from the environment and, when present, from
// config.yaml in the working directory.
func Load() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.File(DefaultFile), fig.AllowNoFile(), fig.UseEnv(envPrefix)); err != nil {
		return conf, fmt.Errorf("loading config: %w", err)
	}
	return conf, conf.Validate()
}

// LoadFile reads configuration from the given file, which must exist.
// Environment variables still override values from the file.
func LoadFile(path string) (*Config, error) {
	conf := new(Config)
	if _, err := os.Stat(path); err != nil {
		return conf, fmt.Errorf("reading config: %w", err)
	}

	dir, file := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := fig.Load(conf, fig.Dirs(dir), fig.File(file), fig.UseEnv(envPrefix)); err != nil {
		return conf, fmt.Errorf("loading config: %w", err)
	}
	return conf, conf.Validate()
}

// Validate checks that the settings describe a runnable scrape
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Location) == "" {
		return fmt.Errorf("%w: location must not be empty", ErrInvalid)
	}
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("%w: database must not be empty", ErrInvalid)
	}
	if c.Source.StationID <= 0 {
		return fmt.Errorf("%w: source.station_id must be positive, got %d", ErrInvalid, c.Source.StationID)
	}
	if c.Source.StartYear < 1840 || c.Source.StartYear > time.Now().Year() {
		return fmt.Errorf("%w: source.start_year %d is out of range", ErrInvalid, c.Source.StartYear)
	}
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("%w: source.timeout must be positive", ErrInvalid)
	}
	if c.Schedule.Interval < time.Minute {
		return fmt.Errorf("%w: schedule.interval must be at least 1m, got %s", ErrInvalid, c.Schedule.Interval)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
