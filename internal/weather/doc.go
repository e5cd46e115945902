// Package weather provides the daily temperature types shared by the scraper,
// storage, and cli packages.
//
// A DailyRecord holds the max, min, and mean temperature for one calendar day.
// Records are collected into a Mapping keyed by ISO date (2006-01-02). Dates on
// the climate pages are written in long form ("January 5, 2021") and are
// normalized with ParseTitleDate before use as keys.
package weather
