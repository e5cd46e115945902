package cli

import (
	"sort"

	"github.com/pfrederiksen/weather-scrape/internal/storage"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate SortOrder = "date"
	SortByMax  SortOrder = "max"
	SortByMin  SortOrder = "min"
	SortByMean SortOrder = "mean"
)

func (o SortOrder) valid() bool {
	switch o {
	case SortByDate, SortByMax, SortByMin, SortByMean:
		return true
	}
	return false
}

// sortRows orders rows in place. Temperature orders put the warmest (max, mean)
// or coldest (min) day first; rows missing the value go last and ties keep date order.
func sortRows(rows []storage.StoredRow, order SortOrder) {
	switch order {
	case SortByDate:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Date < rows[j].Date
		})
	case SortByMax:
		sort.SliceStable(rows, func(i, j int) bool {
			return compareTemp(rows[i].MaxTemp, rows[j].MaxTemp, true, rows[i].Date, rows[j].Date)
		})
	case SortByMin:
		sort.SliceStable(rows, func(i, j int) bool {
			return compareTemp(rows[i].MinTemp, rows[j].MinTemp, false, rows[i].Date, rows[j].Date)
		})
	case SortByMean:
		sort.SliceStable(rows, func(i, j int) bool {
			return compareTemp(rows[i].AvgTemp, rows[j].AvgTemp, true, rows[i].Date, rows[j].Date)
		})
	}
}

// compareTemp reports whether the row with temperature a should come before the row with b
func compareTemp(a, b *float64, warmestFirst bool, dateA, dateB string) bool {
	// If only one value is present, put it first
	if a == nil || b == nil {
		if a != nil {
			return true
		}
		if b != nil {
			return false
		}
		return dateA < dateB
	}

	if *a != *b {
		if warmestFirst {
			return *a > *b
		}
		return *a < *b
	}
	return dateA < dateB
}
