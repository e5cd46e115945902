package weather

import "sort"

// DailyRecord is one day of temperature readings from the daily data table
type DailyRecord struct {
	Date string  `json:"date"`
	Max  float64 `json:"max"`
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
}

// Mapping holds daily records keyed by ISO date
type Mapping map[string]DailyRecord

// NewMapping creates an empty Mapping
func NewMapping() Mapping {
	return make(Mapping)
}

// Merge copies every record from other into m.
// A date already present in m is overwritten by the record from other.
func (m Mapping) Merge(other Mapping) {
	for date, rec := range other {
		m[date] = rec
	}
}

// Dates returns the mapping's dates in ascending order
func (m Mapping) Dates() []string {
	dates := make([]string, 0, len(m))
	for date := range m {
		dates = append(dates, date)
	}
	// ISO dates sort lexically
	sort.Strings(dates)
	return dates
}

// Records returns the mapping's records ordered by date
func (m Mapping) Records() []DailyRecord {
	records := make([]DailyRecord, 0, len(m))
	for _, date := range m.Dates() {
		records = append(records, m[date])
	}
	return records
}
