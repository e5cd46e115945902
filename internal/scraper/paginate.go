package scraper

// StopFunc decides whether a page ends the scan of its year
type StopFunc func(page PageResult) bool

// EmptyPage stops a year's scan at the first page without records. A failed
// fetch also has no records, so it ends the year the same way.
func EmptyPage(page PageResult) bool {
	return len(page.Records) == 0
}
