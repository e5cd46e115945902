package weather

import (
	"fmt"
	"strings"
	"time"
)

const (
	// TitleDateLayout is the long-form date used in the table's abbr titles
	TitleDateLayout = "January 2, 2006"

	// ISODateLayout is the normalized form used as Mapping keys and in storage
	ISODateLayout = "2006-01-02"
)

// ParseTitleDate converts a long-form date such as "January 5, 2021" into its
// ISO form "2021-01-05". Days may be written with or without a leading zero.
func ParseTitleDate(title string) (string, error) {
	t, err := time.Parse(TitleDateLayout, strings.TrimSpace(title))
	if err != nil {
		return "", fmt.Errorf("parsing date %q: %w", title, err)
	}
	return t.Format(ISODateLayout), nil
}
