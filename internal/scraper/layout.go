package scraper

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrColumnLayout reports a table header that does not match the column constants
var ErrColumnLayout = errors.New("unexpected column layout")

// expectedHeadings are the heading prefixes of the cells at ColumnMax,
// ColumnMin, and ColumnMean
var expectedHeadings = [QualifyingCells]string{
	ColumnMax:  "max temp",
	ColumnMin:  "min temp",
	ColumnMean: "mean temp",
}

// CheckColumnLayout reads the table header and verifies that the first cells
// after the row heading are max, min, and mean temperature. A document without
// a table header has nothing to verify and passes.
func CheckColumnLayout(r io.Reader) error {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return fmt.Errorf("parsing HTML: %w", err)
	}

	header := doc.Find("thead tr").First()
	if header.Length() == 0 {
		return nil
	}

	headings := make([]string, 0)
	header.Find("th, td").Each(func(i int, sel *goquery.Selection) {
		headings = append(headings, normalizeHeading(sel.Text()))
	})

	// The first heading labels the date column, which is a th rather than a td in data rows
	if len(headings) > 0 {
		headings = headings[1:]
	}

	if len(headings) < QualifyingCells {
		return fmt.Errorf("%w: %d headings, want at least %d", ErrColumnLayout, len(headings), QualifyingCells)
	}

	for i, want := range expectedHeadings {
		if !strings.HasPrefix(headings[i], want) {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrColumnLayout, i, headings[i], want)
		}
	}
	return nil
}

// normalizeHeading lowercases a heading and collapses its whitespace
func normalizeHeading(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
