// Package scraper fetches the climate site's daily data pages and extracts
// daily temperature records from the embedded HTML table.
//
// Parsing is a small state machine driven by a streaming tokenizer. Reduce
// takes the current State and one Token and returns the next State, plus a
// record whenever a row's third temperature cell completes it. A table row
// looks like:
//
//	<tr>
//	  <th scope="row"><abbr title="January 5, 2021">05</abbr></th>
//	  <td>10.5</td><td>-2.3</td><td>4.1</td><td>...</td>
//	</tr>
//
// Only the first three cells are read; their order (max, min, mean) is fixed
// by the ColumnMax, ColumnMin, and ColumnMean constants. CheckColumnLayout can
// verify that order against the table header.
//
// The Scraper walks one page per month from the start year through the
// current year, stopping a year's scan at the first page its StopFunc rejects.
package scraper
