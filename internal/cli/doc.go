// Package cli implements the command-line interface for weather-scrape.
//
// The root command runs the whole pipeline: scrape every month since the start
// year, save new days to the database under the configured location, then
// print everything stored for that location. Subcommands show stored rows,
// purge the database, and run the pipeline on a schedule. Output is text or
// JSON; logs go to stderr.
package cli
