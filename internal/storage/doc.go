// Package storage persists daily temperature records in a SQLite database.
//
// Records live in a single weather table keyed by (sample_date, location).
// Saving is insert-or-ignore: a date already stored for a location is never
// overwritten. Every operation runs inside a Session, a transaction that is
// committed when the operation succeeds and rolled back otherwise. The default
// database is weather_data.db in the working directory.
package storage
