// Package transcript renders finalized sentences into the plain-text
// export format, writes export files, and persists session transcripts in
// a SQLite database.
package transcript
