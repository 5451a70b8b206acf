// Package recordings persists finished voice memos and their transcript
// artifacts in a SQLite library, and derives display metadata (title,
// duration) from the artifacts themselves.
package recordings
