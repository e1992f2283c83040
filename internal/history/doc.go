// Package history persists a SQLite journal of conversion runs and the
// terminal outcome of every file they touched.
//
// The journal is an audit log. Resume decisions are always made from what is
// on disk, never from history rows, so deleting the database is safe.
package history
