// Package history keeps a local log of session transitions in SQLite.
package history
