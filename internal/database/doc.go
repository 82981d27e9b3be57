// Package database provides SQLite-based storage for scan history.
//
// Every completed memory scan can be persisted as a session with its
// discoveries and skip regions, which makes later comparison possible:
// fuse values that appear, vanish, or change between sessions are the
// interesting signal when probing a device across unlock attempts.
package database
