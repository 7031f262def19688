// Package stores keeps a history of loaded configurations in SQLite.
//
// Every successful load can be recorded as a snapshot: the entries as they
// were parsed, the diagnostics the load, schema and policy checks produced,
// and a digest of the content so identical loads are easy to spot. The schema
// is managed with embedded migrations.
package stores
