// Package config implements the Cerberus configuration engine: a parser for a
// small TOML-inspired language and an addressable, typed store built from it.
//
// # Overview
//
// Every generator, the CLI and the scaling controller read configuration through
// this package. A file is parsed once, line by line, into an ordered set of entries
// keyed by fully qualified dotted paths (for example "proxies.0.name"). Each entry
// keeps the normalized text of its value together with the type inferred at parse
// time, so reads never re-run classification.
//
// # Components
//
// Typify: classifies a raw value token into a tagged Value.
//
// ParseLine / Parse: a state machine over input lines. ParseLine is a pure step
// function over a ParseContext; Parse folds it across a reader and collects every
// diagnostic instead of stopping at the first problem.
//
// Document: the immutable result of one successful parse. It carries the typed
// accessor API (Get, GetString, GetInt, GetFloat, GetBool, GetArray, Lookup,
// KeyExists, ArrayTableCount, ArrayTableHeaders) and the introspection helpers
// (ListKeys, Entries, Dump, Stats). Diff compares two documents path by path.
//
// Config: the owner of an optional Document. Load parses into a staging document
// and swaps it in only when the whole input was read, so a failed load leaves the
// previous document untouched. Reload re-runs Load with the remembered path.
//
// # Language
//
//	# comment
//	[project]
//	name = "demo"
//
//	[[proxies]]
//	name = "edge"
//	type = "nginx"
//	external_port = 80
//	networks = ["front", "back"]
//
// Supported literals: true/false, integers, decimals, double-quoted strings (only
// \" and \\ are decoded), [...] arrays and {...} inline tables. Arrays are split on
// demand at every comma; commas inside quoted elements or nested brackets are not
// respected. Inline tables are kept verbatim.
//
// A "#" starts a comment unless it appears inside a double-quoted value, so
// color = "#ff0000" keeps its value.
//
// Each [[name]] header opens a new instance of the array-table name; instances are
// numbered from zero in order of appearance, also when the same header reappears
// later in the file. ArrayTableCount stops at the first instance with no keys;
// the parser reports such an instance with an EMPTY_ARRAY_TABLE warning.
//
// # Error Handling
//
// Parsing is lenient: unrecognized lines, malformed keys and lines over 1 MiB become
// Diagnostic values and the rest of the file is still read. Only I/O failures abort
// a load. Typed
// getters never fail on a coercion problem; they log a warning and return the
// caller's default. Reading from a Config that has never been loaded returns
// ErrNotLoaded, except for KeyExists which reports false.
//
// # Thread Safety
//
// A Document is immutable and safe for concurrent reads. Config guards the
// current document with a mutex, so Load and the accessors may be called from
// different goroutines; callers that need a consistent view across several reads
// should take a Document once and query it.
package config
