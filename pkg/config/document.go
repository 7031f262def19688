package config

import (
	"time"

	"github.com/rs/zerolog"
)

// Document is the result of one successful parse: an ordered mapping from fully
// qualified dotted path to entry. It is never mutated after Parse returns; the
// only way to change an entry is to load a new document.
type Document struct {
	source      string
	entries     map[string]Entry
	order       []string
	nodes       map[string]struct{}
	arrayTables map[string]int
	diagnostics []Diagnostic
	loadedAt    time.Time
	logger      zerolog.Logger
}

func newDocument(source string) *Document {
	return &Document{
		source:  source,
		entries: make(map[string]Entry),
		nodes:   make(map[string]struct{}),
		logger:  zerolog.Nop(),
	}
}

// set writes an entry, keeping the position of the first write to the same path.
func (d *Document) set(path string, e Entry) {
	if _, exists := d.entries[path]; !exists {
		d.order = append(d.order, path)
	}
	d.entries[path] = e
}

// index records every proper ancestor of every entry path.
func (d *Document) index() {
	for _, path := range d.order {
		for i := 0; i < len(path); i++ {
			if path[i] == '.' {
				d.nodes[path[:i]] = struct{}{}
			}
		}
	}
}

// FromEntries builds a document from entries recorded elsewhere, such as a
// stored snapshot. Later entries with the same path replace earlier ones.
// Array-table instance counts are derived from the paths, so ArrayTableCount
// works on the result; the set of array-table names shown by Stats does not
// survive.
func FromEntries(source string, entries []KeyValue) *Document {
	d := newDocument(source)
	for _, kv := range entries {
		d.set(kv.Path, Entry{Raw: kv.Value, Type: kv.Type})
	}
	d.index()
	d.loadedAt = time.Now()
	return d
}

// WithLogger returns a view of the document that reports type mismatches to
// logger. The entries are shared, not copied.
func (d *Document) WithLogger(logger zerolog.Logger) *Document {
	cp := *d
	cp.logger = logger
	return &cp
}

// Source returns the path or name the document was parsed from.
func (d *Document) Source() string {
	return d.source
}

// LoadedAt returns when parsing finished.
func (d *Document) LoadedAt() time.Time {
	return d.loadedAt
}

// Len returns the number of entries.
func (d *Document) Len() int {
	return len(d.order)
}

// Diagnostics returns the problems recorded while parsing.
func (d *Document) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(d.diagnostics))
	copy(out, d.diagnostics)
	return out
}

// hasNode reports whether path is an entry or the ancestor of one.
func (d *Document) hasNode(path string) bool {
	if _, ok := d.entries[path]; ok {
		return true
	}
	_, ok := d.nodes[path]
	return ok
}
