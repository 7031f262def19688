package config

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// ListKeys returns every path that starts with prefix, sorted. An empty prefix
// lists all paths.
func (d *Document) ListKeys(prefix string) []string {
	keys := make([]string, 0, len(d.order))
	for _, path := range d.order {
		if strings.HasPrefix(path, prefix) {
			keys = append(keys, path)
		}
	}
	sort.Strings(keys)
	return keys
}

// Entries returns every entry in the order its path was first written.
func (d *Document) Entries() []KeyValue {
	out := make([]KeyValue, 0, len(d.order))
	for _, path := range d.order {
		e := d.entries[path]
		out = append(out, KeyValue{Path: path, Value: e.Raw, Type: e.Type})
	}
	return out
}

// Dump writes one "path = value  (type)" line per entry, sorted by path.
func (d *Document) Dump(w io.Writer) error {
	for _, path := range d.ListKeys("") {
		e := d.entries[path]
		if _, err := fmt.Fprintf(w, "%s = %s  (%s)\n", path, e.Raw, e.Type); err != nil {
			return fmt.Errorf("failed to write entry %s: %w", path, err)
		}
	}
	return nil
}

// Stats summarizes the document.
func (d *Document) Stats() Stats {
	s := Stats{
		Entries:     len(d.order),
		ByType:      make(map[string]int),
		ArrayTables: make(map[string]int),
	}

	tables := make(map[string]struct{})
	for _, path := range d.order {
		s.ByType[d.entries[path].Type.String()]++
		if i := strings.IndexByte(path, '.'); i > 0 {
			tables[path[:i]] = struct{}{}
		}
	}
	for name := range tables {
		s.Tables = append(s.Tables, name)
	}
	sort.Strings(s.Tables)

	for name := range d.arrayTables {
		s.ArrayTables[name] = d.ArrayTableCount(name)
	}

	for _, diag := range d.diagnostics {
		switch diag.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		}
	}
	return s
}

// Diff returns the paths that differ between two documents, sorted by path.
// A nil document is treated as empty.
func Diff(old, new *Document) []Change {
	var changes []Change

	oldEntries := entriesOf(old)
	newEntries := entriesOf(new)

	for path, o := range oldEntries {
		o := o
		n, ok := newEntries[path]
		switch {
		case !ok:
			changes = append(changes, Change{Path: path, Kind: ChangeRemoved, Old: &o})
		case n != o:
			n := n
			changes = append(changes, Change{Path: path, Kind: ChangeChanged, Old: &o, New: &n})
		}
	}
	for path, n := range newEntries {
		n := n
		if _, ok := oldEntries[path]; !ok {
			changes = append(changes, Change{Path: path, Kind: ChangeAdded, New: &n})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
	return changes
}

func entriesOf(d *Document) map[string]Entry {
	if d == nil {
		return nil
	}
	return d.entries
}
