package stores

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/cerberus/cerberus/pkg/config"
	"github.com/google/uuid"
)

// NewRecord captures doc and the diagnostics gathered for it as a record ready
// to be saved. diags should hold everything reported for the load: parse,
// schema and policy diagnostics alike.
func NewRecord(doc *config.Document, diags []config.Diagnostic) *Record {
	entries := doc.Entries()

	snap := &Snapshot{
		ID:         uuid.New().String(),
		SourcePath: doc.Source(),
		Digest:     Digest(entries),
		EntryCount: len(entries),
		LoadedAt:   doc.LoadedAt().UTC(),
		CreatedAt:  time.Now().UTC(),
	}

	rec := &Record{
		Snapshot:    snap,
		Entries:     make([]SnapshotEntry, 0, len(entries)),
		Diagnostics: make([]SnapshotDiagnostic, 0, len(diags)),
	}

	for i, kv := range entries {
		rec.Entries = append(rec.Entries, SnapshotEntry{
			SnapshotID: snap.ID,
			Position:   i,
			Path:       kv.Path,
			Value:      kv.Value,
			Type:       kv.Type.String(),
		})
	}

	for i, d := range diags {
		switch d.Severity {
		case config.SeverityError:
			snap.HardErrors++
		case config.SeverityWarning:
			snap.Warnings++
		}
		rec.Diagnostics = append(rec.Diagnostics, SnapshotDiagnostic{
			SnapshotID: snap.ID,
			Position:   i,
			File:       d.File,
			Line:       d.Line,
			Path:       d.Path,
			Message:    d.Message,
			Severity:   string(d.Severity),
			Code:       d.Code,
		})
	}

	return rec
}

// Digest returns a hex SHA-256 over the entries. It does not depend on the
// order the entries were written in.
func Digest(entries []config.KeyValue) string {
	sorted := make([]config.KeyValue, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := sha256.New()
	for _, kv := range sorted {
		h.Write([]byte(kv.Path))
		h.Write([]byte{0})
		h.Write([]byte(kv.Type.String()))
		h.Write([]byte{0})
		h.Write([]byte(kv.Value))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Document rebuilds a config document from stored entries.
func Document(snap *Snapshot, entries []SnapshotEntry) *config.Document {
	kvs := make([]config.KeyValue, 0, len(entries))
	for _, e := range entries {
		vt, ok := config.ParseValueType(e.Type)
		if !ok {
			vt = config.TypeString
		}
		kvs = append(kvs, config.KeyValue{Path: e.Path, Value: e.Value, Type: vt})
	}
	return config.FromEntries(snap.SourcePath, kvs)
}
