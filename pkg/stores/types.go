package stores

import (
	"context"
	"errors"
	"time"

	"github.com/cerberus/cerberus/pkg/config"
)

// ErrNotFound is returned when a snapshot does not exist.
var ErrNotFound = errors.New("not found")

// Snapshot describes one recorded configuration load.
type Snapshot struct {
	ID         string    `json:"id" yaml:"id"`
	SourcePath string    `json:"source_path" yaml:"source_path"`
	Digest     string    `json:"digest" yaml:"digest"`
	EntryCount int       `json:"entry_count" yaml:"entry_count"`
	HardErrors int       `json:"hard_errors" yaml:"hard_errors"`
	Warnings   int       `json:"warnings" yaml:"warnings"`
	LoadedAt   time.Time `json:"loaded_at" yaml:"loaded_at"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// Passed reports whether the recorded load had no hard errors.
func (s *Snapshot) Passed() bool {
	return s.HardErrors == 0
}

// SnapshotEntry is one key/value pair of a snapshot, in source order.
type SnapshotEntry struct {
	SnapshotID string `json:"-" yaml:"-"`
	Position   int    `json:"position" yaml:"position"`
	Path       string `json:"path" yaml:"path"`
	Value      string `json:"value" yaml:"value"`
	Type       string `json:"type" yaml:"type"`
}

// SnapshotDiagnostic is one diagnostic recorded with a snapshot.
type SnapshotDiagnostic struct {
	SnapshotID string `json:"-" yaml:"-"`
	Position   int    `json:"position" yaml:"position"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	Line       int    `json:"line,omitempty" yaml:"line,omitempty"`
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	Message    string `json:"message" yaml:"message"`
	Severity   string `json:"severity" yaml:"severity"`
	Code       string `json:"code,omitempty" yaml:"code,omitempty"`
}

// Diagnostic converts the stored row back into a config diagnostic.
func (d SnapshotDiagnostic) Diagnostic() config.Diagnostic {
	return config.Diagnostic{
		File:     d.File,
		Line:     d.Line,
		Path:     d.Path,
		Message:  d.Message,
		Severity: config.Severity(d.Severity),
		Code:     d.Code,
	}
}

// Record groups a snapshot with its entries and diagnostics.
type Record struct {
	Snapshot    *Snapshot            `json:"snapshot" yaml:"snapshot"`
	Entries     []SnapshotEntry      `json:"entries" yaml:"entries"`
	Diagnostics []SnapshotDiagnostic `json:"diagnostics" yaml:"diagnostics"`
}

// Store defines the interface for snapshot persistence.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Snapshots
	SaveSnapshot(ctx context.Context, rec *Record) error
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
	LatestSnapshot(ctx context.Context, sourcePath string) (*Snapshot, error)
	ListSnapshots(ctx context.Context, sourcePath string, limit, offset int) ([]*Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error
	PruneSnapshots(ctx context.Context, sourcePath string, keep int) (int64, error)

	// Contents
	ListSnapshotEntries(ctx context.Context, snapshotID string) ([]SnapshotEntry, error)
	ListSnapshotDiagnostics(ctx context.Context, snapshotID string) ([]SnapshotDiagnostic, error)

	// Health
	HealthCheck(ctx context.Context) error
}
