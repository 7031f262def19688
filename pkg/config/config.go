package config

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config owns the currently loaded document. Until the first successful load
// every accessor returns ErrNotLoaded.
type Config struct {
	mu       sync.RWMutex
	doc      *Document
	path     string
	logger   zerolog.Logger
	observer LoadObserver
}

// Option configures a Config.
type Option func(*Config)

// WithLogger sets the logger used for load reporting and type mismatch warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithObserver registers an observer notified after every load attempt.
func WithObserver(observer LoadObserver) Option {
	return func(c *Config) {
		c.observer = observer
	}
}

// New creates an empty, unloaded Config.
func New(opts ...Option) *Config {
	c := &Config{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load parses the file at path and replaces the current document. If the file
// cannot be opened or read, the previous document is kept and an I/O error is
// returned. Syntax problems never fail a load; they are recorded as diagnostics.
func (c *Config) Load(path string) error {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		err = newIOError(CodeOpenFailed, path, err)
		c.notify(path, nil, start, err)
		return err
	}
	defer f.Close()

	if err := c.commit(path, f, start); err != nil {
		return err
	}

	c.mu.Lock()
	c.path = path
	c.mu.Unlock()
	return nil
}

// LoadReader parses r under the given name and replaces the current document.
// The remembered source path is left unchanged.
func (c *Config) LoadReader(name string, r io.Reader) error {
	return c.commit(name, r, time.Now())
}

// Reload loads the path of the last successful Load again.
func (c *Config) Reload() error {
	c.mu.RLock()
	path := c.path
	c.mu.RUnlock()

	if path == "" {
		return &Error{
			Class:   ClassUsage,
			Code:    CodeNoSource,
			Message: "reload requested before any file was loaded",
		}
	}
	return c.Load(path)
}

// commit parses into a staging document and swaps it in only on success.
func (c *Config) commit(name string, r io.Reader, start time.Time) error {
	staging, err := Parse(name, r)
	if err != nil {
		c.notify(name, nil, start, err)
		return err
	}
	staging = staging.WithLogger(c.logger)

	c.mu.Lock()
	c.doc = staging
	c.mu.Unlock()

	for _, d := range staging.diagnostics {
		c.logger.Warn().
			Str("file", d.File).
			Int("line", d.Line).
			Str("code", d.Code).
			Msg(d.Message)
	}
	c.logger.Debug().
		Str("source", name).
		Int("entries", staging.Len()).
		Int("diagnostics", len(staging.diagnostics)).
		Dur("duration", time.Since(start)).
		Msg("Configuration loaded")

	c.notify(name, staging, start, nil)
	return nil
}

func (c *Config) notify(source string, doc *Document, start time.Time, err error) {
	if c.observer == nil {
		return
	}
	event := LoadEvent{
		Source:   source,
		Duration: time.Since(start),
		Err:      err,
	}
	if doc != nil {
		event.Entries = doc.Len()
		event.Diagnostics = doc.Diagnostics()
	}
	c.observer.ObserveLoad(event)
}

// Loaded reports whether a document has been committed.
func (c *Config) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.doc != nil
}

// SourcePath returns the path of the last successful Load, or "" if none.
func (c *Config) SourcePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// Document returns the current document. The returned document is immutable and
// stays valid after later loads.
func (c *Config) Document() (*Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.doc == nil {
		return nil, ErrNotLoaded
	}
	return c.doc, nil
}

// Diagnostics returns the parse diagnostics of the current document, or nil.
func (c *Config) Diagnostics() []Diagnostic {
	doc, err := c.Document()
	if err != nil {
		return nil
	}
	return doc.Diagnostics()
}

// Get returns the raw text at path or def.
func (c *Config) Get(path, def string) (string, error) {
	doc, err := c.Document()
	if err != nil {
		return def, err
	}
	return doc.Get(path, def), nil
}

// GetString returns the string at path or def.
func (c *Config) GetString(path, def string) (string, error) {
	doc, err := c.Document()
	if err != nil {
		return def, err
	}
	return doc.GetString(path, def), nil
}

// GetInt returns the integer at path or def.
func (c *Config) GetInt(path string, def int) (int, error) {
	doc, err := c.Document()
	if err != nil {
		return def, err
	}
	return doc.GetInt(path, def), nil
}

// GetFloat returns the number at path or def.
func (c *Config) GetFloat(path string, def float64) (float64, error) {
	doc, err := c.Document()
	if err != nil {
		return def, err
	}
	return doc.GetFloat(path, def), nil
}

// GetBool returns the boolean at path or def.
func (c *Config) GetBool(path string, def bool) (bool, error) {
	doc, err := c.Document()
	if err != nil {
		return def, err
	}
	return doc.GetBool(path, def), nil
}

// GetArray returns the typed elements of the array at path or def.
func (c *Config) GetArray(path string, def []Value) ([]Value, error) {
	doc, err := c.Document()
	if err != nil {
		return def, err
	}
	return doc.GetArray(path, def), nil
}

// GetStringSlice returns the element texts of the array at path or def.
func (c *Config) GetStringSlice(path string, def []string) ([]string, error) {
	doc, err := c.Document()
	if err != nil {
		return def, err
	}
	return doc.GetStringSlice(path, def), nil
}

// Lookup returns the entry at path.
func (c *Config) Lookup(path string) (Entry, bool, error) {
	doc, err := c.Document()
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := doc.Lookup(path)
	return e, ok, nil
}

// KeyExists reports whether a non-empty entry exists at path. It is safe to call
// before any load and returns false then.
func (c *Config) KeyExists(path string) bool {
	doc, err := c.Document()
	if err != nil {
		return false
	}
	return doc.KeyExists(path)
}

// ArrayTableCount returns the number of instances of the array-table.
func (c *Config) ArrayTableCount(table string) (int, error) {
	doc, err := c.Document()
	if err != nil {
		return 0, err
	}
	return doc.ArrayTableCount(table), nil
}
