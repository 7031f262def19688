package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const demoConfig = `[project]
name = "demo"

[[proxies]]
name = "p1"
type = "nginx"
external_port = 80

[[services]]
name = "svc"
domain = "a.example.com"
upstream = "http://1.2.3.4:3000"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

type recordingObserver struct {
	mu     sync.Mutex
	events []LoadEvent
}

func (r *recordingObserver) ObserveLoad(event LoadEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestConfig_Load(t *testing.T) {
	path := writeConfig(t, demoConfig)
	cfg := New()

	if err := cfg.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Loaded() {
		t.Fatal("Loaded() = false after Load")
	}
	if cfg.SourcePath() != path {
		t.Errorf("SourcePath = %q, want %q", cfg.SourcePath(), path)
	}

	name, err := cfg.GetString("project.name", "")
	if err != nil || name != "demo" {
		t.Errorf("GetString = %q, %v", name, err)
	}
	if n, _ := cfg.ArrayTableCount("proxies"); n != 1 {
		t.Errorf("ArrayTableCount(proxies) = %d", n)
	}
	if n, _ := cfg.ArrayTableCount("services"); n != 1 {
		t.Errorf("ArrayTableCount(services) = %d", n)
	}
}

func TestConfig_LoadIsIdempotent(t *testing.T) {
	path := writeConfig(t, demoConfig)
	cfg := New()

	if err := cfg.Load(path); err != nil {
		t.Fatalf("first Load failed: %v", err)
	}
	first, _ := cfg.Document()

	if err := cfg.Load(path); err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	second, _ := cfg.Document()

	if changes := Diff(first, second); len(changes) != 0 {
		t.Errorf("reloading the same file changed %d paths: %+v", len(changes), changes)
	}
	if first.Len() != second.Len() {
		t.Errorf("entry count changed from %d to %d", first.Len(), second.Len())
	}
}

func TestConfig_FailedLoadKeepsPreviousDocument(t *testing.T) {
	path := writeConfig(t, demoConfig)
	cfg := New()
	if err := cfg.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	err := cfg.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !IsIO(err) {
		t.Errorf("expected an I/O error, got %v", err)
	}
	var cfgErr *Error
	if !errors.As(err, &cfgErr) || cfgErr.Code != CodeOpenFailed {
		t.Errorf("expected %s, got %v", CodeOpenFailed, err)
	}

	name, err := cfg.GetString("project.name", "")
	if err != nil || name != "demo" {
		t.Errorf("previous document lost: %q, %v", name, err)
	}
	if cfg.SourcePath() != path {
		t.Errorf("SourcePath changed to %q", cfg.SourcePath())
	}
}

func TestConfig_NotLoaded(t *testing.T) {
	cfg := New()

	if cfg.Loaded() {
		t.Fatal("new config reports loaded")
	}
	if cfg.KeyExists("project.name") {
		t.Error("KeyExists should be false before load")
	}

	if _, err := cfg.Get("a", ""); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Get error = %v", err)
	}
	if v, err := cfg.GetInt("a", 9); !errors.Is(err, ErrNotLoaded) || v != 9 {
		t.Errorf("GetInt = %d, %v", v, err)
	}
	if _, err := cfg.GetBool("a", false); !IsUsage(err) {
		t.Errorf("GetBool error = %v", err)
	}
	if _, err := cfg.GetArray("a", nil); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("GetArray error = %v", err)
	}
	if _, err := cfg.ArrayTableCount("proxies"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("ArrayTableCount error = %v", err)
	}
	if _, _, err := cfg.Lookup("a"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Lookup error = %v", err)
	}
	if cfg.Diagnostics() != nil {
		t.Error("Diagnostics should be nil before load")
	}
}

func TestConfig_Reload(t *testing.T) {
	cfg := New()
	err := cfg.Reload()
	if !IsUsage(err) {
		t.Fatalf("Reload before Load should be a usage error, got %v", err)
	}

	path := writeConfig(t, demoConfig)
	if err := cfg.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	updated := strings.Replace(demoConfig, `name = "demo"`, `name = "renamed"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("Failed to rewrite config: %v", err)
	}
	if err := cfg.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if name, _ := cfg.GetString("project.name", ""); name != "renamed" {
		t.Errorf("project.name = %q after reload", name)
	}
}

func TestConfig_LoadReader(t *testing.T) {
	cfg := New()
	if err := cfg.LoadReader("inline", strings.NewReader("a = 1\nbogus\n")); err != nil {
		t.Fatalf("LoadReader failed: %v", err)
	}

	if cfg.SourcePath() != "" {
		t.Errorf("LoadReader should not set SourcePath, got %q", cfg.SourcePath())
	}
	diags := cfg.Diagnostics()
	if len(diags) != 1 || diags[0].File != "inline" {
		t.Errorf("unexpected diagnostics: %+v", diags)
	}
}

func TestConfig_Observer(t *testing.T) {
	obs := &recordingObserver{}
	cfg := New(WithObserver(obs))

	path := writeConfig(t, demoConfig+"junk\n")
	if err := cfg.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	_ = cfg.Load(filepath.Join(t.TempDir(), "missing.toml"))

	if len(obs.events) != 2 {
		t.Fatalf("got %d events, want 2", len(obs.events))
	}

	ok := obs.events[0]
	if ok.Err != nil || ok.Entries != 7 || len(ok.Diagnostics) != 1 {
		t.Errorf("unexpected success event: %+v", ok)
	}
	if obs.events[1].Err == nil {
		t.Error("failed load should carry the error")
	}
}

func TestConfig_ConcurrentReads(t *testing.T) {
	path := writeConfig(t, demoConfig)
	cfg := New()
	if err := cfg.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := cfg.GetString("project.name", ""); err != nil {
					t.Errorf("GetString failed: %v", err)
					return
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		if err := cfg.Reload(); err != nil {
			t.Errorf("Reload failed: %v", err)
		}
	}
	wg.Wait()
}
