package policy

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cerberus/cerberus/pkg/config"
	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(zerolog.New(nil).Level(zerolog.Disabled))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func parseDoc(t *testing.T, input string) *config.Document {
	t.Helper()
	doc, err := config.Parse("cerberus.toml", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

const twoProxies = `
[project]
name = "demo"

[[proxies]]
name = "edge"
type = "nginx"
external_port = 80

[[proxies]]
name = "%s"
type = "caddy"
external_port = %s

[[services]]
name = "a"
domain = "a.example.com"
upstream = "http://a:80"

[[services]]
name = "b"
domain = "%s"
upstream = "http://b:80"
`

func fill(name, port, domain string) string {
	out := strings.Replace(twoProxies, "%s", name, 1)
	out = strings.Replace(out, "%s", port, 1)
	return strings.Replace(out, "%s", domain, 1)
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	policies := eng.ListPolicies()
	expected := []string{
		"anubis-needs-proxy",
		"unique-external-ports",
		"unique-proxy-names",
		"unique-service-domains",
	}
	if len(policies) != len(expected) {
		t.Fatalf("Expected %d built-in policies, got %d", len(expected), len(policies))
	}
	for i, name := range expected {
		if policies[i].Name != name {
			t.Errorf("Policy %d = %s, want %s", i, policies[i].Name, name)
		}
	}
}

func TestEvaluate_Clean(t *testing.T) {
	eng := newTestEngine(t)
	doc := parseDoc(t, fill("internal", "8080", "b.example.com"))

	result, err := eng.Evaluate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Expected allowed, got violations %+v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Errorf("Expected no violations, got %+v", result.Violations)
	}
	if len(result.EvaluatedPolicies) != 4 {
		t.Errorf("Expected 4 evaluated policies, got %v", result.EvaluatedPolicies)
	}
}

func TestEvaluate_BuiltinViolations(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		policy        string
		path          string
		severity      Severity
		expectAllowed bool
	}{
		{
			name:          "duplicate proxy name",
			input:         fill("edge", "8080", "b.example.com"),
			policy:        "unique-proxy-names",
			path:          "proxies.1.name",
			severity:      SeverityError,
			expectAllowed: false,
		},
		{
			name:          "duplicate external port",
			input:         fill("internal", "80", "b.example.com"),
			policy:        "unique-external-ports",
			path:          "proxies.1.external_port",
			severity:      SeverityWarning,
			expectAllowed: true,
		},
		{
			name:          "duplicate service domain",
			input:         fill("internal", "8080", "a.example.com"),
			policy:        "unique-service-domains",
			path:          "services.1.domain",
			severity:      SeverityWarning,
			expectAllowed: true,
		},
		{
			name:          "anubis without proxies",
			input:         "[project]\nname = \"x\"\n\n[anubis]\nenabled = true\n",
			policy:        "anubis-needs-proxy",
			path:          "anubis.enabled",
			severity:      SeverityWarning,
			expectAllowed: true,
		},
	}

	eng := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.Evaluate(context.Background(), parseDoc(t, tt.input))
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if result.Allowed != tt.expectAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.expectAllowed)
			}
			if len(result.Violations) != 1 {
				t.Fatalf("Expected 1 violation, got %+v", result.Violations)
			}
			v := result.Violations[0]
			if v.Policy != tt.policy || v.Path != tt.path || v.Severity != tt.severity {
				t.Errorf("Unexpected violation %+v", v)
			}
			if v.Message == "" {
				t.Error("Violation has no message")
			}
		})
	}
}

func TestEvaluate_CustomPolicy(t *testing.T) {
	eng := newTestEngine(t)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "privileged.rego"), `# No privileged ports besides 80 and 443.
# severity: error
package cerberus.custom.privileged

import rego.v1

deny contains violation if {
	some path, port in input.values
	endswith(path, ".external_port")
	port < 1024
	not port in {80, 443}
	violation := {"message": sprintf("port %v is privileged", [port]), "path": path, "owner": "netops"}
}

deny contains "project.name must be lowercase" if {
	input.entries["project.name"].value != lower(input.entries["project.name"].value)
}
`)

	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies failed: %v", err)
	}

	doc := parseDoc(t, strings.Replace(fill("internal", "22", "b.example.com"), `name = "demo"`, `name = "Demo"`, 1))
	result, err := eng.Evaluate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if result.Allowed {
		t.Error("Expected blocking violation")
	}
	if len(result.Violations) != 2 {
		t.Fatalf("Expected 2 violations, got %+v", result.Violations)
	}

	// Violations are sorted by path; the string violation has none.
	msgOnly, port := result.Violations[0], result.Violations[1]
	if msgOnly.Message != "project.name must be lowercase" || msgOnly.Severity != SeverityError {
		t.Errorf("Unexpected violation %+v", msgOnly)
	}
	if port.Path != "proxies.1.external_port" || port.Details["owner"] != "netops" {
		t.Errorf("Unexpected violation %+v", port)
	}

	diags := result.Diagnostics(doc.Source())
	if len(diags) != 2 || diags[1].Code != CodeViolation || diags[1].File != "cerberus.toml" {
		t.Errorf("Unexpected diagnostics %+v", diags)
	}
	if !strings.HasPrefix(diags[1].Message, "privileged: ") {
		t.Errorf("Diagnostic message not attributed: %q", diags[1].Message)
	}
}

func TestSetPolicies_CompileError(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.SetPolicies(context.Background(), []Policy{
		{Name: "good", Rego: emptyPolicy, Enabled: true},
		{Name: "bad", Rego: "package broken\n\ndeny contains", Enabled: true},
	})
	if err == nil {
		t.Fatal("Expected compile error")
	}
	if _, err := eng.GetPolicy("good"); err == nil {
		t.Error("No policy should be installed when one fails to compile")
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)
	doc := parseDoc(t, fill("edge", "8080", "b.example.com"))

	if err := eng.DisablePolicy("unique-proxy-names"); err != nil {
		t.Fatalf("DisablePolicy failed: %v", err)
	}
	p, err := eng.GetPolicy("unique-proxy-names")
	if err != nil {
		t.Fatalf("GetPolicy failed: %v", err)
	}
	if p.Enabled {
		t.Error("Policy should be disabled")
	}

	result, err := eng.Evaluate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !result.Allowed || len(result.Violations) != 0 {
		t.Errorf("Disabled policy still reported: %+v", result.Violations)
	}

	if err := eng.EnablePolicy("unique-proxy-names"); err != nil {
		t.Fatalf("EnablePolicy failed: %v", err)
	}
	result, _ = eng.Evaluate(context.Background(), doc)
	if result.Allowed {
		t.Error("Re-enabled policy not evaluated")
	}

	if err := eng.EnablePolicy("nonexistent"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestReloadPolicies(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.SetPolicies(context.Background(), []Policy{{Name: "extra", Rego: emptyPolicy, Enabled: true}}); err != nil {
		t.Fatalf("SetPolicies failed: %v", err)
	}
	if len(eng.ListPolicies()) != 5 {
		t.Fatalf("Expected 5 policies, got %d", len(eng.ListPolicies()))
	}

	if err := eng.ReloadPolicies(context.Background()); err != nil {
		t.Fatalf("ReloadPolicies failed: %v", err)
	}
	if len(eng.ListPolicies()) != 4 {
		t.Errorf("Expected only built-ins after reload, got %d", len(eng.ListPolicies()))
	}
}

func TestEvaluate_Cancelled(t *testing.T) {
	eng := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := eng.Evaluate(ctx, parseDoc(t, "a = 1\n")); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestNewInput(t *testing.T) {
	doc := parseDoc(t, `
[[proxies]]
name = "edge"
external_port = 80
ratio = 0.5
enabled = true
networks = ["front", 2]
labels = { a = 1 }
`)
	in := NewInput(doc)

	if in.Values["proxies.0.external_port"] != int64(80) {
		t.Errorf("integer = %#v", in.Values["proxies.0.external_port"])
	}
	if in.Values["proxies.0.ratio"] != 0.5 {
		t.Errorf("float = %#v", in.Values["proxies.0.ratio"])
	}
	if in.Values["proxies.0.enabled"] != true {
		t.Errorf("bool = %#v", in.Values["proxies.0.enabled"])
	}
	list, ok := in.Values["proxies.0.networks"].([]interface{})
	if !ok || len(list) != 2 || list[0] != "front" || list[1] != int64(2) {
		t.Errorf("array = %#v", in.Values["proxies.0.networks"])
	}
	if in.Values["proxies.0.labels"] != "{ a = 1 }" {
		t.Errorf("inline table = %#v", in.Values["proxies.0.labels"])
	}
	if in.Entries["proxies.0.labels"].Type != "inline_table" {
		t.Errorf("entry type = %s", in.Entries["proxies.0.labels"].Type)
	}
	if in.ArrayTables["proxies"] != 1 {
		t.Errorf("array tables = %v", in.ArrayTables)
	}
}

func TestReplacePolicies(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	if err := eng.SetPolicies(ctx, []Policy{{Name: "old", Rego: emptyPolicy, Enabled: true}}); err != nil {
		t.Fatalf("SetPolicies failed: %v", err)
	}
	if err := eng.ReplacePolicies(ctx, []Policy{{Name: "new", Rego: emptyPolicy, Enabled: true}}); err != nil {
		t.Fatalf("ReplacePolicies failed: %v", err)
	}

	if _, err := eng.GetPolicy("old"); err == nil {
		t.Error("replaced policy still installed")
	}
	if _, err := eng.GetPolicy("new"); err != nil {
		t.Errorf("new policy missing: %v", err)
	}
	if _, err := eng.GetPolicy("unique-proxy-names"); err != nil {
		t.Errorf("built-in policy dropped: %v", err)
	}

	err := eng.ReplacePolicies(ctx, []Policy{{Name: "broken", Rego: "package broken\n\ndeny contains", Enabled: true}})
	if err == nil {
		t.Fatal("expected compile error")
	}
	if _, err := eng.GetPolicy("new"); err != nil {
		t.Error("failed replace should leave the previous policies in place")
	}
}
