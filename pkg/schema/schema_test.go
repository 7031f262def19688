package schema

import (
	"context"
	"strings"
	"testing"

	"github.com/cerberus/cerberus/pkg/config"
	"github.com/rs/zerolog"
)

const validConfig = `[project]
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

func parse(t *testing.T, input string) *config.Document {
	t.Helper()
	doc, err := config.Parse("test.toml", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func validate(t *testing.T, input string) *Result {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	return Default(logger).Validate(context.Background(), parse(t, input))
}

func findDiag(r *Result, path, code string) *config.Diagnostic {
	for i := range r.Diagnostics {
		if r.Diagnostics[i].Path == path && r.Diagnostics[i].Code == code {
			return &r.Diagnostics[i]
		}
	}
	return nil
}

func TestDefault_ValidConfigPasses(t *testing.T) {
	r := validate(t, validConfig)
	if !r.Passed() {
		t.Fatalf("expected pass, got %+v", r.Diagnostics)
	}
	if len(r.Diagnostics) != 0 {
		t.Errorf("expected no diagnostics, got %+v", r.Diagnostics)
	}
}

func TestDefault_HardErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		path  string
		code  string
	}{
		{
			name:  "missing project name",
			input: strings.Replace(validConfig, `name = "demo"`, "", 1),
			path:  "project.name",
			code:  CodeRequired,
		},
		{
			name:  "empty project name",
			input: strings.Replace(validConfig, `name = "demo"`, "name =", 1),
			path:  "project.name",
			code:  CodeRequired,
		},
		{
			name:  "blank project name",
			input: strings.Replace(validConfig, `name = "demo"`, `name = "   "`, 1),
			path:  "project.name",
			code:  CodeRequired,
		},
		{
			name:  "blank proxy name",
			input: strings.Replace(validConfig, `name = "p1"`, `name = "  "`, 1),
			path:  "proxies.0.name",
			code:  CodeMember,
		},
		{
			name:  "blank service domain",
			input: strings.Replace(validConfig, `domain = "a.example.com"`, `domain = " "`, 1),
			path:  "services.0.domain",
			code:  CodeMember,
		},
		{
			name:  "unknown proxy type",
			input: strings.Replace(validConfig, `type = "nginx"`, `type = "varnish"`, 1),
			path:  "proxies.0.type",
			code:  CodeEnum,
		},
		{
			name:  "port zero",
			input: strings.Replace(validConfig, "external_port = 80", "external_port = 0", 1),
			path:  "proxies.0.external_port",
			code:  CodeRange,
		},
		{
			name:  "port too high",
			input: strings.Replace(validConfig, "external_port = 80", "external_port = 70000", 1),
			path:  "proxies.0.external_port",
			code:  CodeRange,
		},
		{
			name:  "port not an integer",
			input: strings.Replace(validConfig, "external_port = 80", "external_port = eighty", 1),
			path:  "proxies.0.external_port",
			code:  CodeNotInt,
		},
		{
			name:  "internal port out of range",
			input: validConfig + "\n[[proxies]]\nname = \"p2\"\ntype = \"caddy\"\ninternal_port = -1\n",
			path:  "proxies.1.internal_port",
			code:  CodeRange,
		},
		{
			name:  "zero instances",
			input: strings.Replace(validConfig, "external_port = 80", "external_port = 80\ninstances = 0", 1),
			path:  "proxies.0.instances",
			code:  CodeRange,
		},
		{
			name:  "proxy missing type",
			input: strings.Replace(validConfig, `type = "nginx"`, "", 1),
			path:  "proxies.0.type",
			code:  CodeMember,
		},
		{
			name:  "service missing upstream",
			input: strings.Replace(validConfig, `upstream = "http://1.2.3.4:3000"`, "", 1),
			path:  "services.0.upstream",
			code:  CodeMember,
		},
		{
			name:  "anubis difficulty too high",
			input: validConfig + "\n[anubis]\nenabled = true\ndifficulty = 11\n",
			path:  "anubis.difficulty",
			code:  CodeRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validate(t, tt.input)
			if r.Passed() {
				t.Fatal("expected validation to fail")
			}
			d := findDiag(r, tt.path, tt.code)
			if d == nil {
				t.Fatalf("no %s diagnostic for %s in %+v", tt.code, tt.path, r.Diagnostics)
			}
			if d.Severity != config.SeverityError {
				t.Errorf("severity = %s, want error", d.Severity)
			}
			if d.File != "test.toml" {
				t.Errorf("file = %q", d.File)
			}
		})
	}
}

func TestDefault_EmptyProxyInstance(t *testing.T) {
	input := validConfig + "\n[[proxies]]\n\n[[proxies]]\nname = \"b\"\ntype = \"varnish\"\n"
	doc := parse(t, input)

	r := Default(zerolog.New(nil).Level(zerolog.Disabled)).Validate(context.Background(), doc)
	if r.Passed() {
		t.Fatal("expected validation to fail")
	}
	for _, key := range []string{"name", "type"} {
		if findDiag(r, "proxies.1."+key, CodeMember) == nil {
			t.Errorf("no member diagnostic for proxies.1.%s in %+v", key, r.Diagnostics)
		}
	}
	if findDiag(r, "proxies.2.name", CodeMember) != nil {
		t.Error("instances after the empty one should not be counted")
	}

	diags := doc.Diagnostics()
	if len(diags) != 1 || diags[0].Code != config.CodeEmptyArrayTable || diags[0].Path != "proxies.1" {
		t.Errorf("parse diagnostics = %v", diags)
	}
}

func TestDefault_OptionalKeysAbsent(t *testing.T) {
	// internal_port and instances are absent; absence is never an error.
	r := validate(t, validConfig)
	if findDiag(r, "proxies.0.internal_port", CodeRange) != nil {
		t.Error("absent internal_port reported")
	}
}

func TestDefault_AnubisDisabledSkipsDifficulty(t *testing.T) {
	r := validate(t, validConfig+"\n[anubis]\nenabled = false\ndifficulty = 50\n")
	if !r.Passed() {
		t.Errorf("disabled anubis should not be checked: %+v", r.Diagnostics)
	}
}

func TestDefault_SoftRules(t *testing.T) {
	input := strings.Replace(validConfig, `domain = "a.example.com"`, `domain = "not a domain"`, 1)
	input = strings.Replace(input, `upstream = "http://1.2.3.4:3000"`, `upstream = "1.2.3.4:3000"`, 1)

	r := validate(t, input)
	if !r.Passed() {
		t.Fatalf("soft rules must not fail validation: %+v", r.Diagnostics)
	}
	if r.Warnings != 2 {
		t.Errorf("Warnings = %d, want 2", r.Warnings)
	}
	if d := findDiag(r, "services.0.domain", CodeHostname); d == nil || d.Severity != config.SeverityWarning {
		t.Errorf("expected hostname warning, got %+v", d)
	}
	if d := findDiag(r, "services.0.upstream", CodeURLScheme); d == nil || d.Severity != config.SeverityWarning {
		t.Errorf("expected scheme warning, got %+v", d)
	}
}

func TestDefault_WildcardDomainAccepted(t *testing.T) {
	input := strings.Replace(validConfig, `domain = "a.example.com"`, `domain = "*.example.com"`, 1)
	input = strings.Replace(input, `upstream = "http://1.2.3.4:3000"`, `upstream = "https://backend:443"`, 1)

	r := validate(t, input)
	if len(r.Diagnostics) != 0 {
		t.Errorf("expected no diagnostics, got %+v", r.Diagnostics)
	}
}

func TestValidate_CollectsEverything(t *testing.T) {
	input := `
[[proxies]]
type = "varnish"
external_port = 0

[[proxies]]
name = "p2"
type = "squid"
`
	r := validate(t, input)

	// project.name, proxies.0.name, two enum failures, one range failure.
	if r.HardErrors != 5 {
		t.Errorf("HardErrors = %d, want 5: %+v", r.HardErrors, r.Diagnostics)
	}
	if len(r.Errors()) != r.HardErrors {
		t.Errorf("Errors() returned %d", len(r.Errors()))
	}
}

func TestValidate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(zerolog.Nop(), Required("a"), Required("b"))
	r := s.Validate(ctx, parse(t, ""))

	if r.Passed() {
		t.Fatal("cancelled validation should not pass")
	}
	if len(r.Diagnostics) != 1 || r.Diagnostics[0].Code != CodeCancelled {
		t.Errorf("unexpected diagnostics %+v", r.Diagnostics)
	}
}

func TestRule_Modifiers(t *testing.T) {
	r := Required("a.b").Soft().When("a.enabled")
	if !r.Advisory || r.Condition != "a.enabled" {
		t.Errorf("modifiers not applied: %+v", r)
	}
	if got := r.String(); got != "required a.b when a.enabled (advisory)" {
		t.Errorf("String() = %q", got)
	}
	if got := Range("p", 1, 10).String(); got != "range p [1, 10]" {
		t.Errorf("String() = %q", got)
	}
}

func TestRule_ConditionBindsInstance(t *testing.T) {
	input := `
[[routes]]
enabled = true
weight = 500

[[routes]]
enabled = false
weight = 500
`
	s := New(zerolog.Nop(), Range("routes.*.weight", 0, 100).When("routes.*.enabled"))
	r := s.Validate(context.Background(), parse(t, input))

	if r.HardErrors != 1 {
		t.Fatalf("HardErrors = %d, want 1: %+v", r.HardErrors, r.Diagnostics)
	}
	if r.Diagnostics[0].Path != "routes.0.weight" {
		t.Errorf("path = %s", r.Diagnostics[0].Path)
	}
}

func TestResult_Merge(t *testing.T) {
	r := &Result{}
	r.Merge(
		config.Diagnostic{Severity: config.SeverityError, Message: "a"},
		config.Diagnostic{Severity: config.SeverityWarning, Message: "b"},
		config.Diagnostic{Severity: config.SeverityInfo, Message: "c"},
	)
	if r.HardErrors != 1 || r.Warnings != 1 || len(r.Diagnostics) != 3 {
		t.Errorf("unexpected result %+v", r)
	}
}
