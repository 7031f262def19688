package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/cerberus/cerberus/pkg/config"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Schema is an ordered set of rules. It holds no per-run state; Validate may be
// called concurrently.
type Schema struct {
	rules    []Rule
	validate *validator.Validate
	logger   zerolog.Logger
}

// New creates a schema from rules.
func New(logger zerolog.Logger, rules ...Rule) *Schema {
	return &Schema{
		rules:    rules,
		validate: validator.New(),
		logger:   logger.With().Str("component", "schema").Logger(),
	}
}

// Rules returns a copy of the schema's rules.
func (s *Schema) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Validate applies every rule to doc and accumulates all violations. It only
// stops early when ctx is cancelled, in which case an error diagnostic records
// the cancellation.
func (s *Schema) Validate(ctx context.Context, doc *config.Document) *Result {
	result := &Result{}

	for _, rule := range s.rules {
		if err := ctx.Err(); err != nil {
			result.add(config.Diagnostic{
				File:     doc.Source(),
				Message:  fmt.Sprintf("validation cancelled: %v", err),
				Severity: config.SeverityError,
				Code:     CodeCancelled,
			})
			break
		}

		for _, d := range s.check(doc, rule) {
			d.File = doc.Source()
			result.add(d)
			s.log(d)
		}
	}

	s.logger.Debug().
		Str("source", doc.Source()).
		Int("rules", len(s.rules)).
		Int("hard_errors", result.HardErrors).
		Int("warnings", result.Warnings).
		Msg("Validation complete")

	return result
}

func (s *Schema) log(d config.Diagnostic) {
	event := s.logger.Warn()
	if d.IsError() {
		event = s.logger.Error()
	}
	event.Str("path", d.Path).Str("code", d.Code).Msg(d.Message)
}

func (s *Schema) check(doc *config.Document, rule Rule) []config.Diagnostic {
	if rule.Kind == KindMembers {
		return s.checkMembers(doc, rule)
	}

	var out []config.Diagnostic
	for _, b := range rule.expand(doc) {
		if b.condition != "" && !doc.GetBool(b.condition, false) {
			continue
		}
		if d := s.checkValue(doc, rule, b.path); d != nil {
			out = append(out, *d)
		}
	}
	return out
}

func (s *Schema) checkMembers(doc *config.Document, rule Rule) []config.Diagnostic {
	var out []config.Diagnostic
	for _, b := range expandPath(doc, rule.Path, "") {
		count := doc.ArrayTableCount(b.path)
		// An empty instance ends the count but still lacks every key.
		if doc.ArrayTableHeaders(b.path) > count {
			count++
		}
		for n := 0; n < count; n++ {
			for _, key := range rule.Values {
				path := fmt.Sprintf("%s.%d.%s", b.path, n, key)
				if e, ok := doc.Lookup(path); ok && strings.TrimSpace(e.Raw) != "" {
					continue
				}
				out = append(out, config.Diagnostic{
					Path:     path,
					Message:  fmt.Sprintf("%s[%d] is missing required field %q", b.path, n, key),
					Severity: rule.severity(),
					Code:     CodeMember,
				})
			}
		}
	}
	return out
}

func (s *Schema) checkValue(doc *config.Document, rule Rule, path string) *config.Diagnostic {
	diag := func(code, format string, args ...any) *config.Diagnostic {
		return &config.Diagnostic{
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
			Severity: rule.severity(),
			Code:     code,
		}
	}

	entry, present := doc.Lookup(path)

	switch rule.Kind {
	case KindRequired:
		if !present || s.validate.Var(strings.TrimSpace(entry.Raw), "required") != nil {
			return diag(CodeRequired, "required key is missing")
		}
		return nil
	}

	if !present {
		return nil
	}

	switch rule.Kind {
	case KindEnum:
		if len(rule.Values) == 0 {
			return nil
		}
		if s.validate.Var(entry.Raw, "oneof="+strings.Join(rule.Values, " ")) != nil {
			return diag(CodeEnum, "value %q is not one of [%s]", entry.Raw, strings.Join(rule.Values, ", "))
		}

	case KindRange:
		if entry.Type != config.TypeInteger {
			return diag(CodeNotInt, "value %q is not an integer", entry.Raw)
		}
		n := doc.GetInt(path, 0)
		if s.validate.Var(n, fmt.Sprintf("min=%d,max=%d", rule.Min, rule.Max)) != nil {
			return diag(CodeRange, "value %d is outside [%d, %d]", n, rule.Min, rule.Max)
		}

	case KindHostname:
		host := strings.TrimPrefix(entry.Raw, "*.")
		if s.validate.Var(host, "required,hostname_rfc1123") != nil || (!strings.Contains(host, ".") && host != "localhost") {
			return diag(CodeHostname, "value %q does not look like a host name", entry.Raw)
		}

	case KindURLScheme:
		if s.validate.Var(entry.Raw, schemeTag(rule.Values)) != nil {
			return diag(CodeURLScheme, "value %q does not start with %s", entry.Raw, strings.Join(schemePrefixes(rule.Values), " or "))
		}
	}
	return nil
}

func schemePrefixes(schemes []string) []string {
	out := make([]string, len(schemes))
	for i, s := range schemes {
		out[i] = s + "://"
	}
	return out
}

// schemeTag builds an OR of startswith tags, for example
// "startswith=http://|startswith=https://".
func schemeTag(schemes []string) string {
	prefixes := schemePrefixes(schemes)
	for i, p := range prefixes {
		prefixes[i] = "startswith=" + p
	}
	return strings.Join(prefixes, "|")
}
