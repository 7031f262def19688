package policy

import (
	"fmt"
	"time"

	"github.com/cerberus/cerberus/pkg/config"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed but never fail a run.
	SeverityWarning Severity = "warning"

	// SeverityError fails validation.
	SeverityError Severity = "error"

	// SeverityCritical fails validation and is reported first.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether the severity fails validation.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// diagnostic maps the policy severity onto the diagnostic scale.
func (s Severity) diagnostic() config.Severity {
	switch s {
	case SeverityError, SeverityCritical:
		return config.SeverityError
	case SeverityInfo:
		return config.SeverityInfo
	default:
		return config.SeverityWarning
	}
}

// Policy is a Rego module with its metadata. The module must define a
// deny set in its package; every element of the set is a violation.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name" yaml:"name"`

	// Description provides a human-readable description.
	Description string `json:"description" yaml:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego" yaml:"rego"`

	// Severity is the severity of violations that do not set their own.
	Severity Severity `json:"severity" yaml:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

// Violation is one element of a policy's deny set.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Path is the configuration path the violation refers to, if any.
	Path string `json:"path,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Details contains any other fields the rule returned.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Result is the outcome of evaluating every enabled policy against a document.
type Result struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	// Violations lists all violations, ordered by policy name then path.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists policies that failed to evaluate.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation finished.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Diagnostics converts the violations into configuration diagnostics
// attributed to source.
func (r *Result) Diagnostics(source string) []config.Diagnostic {
	out := make([]config.Diagnostic, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, config.Diagnostic{
			File:     source,
			Path:     v.Path,
			Message:  fmt.Sprintf("%s: %s", v.Policy, v.Message),
			Severity: v.Severity.diagnostic(),
			Code:     CodeViolation,
		})
	}
	return out
}

// CodeViolation is the diagnostic code of policy violations.
const CodeViolation = "POLICY_VIOLATION"

// Input is the document passed to Rego as input.
type Input struct {
	// Source is the path or name the document was loaded from.
	Source string `json:"source"`

	// Values maps every path to its typed value: booleans, numbers and strings
	// are native, arrays are lists of typed elements and inline tables stay text.
	Values map[string]interface{} `json:"values"`

	// Entries maps every path to its raw text and type name.
	Entries map[string]InputEntry `json:"entries"`

	// ArrayTables maps every array-table name to its instance count.
	ArrayTables map[string]int `json:"array_tables"`
}

// InputEntry is the raw form of one entry.
type InputEntry struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Bundle is a named, versioned set of policies stored in one file.
type Bundle struct {
	// Name is the unique name of the bundle.
	Name string `json:"name" yaml:"name"`

	// Version is the bundle version.
	Version string `json:"version" yaml:"version"`

	// Description provides a human-readable description.
	Description string `json:"description" yaml:"description"`

	// Policies are the policies in this bundle.
	Policies []Policy `json:"policies" yaml:"policies"`
}
