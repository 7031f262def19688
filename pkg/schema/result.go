package schema

import "github.com/cerberus/cerberus/pkg/config"

// Result is the outcome of one validation run.
type Result struct {
	// HardErrors counts error diagnostics. Validation passes only when it is zero.
	HardErrors int `json:"hard_errors" yaml:"hard_errors"`

	// Warnings counts advisory diagnostics.
	Warnings int `json:"warnings" yaml:"warnings"`

	// Diagnostics lists every violation in rule order.
	Diagnostics []config.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
}

// Passed reports whether no hard error was found.
func (r *Result) Passed() bool {
	return r.HardErrors == 0
}

// Errors returns only the hard errors.
func (r *Result) Errors() []config.Diagnostic {
	var out []config.Diagnostic
	for _, d := range r.Diagnostics {
		if d.IsError() {
			out = append(out, d)
		}
	}
	return out
}

// Merge adds diagnostics produced elsewhere, such as policy violations, and
// updates the counters.
func (r *Result) Merge(diags ...config.Diagnostic) {
	for _, d := range diags {
		r.add(d)
	}
}

func (r *Result) add(d config.Diagnostic) {
	switch d.Severity {
	case config.SeverityError:
		r.HardErrors++
	case config.SeverityWarning:
		r.Warnings++
	}
	r.Diagnostics = append(r.Diagnostics, d)
}
