package schema

import (
	"fmt"
	"strings"

	"github.com/cerberus/cerberus/pkg/config"
)

// Kind identifies what a rule checks.
type Kind string

const (
	// KindRequired requires a non-empty value at the path.
	KindRequired Kind = "required"

	// KindEnum requires a present value to be one of a fixed set.
	KindEnum Kind = "enum"

	// KindRange requires a present value to be an integer within [Min, Max].
	KindRange Kind = "range"

	// KindMembers requires every instance of an array-table to define a set of keys.
	KindMembers Kind = "members"

	// KindHostname checks that a present value looks like a host name.
	KindHostname Kind = "hostname"

	// KindURLScheme checks that a present value starts with one of a set of URL schemes.
	KindURLScheme Kind = "url_scheme"
)

// Diagnostic codes emitted by the validator.
const (
	CodeRequired  = "SCHEMA_REQUIRED"
	CodeEnum      = "SCHEMA_ENUM"
	CodeRange     = "SCHEMA_RANGE"
	CodeNotInt    = "SCHEMA_NOT_INTEGER"
	CodeMember    = "SCHEMA_MISSING_MEMBER"
	CodeHostname  = "SCHEMA_HOSTNAME"
	CodeURLScheme = "SCHEMA_URL_SCHEME"
	CodeCancelled = "SCHEMA_CANCELLED"
)

// Rule is a single schema constraint.
//
// Path is a dotted path in which a "*" segment stands for every instance of the
// array-table named by the preceding segments, so "proxies.*.type" is checked as
// proxies.0.type, proxies.1.type and so on. For KindMembers, Path names the
// array-table itself.
type Rule struct {
	Kind Kind   `json:"kind" yaml:"kind"`
	Path string `json:"path" yaml:"path"`

	// Values holds the allowed values (enum), the member keys (members) or the
	// accepted URL schemes (url_scheme).
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`

	Min int `json:"min,omitempty" yaml:"min,omitempty"`
	Max int `json:"max,omitempty" yaml:"max,omitempty"`

	// Advisory rules produce warnings and never count as hard errors.
	Advisory bool `json:"advisory,omitempty" yaml:"advisory,omitempty"`

	// Condition, when set, is a boolean path that must be true for the rule to
	// apply. A "*" in it is bound to the same instance as the rule path.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Required builds a rule that fails when path is missing or empty.
func Required(path string) Rule {
	return Rule{Kind: KindRequired, Path: path}
}

// Enum builds a rule that fails when a present value is not one of values.
func Enum(path string, values ...string) Rule {
	return Rule{Kind: KindEnum, Path: path, Values: values}
}

// Range builds a rule that fails when a present value is not an integer in [min, max].
func Range(path string, min, max int) Rule {
	return Rule{Kind: KindRange, Path: path, Min: min, Max: max}
}

// Members builds a rule that fails for every instance of table missing one of keys.
func Members(table string, keys ...string) Rule {
	return Rule{Kind: KindMembers, Path: table, Values: keys}
}

// Hostname builds an advisory host name shape check. A leading "*." wildcard
// label is accepted.
func Hostname(path string) Rule {
	return Rule{Kind: KindHostname, Path: path, Advisory: true}
}

// URLScheme builds an advisory check that a present value starts with
// scheme + "://" for one of schemes.
func URLScheme(path string, schemes ...string) Rule {
	return Rule{Kind: KindURLScheme, Path: path, Values: schemes, Advisory: true}
}

// When returns a copy of r that only applies while the boolean at path is true.
func (r Rule) When(path string) Rule {
	r.Condition = path
	return r
}

// Soft returns a copy of r that reports warnings instead of hard errors.
func (r Rule) Soft() Rule {
	r.Advisory = true
	return r
}

// String renders the rule for listings.
func (r Rule) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", r.Kind, r.Path)
	switch r.Kind {
	case KindEnum, KindMembers, KindURLScheme:
		fmt.Fprintf(&b, " [%s]", strings.Join(r.Values, ", "))
	case KindRange:
		fmt.Fprintf(&b, " [%d, %d]", r.Min, r.Max)
	}
	if r.Condition != "" {
		fmt.Fprintf(&b, " when %s", r.Condition)
	}
	if r.Advisory {
		b.WriteString(" (advisory)")
	}
	return b.String()
}

func (r Rule) severity() config.Severity {
	if r.Advisory {
		return config.SeverityWarning
	}
	return config.SeverityError
}

// binding is one concrete expansion of a wildcard rule.
type binding struct {
	path      string
	condition string
}

// expand resolves every "*" in the rule path against doc. The condition is
// rewritten with the same instance indices.
func (r Rule) expand(doc *config.Document) []binding {
	return expandPath(doc, r.Path, r.Condition)
}

func expandPath(doc *config.Document, path, condition string) []binding {
	i := strings.Index(path, ".*")
	if i < 0 {
		return []binding{{path: path, condition: condition}}
	}

	table := path[:i]
	rest := path[i+2:]

	condRest := ""
	bindCond := false
	if ci := strings.Index(condition, ".*"); ci >= 0 && condition[:ci] == table {
		condRest = condition[ci+2:]
		bindCond = true
	}

	var out []binding
	count := doc.ArrayTableCount(table)
	for n := 0; n < count; n++ {
		cond := condition
		if bindCond {
			cond = fmt.Sprintf("%s.%d%s", table, n, condRest)
		}
		out = append(out, expandPath(doc, fmt.Sprintf("%s.%d%s", table, n, rest), cond)...)
	}
	return out
}
