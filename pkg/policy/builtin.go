package policy

import (
	"strings"
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		uniqueFieldPolicy(
			"unique-proxy-names",
			"Every proxy must have a distinct name; generated service names are derived from it",
			"proxies", "name", SeverityError,
		),
		uniqueFieldPolicy(
			"unique-service-domains",
			"Two services routing the same domain shadow each other in the proxy configuration",
			"services", "domain", SeverityWarning,
		),
		uniqueFieldPolicy(
			"unique-external-ports",
			"Proxies publishing the same external port cannot run on one host",
			"proxies", "external_port", SeverityWarning,
		),
		anubisProxyPolicy(),
	}
}

// uniqueFieldRego reports every instance whose field repeats the value of an
// earlier instance of the same array-table.
const uniqueFieldRego = `package cerberus.builtin.{{package}}

import rego.v1

values[idx] := value if {
	some path, value in input.values
	parts := split(path, ".")
	count(parts) == 3
	parts[0] == "{{table}}"
	parts[2] == "{{field}}"
	idx := to_number(parts[1])
}

deny contains violation if {
	some i, value in values
	some j, other in values
	i < j
	value == other
	violation := {
		"message": sprintf("{{table}}[%v].{{field}} duplicates {{table}}[%v].{{field}} (%v)", [j, i, value]),
		"path": sprintf("{{table}}.%v.{{field}}", [j]),
		"severity": "{{severity}}",
	}
}
`

func uniqueFieldPolicy(name, description, table, field string, severity Severity) Policy {
	r := strings.NewReplacer(
		"{{package}}", strings.ReplaceAll(name, "-", "_"),
		"{{table}}", table,
		"{{field}}", field,
		"{{severity}}", string(severity),
	)
	return Policy{
		Name:        name,
		Description: description,
		Severity:    severity,
		Enabled:     true,
		Tags:        []string{"builtin", table},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego:        r.Replace(uniqueFieldRego),
	}
}

// anubisProxyPolicy warns when the bot-protection layer is enabled without a
// proxy in front of it.
func anubisProxyPolicy() Policy {
	return Policy{
		Name:        "anubis-needs-proxy",
		Description: "Anubis only receives traffic through a proxy",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"builtin", "anubis"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package cerberus.builtin.anubis_needs_proxy

import rego.v1

deny contains violation if {
	input.values["anubis.enabled"] == true
	object.get(input.array_tables, "proxies", 0) == 0
	violation := {
		"message": "anubis is enabled but no proxy is configured",
		"path": "anubis.enabled",
	}
}
`,
	}
}
