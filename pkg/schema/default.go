package schema

import "github.com/rs/zerolog"

// ProxyTypes are the reverse proxies the generators can emit configuration for.
var ProxyTypes = []string{"caddy", "haproxy", "nginx", "traefik"}

// DefaultRules returns the rules every Cerberus configuration must satisfy.
func DefaultRules() []Rule {
	return []Rule{
		Required("project.name"),

		Members("proxies", "name", "type"),
		Enum("proxies.*.type", ProxyTypes...),
		Range("proxies.*.external_port", 1, 65535),
		Range("proxies.*.internal_port", 1, 65535),
		Range("proxies.*.instances", 1, 255),

		Members("services", "name", "domain", "upstream"),
		Hostname("services.*.domain"),
		URLScheme("services.*.upstream", "http", "https"),

		Range("anubis.difficulty", 1, 10).When("anubis.enabled"),
	}
}

// Default returns a schema with DefaultRules.
func Default(logger zerolog.Logger) *Schema {
	return New(logger, DefaultRules()...)
}
