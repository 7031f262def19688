// Package policy evaluates organisation-specific rules, written in Rego, against
// a loaded configuration document.
//
// The schema package covers what every Cerberus configuration must satisfy.
// Policies add rules that vary between deployments: naming conventions, port
// allocations, which proxies may be used in which environment.
//
// # Architecture
//
//  1. Engine - compiles policies once and evaluates them against documents
//  2. Loader - reads policies from .rego, .json and .yaml files and bundles,
//     and can watch them for changes
//  3. Built-in policies - cross-instance checks the schema cannot express
//
// # Writing Policies
//
// A policy is a Rego module that defines a deny set. Each element is either a
// message string or an object with message, path and severity keys:
//
//	# Proxies must not expose privileged ports.
//	# severity: error
//	package cerberus.custom.ports
//
//	import rego.v1
//
//	deny contains violation if {
//		some path, port in input.values
//		endswith(path, ".external_port")
//		port < 1024
//		port != 80
//		port != 443
//		violation := {"message": sprintf("port %v is privileged", [port]), "path": path}
//	}
//
// The input document has four fields:
//
//	input.source        the file the configuration was loaded from
//	input.values        path -> typed value (bool, number, string, list)
//	input.entries       path -> {"value": raw text, "type": type name}
//	input.array_tables  array-table name -> instance count
//
// # Built-in Policies
//
//	unique-proxy-names      error    two proxies share a name
//	unique-service-domains  warning  two services share a domain
//	unique-external-ports   warning  two proxies publish the same port
//	anubis-needs-proxy      warning  anubis is enabled without any proxy
//
// # Usage
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//		return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"policies/"}); err != nil {
//		return err
//	}
//	result, err := eng.Evaluate(ctx, doc)
//	if err != nil {
//		return err
//	}
//	for _, d := range result.Diagnostics(doc.Source()) {
//		fmt.Println(d)
//	}
package policy
