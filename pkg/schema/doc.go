// Package schema validates a loaded configuration document against a set of
// rules.
//
// Rules are either hard or advisory. Hard violations (a missing required key,
// a value outside its enum or range, an array-table instance missing one of its
// member keys) are counted in Result.HardErrors and fail the run. Advisory
// violations (host name shape, URL scheme) are reported as warnings and never
// affect Passed.
//
// Validation never stops at the first problem; every rule is applied to every
// matching path so a single run reports everything that is wrong with a file.
// Optional keys are only checked when present.
//
// Individual value checks are delegated to go-playground/validator tags
// (oneof, min/max, hostname_rfc1123, startswith).
//
// Example:
//
//	doc, _ := cfg.Document()
//	result := schema.Default(logger).Validate(ctx, doc)
//	if !result.Passed() {
//		for _, d := range result.Errors() {
//			fmt.Println(d)
//		}
//	}
package schema
