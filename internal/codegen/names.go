package codegen

import "regexp"

// identifierPattern mirrors internal/ast/validate.go's grammar-level
// identifier check; codegen re-validates independently of the parser
// because a capability name or generated alias can originate from a
// config-driven rename, not just source text.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// auxName produces a generator-internal identifier prefixed per spec.md
// §4.5's "generated auxiliary names are prefixed (_ml_) to avoid
// collisions" rule.
func auxName(suffix string) string {
	return "_ml_" + suffix
}
