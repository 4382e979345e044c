package ast

import (
	"fmt"
	"regexp"
	"strings"
)

// ReservedWords is the fixed keyword set that cannot be used as an
// identifier, function name, or import alias.
var ReservedWords = map[string]bool{
	"function": true, "if": true, "else": true, "elif": true, "while": true,
	"for": true, "in": true, "return": true, "break": true, "continue": true,
	"throw": true, "try": true, "except": true, "finally": true, "import": true,
	"capability": true, "resource": true, "allow": true, "true": true,
	"false": true, "null": true,
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsValidIdentifier reports whether name is letters/digits/underscore, does
// not start with a digit, and is not a reserved keyword.
func IsValidIdentifier(name string) bool {
	if name == "" || ReservedWords[name] {
		return false
	}
	return identifierPattern.MatchString(name)
}

// fixedOps holds the fixed operation alphabet: read, write, execute,
// create, delete, network. IsValidOp also accepts custom:<ident>.
var fixedOps = map[string]bool{
	"read": true, "write": true, "execute": true, "create": true,
	"delete": true, "network": true,
}

// IsValidOp reports whether op belongs to the capability operation alphabet
// fixed by the language: {read, write, execute, create, delete, network,
// custom:<ident>}.
func IsValidOp(op string) bool {
	if fixedOps[op] {
		return true
	}
	if rest, ok := strings.CutPrefix(op, "custom:"); ok {
		return IsValidIdentifier(rest)
	}
	return false
}

// ValidateCapabilityOps checks the CapabilityDecl.ops invariant: a
// non-empty subset of the fixed operation alphabet.
func ValidateCapabilityOps(ops []string) error {
	if len(ops) == 0 {
		return fmt.Errorf("capability declaration must name at least one operation")
	}
	for _, op := range ops {
		if !IsValidOp(op) {
			return fmt.Errorf("invalid capability operation %q", op)
		}
	}
	return nil
}
