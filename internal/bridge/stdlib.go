package bridge

import "github.com/duns-scotus/mlpy/internal/registry"

// StdlibPaths maps each recognized "stdlib/..." ML import path to the
// Module that backs it. The registry bootstrap (RegisterAll) reads it;
// codegen's DefaultStdlibBridges keeps its own table of the same paths,
// which internal/codegen/stdlib_test.go checks against this one, so
// adding a bridge module means adding an entry to both.
var StdlibPaths = map[string]Module{
	"stdlib/regex": RegexModule{},
	"stdlib/fs":    FSModule{},
}

// RegisterAll installs every stdlib module's class whitelist, plus each
// module's auxiliary classes (a compiled pattern, an open file handle),
// into reg. Called once per sandbox executor instance before any
// generated program runs — the registry has no notion of lazy or
// implicit registration, so every class a stdlib bridge can hand back
// must be registered up front.
func RegisterAll(reg *registry.Registry) {
	for _, m := range StdlibPaths {
		Register(reg, m)
	}
	reg.MustRegisterClass(compiledRegexClass, CompiledRegexAttrs())
	reg.MustRegisterClass(fileHandleClass, FileHandleAttrs())
}
