package codegen

import "github.com/duns-scotus/mlpy/internal/registry"

// StdlibBridge is one recognized-stdlib-import binding: which Go bridge
// package backs the ML import path, the Go expression constructing its
// bridge.Module value, and the registry class name it registers under
// (codegen needs the class name statically so an Attr on the bound alias
// can be checked against the class whitelist at generation time, the same
// way Phase B's Options.KnownClasses lets the analyzer do it).
type StdlibBridge struct {
	GoPackage string
	ModuleRef string
	ClassName string
}

// Options configures one Generate call, per spec.md §4.5's
// generate(program, options) contract.
type Options struct {
	// MLFile is the source filename recorded in the emitted source map.
	MLFile string
	// Reg is the Safe-Attribute Registry codegen consults before emitting
	// any Attr, Call(Attr), or Assign(Attr) node.
	Reg *registry.Registry
	// StrictArith selects Open-Question-2's typed-error alternative for
	// `number + string` mixed arithmetic instead of the default
	// string-coercion behavior.
	StrictArith bool
	// StdlibBridges maps a recognized ML stdlib import path (e.g.
	// "stdlib/regex") to its bridge binding.
	StdlibBridges map[string]StdlibBridge
	// AllowedImportPrefixes restricts user-module Import paths not found
	// in StdlibBridges; empty means unrestricted.
	AllowedImportPrefixes []string
}

func (o Options) hasImportPrefix(path string) bool {
	if len(o.AllowedImportPrefixes) == 0 {
		return true
	}
	for _, p := range o.AllowedImportPrefixes {
		if len(path) >= len(p) && path[:len(p)] == p {
			return true
		}
	}
	return false
}
