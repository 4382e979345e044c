package codegen

import "github.com/duns-scotus/mlpy/internal/bridge"

// DefaultStdlibBridges binds every recognized "stdlib/..." ML import path
// to its Go-side bridge construction expression. The key set must stay in
// lockstep with bridge.StdlibPaths (the sandbox registers whitelists from
// that map); the ModuleRef literals cannot be derived from the Module
// values themselves, so the pairing is asserted by a test instead.
func DefaultStdlibBridges() map[string]StdlibBridge {
	return map[string]StdlibBridge{
		"stdlib/regex": {
			GoPackage: "github.com/duns-scotus/mlpy/internal/bridge",
			ModuleRef: "bridge.RegexModule{}",
			ClassName: bridge.RegexModule{}.ClassName(),
		},
		"stdlib/fs": {
			GoPackage: "github.com/duns-scotus/mlpy/internal/bridge",
			ModuleRef: "bridge.FSModule{}",
			ClassName: bridge.FSModule{}.ClassName(),
		},
	}
}
