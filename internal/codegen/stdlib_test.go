package codegen

import (
	"testing"

	"github.com/duns-scotus/mlpy/internal/bridge"
)

// Every path bridge.StdlibPaths recognizes must have a codegen binding,
// and the class names must agree, or an import would register one
// whitelist and generate against another.
func TestDefaultStdlibBridgesMatchesBridgeTable(t *testing.T) {
	bridges := DefaultStdlibBridges()
	if len(bridges) != len(bridge.StdlibPaths) {
		t.Errorf("binding table has %d entries, bridge.StdlibPaths has %d", len(bridges), len(bridge.StdlibPaths))
	}
	for path, mod := range bridge.StdlibPaths {
		sb, ok := bridges[path]
		if !ok {
			t.Errorf("no codegen binding for recognized stdlib path %q", path)
			continue
		}
		if sb.ClassName != mod.ClassName() {
			t.Errorf("%s: binding class %q, module class %q", path, sb.ClassName, mod.ClassName())
		}
		if sb.ModuleRef == "" || sb.GoPackage == "" {
			t.Errorf("%s: incomplete binding %+v", path, sb)
		}
	}
}
