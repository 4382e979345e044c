// Package bridge implements the host-side module contract C7 describes:
// a bridge module exposes a singleton instance to ML code under a known
// import name, whose public methods are registered in the Safe-Attribute
// Registry under the *class* name of that instance, not the instance's
// own name. Auxiliary classes returned from factory methods (e.g. a
// compiled pattern, an open file handle) are registered separately.
// Methods that perform a privileged operation invoke the capability
// check before acting; the core does not otherwise dictate bridge
// internals.
package bridge

import (
	"github.com/duns-scotus/mlpy/internal/capability"
	"github.com/duns-scotus/mlpy/internal/registry"
	"github.com/duns-scotus/mlpy/internal/runtime"
)

// Module is implemented by every bridge module this tree ships. ClassName
// is the registry key its Attrs are registered under (the class tag a
// runtime.Bridge built from this module carries, e.g. "class:Regex"); it
// is deliberately not the import path or the instance's ML-visible name,
// matching C7's "registered under the class name of that instance, not
// the instance name."
type Module interface {
	ClassName() string
	Attrs() map[string]registry.Entry
	// Instance builds the runtime.Bridge value bound to the given
	// capability manager/thread, which the generated Import statement
	// assigns to the module's ML-visible name.
	Instance(deps Deps) *runtime.Bridge
}

// Deps bundles the capability plumbing every privileged bridge method
// needs, so Instance's signature doesn't grow a parameter per bridge;
// generated code constructs one of these once per sandbox run and
// passes it to every imported module's Instance call.
type Deps struct {
	Manager *capability.Manager
	Thread  *capability.Thread
}

// Register installs m's class whitelist into reg. Called once per bridge
// module at sandbox-executor startup, before any generated import runs.
func Register(reg *registry.Registry, m Module) {
	reg.MustRegisterClass(m.ClassName(), m.Attrs())
}
