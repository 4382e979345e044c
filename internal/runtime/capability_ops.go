package runtime

import "github.com/duns-scotus/mlpy/internal/capability"

// EnterCapability enters a new context scoped to name on thread holding
// tokens and returns the Guard whose Release ends it; it is a thin wrapper
// over Manager.EnterContext. Generated capability helpers call
// Manager.EnterContext directly.
func EnterCapability(mgr *capability.Manager, thread *capability.Thread, name string, tokens []*capability.Token) (*capability.Guard, error) {
	return mgr.EnterContext(thread, name, tokens)
}

// NewCapabilityToken mirrors spec.md's `create_token(type, patterns, ops,
// desc) -> Token` factory as a thin wrapper over Manager.CreateToken,
// which generated capability helpers call directly.
func NewCapabilityToken(mgr *capability.Manager, typ string, patterns, ops []string, desc string) *capability.Token {
	return mgr.CreateToken(typ, patterns, ops, desc)
}

// CheckCapability is called by a Bridge's Invoke before it performs a
// privileged operation (C7's "methods that perform privileged operations
// must invoke the capability check before acting"). It returns a
// RuntimeError carrying enough context for diagnostics.Sanitize to
// describe the denial without guessing at the underlying message shape.
func CheckCapability(mgr *capability.Manager, thread *capability.Thread, op, resource string) error {
	if mgr.Check(thread, op, resource) {
		return nil
	}
	return NewRuntimeError("capability denied: op=%s resource=%s", op, resource)
}
