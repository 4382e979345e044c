package capability

// PolicyProvider is the extension seam spec.md's Design Notes call for:
// self-granting capabilities are the current model, but an external
// policy layer can be plugged in later without touching the Manager's
// call sites. Validate is invoked whenever a context is entered, given
// the tokens already declared earlier on the same thread and the tokens
// about to be granted by the new context.
type PolicyProvider interface {
	// Validate returns an error if granted is not permitted given what has
	// already been declared on this thread (for example, enforcing
	// "declared capabilities must be a subset of what an external policy
	// grants"). A nil error permits the context to be entered.
	Validate(declared, granted []*Token) error
}

// NoopPolicyProvider is the default installed on every new Manager: it
// always permits, matching the "self-granting capabilities are the
// current model" statement in spec.md's Design Notes while still giving
// every EnterContext call a policy hook to go through.
type NoopPolicyProvider struct{}

func (NoopPolicyProvider) Validate(declared, granted []*Token) error { return nil }
