package capability

// ResourceFunc computes the resource string a privileged call is about to
// act on, typically derived from one of its arguments (a path, a host
// name, and so on).
type ResourceFunc func(args ...interface{}) string

// Requires implements the decorator protocol bridge methods use: a host
// function marked requires(cap_type, op, resource_fn) must call this
// before executing, and propagate the returned error (a *Error) instead
// of proceeding on denial. capType is currently unused for the check
// itself (Check walks every token on the stack regardless of Type) but is
// threaded through so a future PolicyProvider can distinguish capability
// families without changing every bridge call site.
func Requires(mgr *Manager, thread *Thread, capType, op string, resourceFn ResourceFunc, args ...interface{}) error {
	resource := resourceFn(args...)
	if !mgr.Check(thread, op, resource) {
		return NewError(op, resource)
	}
	return nil
}
