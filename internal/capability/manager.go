package capability

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/duns-scotus/mlpy/internal/logging"
)

// Thread is an explicit handle to one logical execution thread's active
// context stack. spec.md describes the active stack as "thread-local";
// Go has no public, stable notion of the current goroutine, so this
// package makes the handle an explicit value the caller threads through
// its own call chain (the sandbox executor creates one per run) rather
// than reaching for goroutine-local hacks.
type Thread struct {
	id string
}

// NewThread allocates a fresh, empty-stack thread handle.
func NewThread() *Thread {
	return &Thread{id: uuid.NewString()}
}

// Guard is returned by EnterContext; its Release must be called on every
// exit path (normal return, early return, or panic/exception) to pop the
// context it introduced.
type Guard struct {
	mgr    *Manager
	thread *Thread
	ctx    *Context
	done   bool
}

// Release pops the context this guard introduced. Calling Release more
// than once, or releasing anything but the innermost context on the
// thread's stack, is a programmer error reported as an error rather than
// silently ignored, since it signals a generator bug in the scoped
// acquire/release it is meant to emit.
func (g *Guard) Release() error {
	if g.done {
		return errors.New("capability: guard already released")
	}
	g.done = true
	return g.mgr.leaveContext(g.thread, g.ctx)
}

// Manager is the process-wide capability authority: it tracks every
// context currently alive (by context ID) and, per Thread handle, the
// active stack of contexts entered on it.
type Manager struct {
	mu       sync.Mutex
	named    map[string]*Context // contexts currently alive, keyed by context ID
	tops     map[*Thread]*Context
	policy   PolicyProvider
	declared map[*Thread][]*Token // tokens declared on a thread, for PolicyProvider checks
}

// NewManager constructs a Manager with a no-op policy provider installed.
func NewManager() *Manager {
	return &Manager{
		named:    make(map[string]*Context),
		tops:     make(map[*Thread]*Context),
		declared: make(map[*Thread][]*Token),
		policy:   NoopPolicyProvider{},
	}
}

// SetPolicyProvider installs a non-default policy layer. See PolicyProvider.
func (m *Manager) SetPolicyProvider(p PolicyProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = p
}

// CreateToken is a thin factory matching spec.md's
// `create_token(type, patterns, ops, desc) -> Token` contract.
func (m *Manager) CreateToken(typ string, patterns, ops []string, desc string) *Token {
	return NewToken(typ, patterns, ops, desc)
}

// EnterContext pushes a new context containing tokens onto thread's
// active stack and registers it under its context ID in the process-wide
// table of live contexts. It returns a Guard whose Release must run on every exit
// path.
func (m *Manager) EnterContext(thread *Thread, name string, tokens []*Token) (*Guard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.policy != nil {
		if err := m.policy.Validate(m.declared[thread], tokens); err != nil {
			return nil, err
		}
	}

	parent := m.tops[thread]
	ctx := newContext(name, tokens, parent)
	m.tops[thread] = ctx
	m.named[ctx.ID] = ctx
	m.declared[thread] = append(m.declared[thread], tokens...)

	logging.CapabilityDebug("entered context %q (id=%s) on thread %s, depth now %d", name, ctx.ID, thread.id, depth(ctx))
	return &Guard{mgr: m, thread: thread, ctx: ctx}, nil
}

func depth(c *Context) int {
	n := 0
	for cur := c; cur != nil; cur = cur.Parent {
		n++
	}
	return n
}

// leaveContext pops ctx from thread's stack. ctx must be the innermost
// active context on that thread — generated code never releases out of
// order because the generator always emits strictly nested
// acquire/release pairs, but a caller-authored bridge could violate this,
// so it is checked rather than assumed.
func (m *Manager) leaveContext(thread *Thread, ctx *Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	top := m.tops[thread]
	if top == nil || top.ID != ctx.ID {
		return errors.New("capability: release of non-innermost context")
	}
	m.tops[thread] = ctx.Parent
	delete(m.named, ctx.ID)
	logging.CapabilityDebug("left context %q (id=%s) on thread %s", ctx.Name, ctx.ID, thread.id)
	return nil
}

// Current returns the innermost active context on thread, or nil if the
// stack is empty.
func (m *Manager) Current(thread *Thread) *Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tops[thread]
}

// Check walks thread's active context stack, innermost first, and
// reports whether any live token authorizes op on resource. This is the
// hot path spec.md requires to be lock-free after context lookup: the
// lock is held only to snapshot the current top pointer, not across the
// walk or the glob match.
func (m *Manager) Check(thread *Thread, op, resource string) bool {
	m.mu.Lock()
	top := m.tops[thread]
	m.mu.Unlock()
	if top == nil {
		return false
	}
	ok := top.allows(op, resource)
	if !ok {
		logging.CapabilityWarn("denied op=%q resource=%q on thread %s", op, resource, thread.id)
	}
	return ok
}
