package capability

import "github.com/google/uuid"

// Context is one named, stacked set of tokens. Contexts form a stack per
// execution thread; a token authorizes an operation if some token in the
// active context chain (this context and every ancestor) allows it.
type Context struct {
	ID     string
	Name   string
	Tokens []*Token
	Parent *Context
}

func newContext(name string, tokens []*Token, parent *Context) *Context {
	toks := make([]*Token, len(tokens))
	copy(toks, tokens)
	return &Context{ID: uuid.NewString(), Name: name, Tokens: toks, Parent: parent}
}

// allows walks this context and every ancestor, innermost first, looking
// for a live (non-expired) token that authorizes op on resource.
func (c *Context) allows(op, resource string) bool {
	for cur := c; cur != nil; cur = cur.Parent {
		for _, tok := range cur.Tokens {
			if tok.Expired() {
				continue
			}
			if tok.Allows(op, resource) {
				return true
			}
		}
	}
	return false
}
