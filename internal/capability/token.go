// Package capability implements the runtime capability system: immutable
// tokens, stacked contexts, a process-wide manager, and the glob matcher
// that decides whether a token authorizes an operation on a resource.
package capability

import (
	"time"

	"github.com/google/uuid"
)

// Token is an immutable grant of a set of operations over a set of
// resource glob patterns, optionally expiring. Equality is by identity
// (ID), never by value.
type Token struct {
	ID               string
	Type             string
	ResourcePatterns []string
	AllowedOps       map[string]bool
	CreatedAt        time.Time
	ExpiresAt        *time.Time
	Description      string
}

// NewToken constructs an immutable Token. patterns and ops are copied so
// the caller's slices can be mutated afterward without affecting the
// token.
func NewToken(typ string, patterns []string, ops []string, desc string) *Token {
	allowed := make(map[string]bool, len(ops))
	for _, op := range ops {
		allowed[op] = true
	}
	pats := make([]string, len(patterns))
	copy(pats, patterns)
	return &Token{
		ID:               uuid.NewString(),
		Type:             typ,
		ResourcePatterns: pats,
		AllowedOps:       allowed,
		CreatedAt:        time.Now(),
		Description:      desc,
	}
}

// WithExpiry returns a copy of t with ExpiresAt set. Tokens are immutable
// after construction, so this returns a new value rather than mutating t.
func (t *Token) WithExpiry(at time.Time) *Token {
	cp := *t
	cp.ExpiresAt = &at
	return &cp
}

// Expired reports whether t has a set expiry that has passed.
func (t *Token) Expired() bool {
	return t.ExpiresAt != nil && time.Now().After(*t.ExpiresAt)
}

// Allows reports whether this token authorizes op on resource, ignoring
// expiry (callers check Expired separately so the check semantics stay a
// pure function of policy rather than wall-clock time).
func (t *Token) Allows(op, resource string) bool {
	if !t.AllowedOps[op] {
		return false
	}
	for _, pattern := range t.ResourcePatterns {
		if MatchGlob(pattern, resource) {
			return true
		}
	}
	return false
}
