package sandbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/duns-scotus/mlpy/internal/capability"
)

// TokenSpec is the parent→child capability-token wire record: an ordered
// list of these is how a parent process forwards pre-built grants into a
// run's initial context. The child side (Executor.Run via
// Options.ExternalTokens) reconstructs real tokens from it, so the wire
// format never carries token identity — a reconstructed token is a new
// grant, not a shared handle.
type TokenSpec struct {
	Type        string     `json:"type"`
	Patterns    []string   `json:"patterns"`
	Ops         []string   `json:"ops"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Description string     `json:"description"`
}

// DecodeTokenSpecs parses a JSON array of TokenSpec records and builds
// the tokens to install in a run's root context, preserving order.
func DecodeTokenSpecs(data []byte) ([]*capability.Token, error) {
	var specs []TokenSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("sandbox: invalid token spec list: %w", err)
	}
	tokens := make([]*capability.Token, 0, len(specs))
	for i, s := range specs {
		if s.Type == "" {
			return nil, fmt.Errorf("sandbox: token spec %d has no type", i)
		}
		if len(s.Ops) == 0 {
			return nil, fmt.Errorf("sandbox: token spec %d (%s) grants no operations", i, s.Type)
		}
		tok := capability.NewToken(s.Type, s.Patterns, s.Ops, s.Description)
		if s.ExpiresAt != nil {
			tok = tok.WithExpiry(*s.ExpiresAt)
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// EncodeTokenSpecs renders tokens in the wire format, for a parent that
// wants to hand its grants to a child process.
func EncodeTokenSpecs(tokens []*capability.Token) ([]byte, error) {
	specs := make([]TokenSpec, 0, len(tokens))
	for _, t := range tokens {
		ops := make([]string, 0, len(t.AllowedOps))
		for op := range t.AllowedOps {
			ops = append(ops, op)
		}
		sortStrings(ops)
		specs = append(specs, TokenSpec{
			Type:        t.Type,
			Patterns:    t.ResourcePatterns,
			Ops:         ops,
			ExpiresAt:   t.ExpiresAt,
			Description: t.Description,
		})
	}
	return json.Marshal(specs)
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
