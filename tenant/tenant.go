// Package tenant enforces the gateway's tenant allowlist.
package tenant

import (
	"errors"
	"strings"
)

// ErrNotAllowed is returned when a tenant is not on the allowlist.
var ErrNotAllowed = errors.New("tenant not allowed")

// Gate decides whether a tenant may use the gateway. An empty allowlist
// means open-tenant mode: every tenant passes. Matching is exact and
// case-sensitive; there is no wildcard support.
type Gate struct {
	allowed map[string]struct{}
}

// NewGate builds a Gate from a comma-separated allowlist. Entries are
// trimmed of surrounding whitespace; empty entries are dropped.
func NewGate(allowlist string) *Gate {
	allowed := make(map[string]struct{})
	for _, entry := range strings.Split(allowlist, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			allowed[entry] = struct{}{}
		}
	}
	return &Gate{allowed: allowed}
}

// Check returns ErrNotAllowed when the allowlist is non-empty and does not
// contain tenantID.
func (g *Gate) Check(tenantID string) error {
	if len(g.allowed) == 0 {
		return nil
	}
	if _, ok := g.allowed[tenantID]; !ok {
		return ErrNotAllowed
	}
	return nil
}

// Open reports whether the gate is in open-tenant mode.
func (g *Gate) Open() bool {
	return len(g.allowed) == 0
}
