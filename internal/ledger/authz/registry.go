// Package authz holds the mutable capability registry that gates the
// ledger's completion entry points.
//
// The registry replaces a fixed set of hardcoded module addresses with an
// allow-list that an administrative actor populates before normal operation
// and may extend later. The core trusts registered addresses
// unconditionally.
package authz

import (
	"sync"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
)

// Capability names an entry point a caller may be granted.
type Capability string

const (
	// CapabilityCompleteQuest allows calling the authority's direct
	// completion entry point. Granted to quest-variant modules.
	CapabilityCompleteQuest Capability = "complete_quest"
	// CapabilityRelayUpdate allows calling the authority's cross-domain
	// update entry point. Granted to configured relays.
	CapabilityRelayUpdate Capability = "relay_update"
)

// Registry is a concurrency-safe capability allow-list keyed by address.
type Registry struct {
	mu     sync.RWMutex
	grants map[Capability]map[domain.Address]struct{}
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{grants: make(map[Capability]map[domain.Address]struct{})}
}

// Grant allows addr to invoke entry points gated by capability.
func (r *Registry) Grant(capability Capability, addr domain.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	holders, ok := r.grants[capability]
	if !ok {
		holders = make(map[domain.Address]struct{})
		r.grants[capability] = holders
	}
	holders[addr] = struct{}{}
}

// Revoke removes addr from the capability's allow-list.
func (r *Registry) Revoke(capability Capability, addr domain.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants[capability], addr)
}

// Allowed reports whether addr holds the capability.
func (r *Registry) Allowed(capability Capability, addr domain.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.grants[capability][addr]
	return ok
}

// Holders returns the addresses currently granted the capability.
func (r *Registry) Holders(capability Capability) []domain.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	holders := make([]domain.Address, 0, len(r.grants[capability]))
	for addr := range r.grants[capability] {
		holders = append(holders, addr)
	}
	return holders
}
