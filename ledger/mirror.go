/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package ledger

import (
	"sync"
)

// Mirror is a participant's read-only copy of the ledger, refreshed from
// change notifications.
type Mirror struct {
	mu      sync.RWMutex
	state   Ledger
	version uint64
}

// NewMirror returns a mirror seeded with l at version.
func NewMirror(l Ledger, version uint64) *Mirror {
	return &Mirror{state: l, version: version}
}

// Update replaces the cached ledger unless version is older than the one
// already held. It reports whether the cache changed.
func (m *Mirror) Update(l Ledger, version uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if version < m.version {
		return false
	}
	m.state = l
	m.version = version

	return true
}

// Current implements View.
func (m *Mirror) Current() Ledger {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state
}

// Version returns the version of the cached ledger.
func (m *Mirror) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.version
}
