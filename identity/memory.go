// Package identity provides an in-memory reference implementation of the
// gridauth IdentityProvider. Production deployments back it with their own
// user database; this one serves tests, examples, and single-node setups.
package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	gridauth "github.com/empower-grid/gridauth"
)

// MemoryProvider is a mutex-guarded map keyed by canonical wallet address.
type MemoryProvider struct {
	mu       sync.RWMutex
	byWallet map[string]gridauth.Identity
}

// NewMemoryProvider creates an empty [MemoryProvider].
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		byWallet: make(map[string]gridauth.Identity),
	}
}

// GetOrCreateByWallet returns the identity for the wallet, registering a
// minimal one on first sight. The role is left empty so the engine assigns
// its configured default.
func (p *MemoryProvider) GetOrCreateByWallet(_ context.Context, walletAddress string) (gridauth.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byWallet[walletAddress]; ok {
		return id, nil
	}

	id := gridauth.Identity{
		ID:            uuid.NewString(),
		WalletAddress: walletAddress,
		Reputation:    0,
		Verified:      false,
		CreatedAt:     time.Now(),
	}
	p.byWallet[walletAddress] = id

	return id, nil
}

// GetByWallet returns the identity for the wallet, or ErrRegistrationFailed
// when unknown.
func (p *MemoryProvider) GetByWallet(_ context.Context, walletAddress string) (gridauth.Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byWallet[walletAddress]
	if !ok {
		return gridauth.Identity{}, gridauth.ErrRegistrationFailed
	}
	return id, nil
}

// Put inserts or replaces an identity. Test helper.
func (p *MemoryProvider) Put(id gridauth.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byWallet[id.WalletAddress] = id
}
