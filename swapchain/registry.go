// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package swapchain

import (
	"fmt"
	"sync"

	"github.com/gogpu/surfchain"
	"github.com/gogpu/surfchain/device"
)

// Registry is the two-level index of every live Chain: a primary table
// keyed by ChainID behind a RWMutex (the consumer's hot path, Get, takes
// only the read lock), and a secondary index grouping chain IDs by their
// owning context behind its own Mutex, used by Iter. When both locks are
// needed they are always acquired table-then-ids.
type Registry struct {
	mu    sync.RWMutex
	table map[ChainID]*Chain

	idsMu sync.Mutex
	ids   map[device.ContextID]map[ChainID]struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		table: make(map[ChainID]*Chain),
		ids:   make(map[device.ContextID]map[ChainID]struct{}),
	}
}

// CreateAttachedSwapChain registers a new Chain under id whose back
// buffer is the surface currently bound to ctx; the chain's size is
// inherited from that surface. The context keeps ownership of the
// surface (the chain is born attached). Registering an id that is
// already present fails.
func (r *Registry) CreateAttachedSwapChain(dev device.Device, ctx device.Context, id ChainID, access device.SurfaceAccess) error {
	r.mu.Lock()
	if _, exists := r.table[id]; exists {
		r.mu.Unlock()
		return fmt.Errorf("swapchain: create attached swap chain: id %d already registered: %w", id, device.ErrFailed)
	}
	c, err := CreateAttached(dev, ctx, id, access)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.table[id] = c
	r.mu.Unlock()

	r.addToContext(c)
	surfchain.Logger().Info("swapchain: created attached chain", "id", id, "size", c.data.size)
	return nil
}

// CreateDetachedSwapChain allocates a surface per cfg and registers a
// new Chain under id that owns it directly, without binding it to any
// context. This is the form used by a producer driving several chains,
// or by a chain rendered off the context's main surface entirely.
func (r *Registry) CreateDetachedSwapChain(dev device.Device, ctx device.Context, id ChainID, cfg device.Config) error {
	r.mu.Lock()
	if _, exists := r.table[id]; exists {
		r.mu.Unlock()
		return fmt.Errorf("swapchain: create detached swap chain: id %d already registered: %w", id, device.ErrFailed)
	}
	c, err := CreateDetached(dev, ctx, id, cfg)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.table[id] = c
	r.mu.Unlock()

	r.addToContext(c)
	surfchain.Logger().Info("swapchain: created detached chain", "id", id, "size", cfg.Size)
	return nil
}

func (r *Registry) addToContext(c *Chain) {
	r.idsMu.Lock()
	set := r.ids[c.data.contextID]
	if set == nil {
		set = make(map[ChainID]struct{})
		r.ids[c.data.contextID] = set
	}
	set[c.id] = struct{}{}
	r.idsMu.Unlock()
}

// Get resolves id to its Chain. Safe to call from any thread; this is
// the consumer's hot path and only ever takes the table read lock.
func (r *Registry) Get(id ChainID) (*Chain, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.table[id]
	return c, ok
}

// GetConsumer resolves id to its narrow Consumer view, implementing
// Lookup for a caller that should not see producer-only operations.
func (r *Registry) GetConsumer(id ChainID) (Consumer, bool) {
	c, ok := r.Get(id)
	if !ok {
		return nil, false
	}
	return c, true
}

// Destroy removes id from the registry and drains its Chain's surfaces
// back to dev. It is an error to call Destroy twice for the same id.
func (r *Registry) Destroy(dev device.Device, ctx device.Context, id ChainID) error {
	r.mu.Lock()
	c, ok := r.table[id]
	if ok {
		delete(r.table, id)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("swapchain: destroy: %w", ErrChainNotFound)
	}

	r.idsMu.Lock()
	if set, ok := r.ids[c.data.contextID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.ids, c.data.contextID)
		}
	}
	r.idsMu.Unlock()

	if err := c.Destroy(dev, ctx); err != nil {
		return fmt.Errorf("swapchain: destroy: %w", err)
	}

	surfchain.Logger().Info("swapchain: destroyed chain", "id", id)
	return nil
}

// Iter returns a snapshot of the chains currently owned by ctx's
// context, in no particular order. The snapshot is taken under the
// registry's locks and returned with both released, so callers may use
// the chains (or the registry) freely; a chain destroyed concurrently
// may still appear in the slice, already drained.
func (r *Registry) Iter(dev device.Device, ctx device.Context) []*Chain {
	contextID := dev.ContextID(ctx)

	r.idsMu.Lock()
	ids := make([]ChainID, 0, len(r.ids[contextID]))
	for id := range r.ids[contextID] {
		ids = append(ids, id)
	}
	r.idsMu.Unlock()

	r.mu.RLock()
	chains := make([]*Chain, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.table[id]; ok {
			chains = append(chains, c)
		}
	}
	r.mu.RUnlock()
	return chains
}
