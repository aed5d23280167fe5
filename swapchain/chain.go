// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package swapchain implements the swap-chain engine: the data a chain
// needs to rotate Surfaces between a producer and its consumers, the
// Chain handle wrapping that data under a mutex, the two-level Registry
// that indexes chains both by ID and by owning context, and the narrow
// Consumer/Lookup views a non-producer caller is given.
package swapchain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/surfchain"
	"github.com/gogpu/surfchain/backbuffer"
	"github.com/gogpu/surfchain/device"
)

// ChainID identifies a Chain within a Registry. IDs are chosen by the
// caller (a pipeline or window identifier, typically) and must be
// unique within one Registry.
type ChainID uint64

// PreserveMode controls whether SwapBuffers must carry the outgoing back
// buffer's pixels forward into the new one.
type PreserveMode uint8

const (
	// PreserveNo lets the new back buffer start with undefined
	// contents, the cheaper default.
	PreserveNo PreserveMode = iota

	// PreserveYes blits the outgoing back buffer's contents into the
	// new one after the rotation. The Device must implement
	// device.Blitter; otherwise SwapBuffers returns an ErrFailed error
	// (the rotation itself still completes).
	PreserveYes
)

// chainData is the state a Chain protects with its mutex, unexported
// because every field is reachable only through Chain's methods.
type chainData struct {
	size      device.Size
	contextID device.ContextID
	access    device.SurfaceAccess
	back      backbuffer.BackBuffer
	pending   *device.Surface
	recycled  []device.Surface
}

// validateContext checks that ctx is the producer context this chain was
// created for. Every producer-only operation calls this first; a
// mismatch must never mutate the chain.
func (d *chainData) validateContext(dev device.Device, ctx device.Context) error {
	if got := dev.ContextID(ctx); got != d.contextID {
		return fmt.Errorf("swapchain: context %d is not the producer for this chain (want %d): %w",
			got, d.contextID, device.ErrIncompatibleContext)
	}
	return nil
}

// takeRecycled removes and returns a pooled Surface matching size, or
// the zero Surface if none match. Pool order carries no meaning, so the
// entry is swap-removed.
func (d *chainData) takeRecycled(size device.Size) device.Surface {
	for i, s := range d.recycled {
		if s.Size == size {
			last := len(d.recycled) - 1
			d.recycled[i] = d.recycled[last]
			d.recycled = d.recycled[:last]
			return s
		}
	}
	return device.Surface{}
}

// drainRecycled destroys every pooled surface, bounding the pool at the
// single buffer that just left it as the new back buffer. Destruction
// continues past a failure so the rest of the pool is still released;
// the first error is returned.
func (d *chainData) drainRecycled(dev device.Device, ctx device.Context) error {
	var first error
	for _, s := range d.recycled {
		if err := dev.DestroySurface(ctx, s); err != nil {
			if first == nil {
				first = err
			}
			surfchain.Logger().Warn("swapchain: destroy recycled surface", "error", err)
		}
	}
	d.recycled = d.recycled[:0]
	return first
}

// Chain is a shareable handle to one swap chain: a mutex-guarded
// chainData plus the identity the Registry indexes it by. There is no
// explicit reference count; Go's garbage collector retires a Chain once
// nothing, including the Registry, holds a pointer to it, but Destroy
// must still be called first to drain its surfaces back to the Device.
type Chain struct {
	id   ChainID
	data chainData

	// mu is never held across a call into user code; a panicking
	// operation still releases it via defer, so a panic in one caller
	// cannot strand the chain for the next.
	mu sync.Mutex
}

func newAttachedChain(id ChainID, dev device.Device, ctx device.Context, access device.SurfaceAccess, size device.Size) *Chain {
	return &Chain{
		id: id,
		data: chainData{
			size:      size,
			contextID: dev.ContextID(ctx),
			access:    access,
			back:      backbuffer.NewAttached(),
		},
	}
}

func newDetachedChain(id ChainID, dev device.Device, ctx device.Context, cfg device.Config, s device.Surface) *Chain {
	return &Chain{
		id: id,
		data: chainData{
			size:      cfg.Size,
			contextID: dev.ContextID(ctx),
			access:    cfg.Access,
			back:      backbuffer.NewDetached(s),
		},
	}
}

// CreateAttached returns a Chain whose back buffer is the surface
// currently bound to ctx; the chain's size is inherited from that
// surface, and the context keeps ownership of it. Most callers want
// Registry.CreateAttachedSwapChain, which also indexes the chain.
func CreateAttached(dev device.Device, ctx device.Context, id ChainID, access device.SurfaceAccess) (*Chain, error) {
	info, bound, err := dev.ContextSurfaceInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("swapchain: create attached: %w", err)
	}
	if !bound {
		return nil, fmt.Errorf("swapchain: create attached: %w", device.ErrContextNotCurrent)
	}
	return newAttachedChain(id, dev, ctx, access, info.Size), nil
}

// CreateDetached allocates a surface per cfg and returns a Chain that
// owns it directly, without binding it to any context. Most callers
// want Registry.CreateDetachedSwapChain, which also indexes the chain.
func CreateDetached(dev device.Device, ctx device.Context, id ChainID, cfg device.Config) (*Chain, error) {
	if cfg.Size.Empty() {
		return nil, &device.ValidationError{Field: "size", Value: cfg.Size, Reason: "width and height must be positive"}
	}
	s, err := dev.CreateSurface(ctx, cfg.Access, cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("swapchain: create detached: %w", err)
	}
	return newDetachedChain(id, dev, ctx, cfg, s), nil
}

// ID returns the chain's identity within its Registry.
func (c *Chain) ID() ChainID { return c.id }

// SwapBuffers rotates the chain's back buffer: the current back buffer
// becomes the new pending surface for consumers, and a fresh (or
// recycled) surface takes its place. When preserve is PreserveYes, the
// outgoing frame's contents are copied into the new back buffer after
// the rotation, so rendering can continue incrementally; this requires
// the producer context to be current on the calling thread. Whatever is
// left in the recycled pool afterwards is destroyed, keeping the pool
// bounded at the one buffer that was just reused.
func (c *Chain) SwapBuffers(dev device.Device, ctx device.Context, preserve PreserveMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := &c.data

	if err := d.validateContext(dev, ctx); err != nil {
		return err
	}

	// A stale pending surface (never taken by a consumer) goes back to
	// the pool, where the size scan below can reuse it.
	if d.pending != nil {
		d.recycled = append(d.recycled, *d.pending)
		d.pending = nil
	}

	// Find or allocate the surface that will become the new back buffer.
	next := d.takeRecycled(d.size)
	if next.IsZero() {
		var err error
		next, err = dev.CreateSurface(ctx, d.access, d.size)
		if err != nil {
			return fmt.Errorf("swapchain: swap buffers: allocate: %w", err)
		}
		surfchain.Logger().Debug("swapchain: allocated back buffer", "id", c.id, "size", d.size)
	} else {
		surfchain.Logger().Debug("swapchain: reused recycled back buffer", "id", c.id, "size", d.size)
	}

	// Rotate. The current back buffer is taken out first; on failure,
	// undo the allocation so nothing leaks.
	front, err := d.back.TakeSurface(dev, ctx)
	if err != nil {
		if derr := dev.DestroySurface(ctx, next); derr != nil {
			surfchain.Logger().Warn("swapchain: destroy unused allocation after failed swap", "error", derr)
		}
		return fmt.Errorf("swapchain: swap buffers: %w", err)
	}

	if err := d.back.ReplaceSurface(dev, ctx, next); err != nil {
		// The failed replace already destroyed next; the outgoing frame
		// has no slot to return to either.
		if derr := dev.DestroySurface(ctx, front); derr != nil {
			surfchain.Logger().Warn("swapchain: destroy outgoing frame after failed swap", "error", derr)
		}
		return fmt.Errorf("swapchain: swap buffers: %w", err)
	}

	var blitErr error
	if preserve == PreserveYes {
		bl, ok := dev.(device.Blitter)
		if !ok {
			blitErr = fmt.Errorf("swapchain: swap buffers: preserve: device cannot blit: %w", device.ErrFailed)
		} else if err := bl.BlitSurface(ctx, next, front); err != nil {
			blitErr = fmt.Errorf("swapchain: swap buffers: preserve blit: %w", err)
		}
	}

	// The outgoing frame becomes the pending surface for consumers, even
	// when the preserve blit failed: the frame itself is intact.
	d.pending = &front

	drainErr := d.drainRecycled(dev, ctx)
	if blitErr != nil {
		return blitErr
	}
	if drainErr != nil {
		return fmt.Errorf("swapchain: swap buffers: %w", drainErr)
	}
	return nil
}

// TakeAttachmentFrom exchanges back-buffer surfaces with other: the
// surface other was rendering into becomes c's render target and vice
// versa, in one atomic step from the caller's perspective. Each chain
// keeps its own attachment state; only the surfaces cross over. ctx
// must be the producer context for both chains. Locks are acquired in a
// fixed order (c, then other); passing the same chain as both sides is
// rejected rather than deadlocking.
func (c *Chain) TakeAttachmentFrom(dev device.Device, ctx device.Context, other *Chain) error {
	if c == other {
		return fmt.Errorf("swapchain: take attachment from: a chain cannot exchange with itself: %w", device.ErrFailed)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()

	if err := c.data.validateContext(dev, ctx); err != nil {
		return err
	}
	if err := other.data.validateContext(dev, ctx); err != nil {
		return err
	}

	mine, err := c.data.back.TakeSurface(dev, ctx)
	if err != nil {
		return fmt.Errorf("swapchain: take attachment from: %w", err)
	}

	theirs, err := other.data.back.TakeSurface(dev, ctx)
	if err != nil {
		if rerr := c.data.back.ReplaceSurface(dev, ctx, mine); rerr != nil {
			surfchain.Logger().Warn("swapchain: restore surface after failed attachment exchange", "error", rerr)
		}
		return fmt.Errorf("swapchain: take attachment from: %w", err)
	}

	if err := c.data.back.ReplaceSurface(dev, ctx, theirs); err != nil {
		if rerr := other.data.back.ReplaceSurface(dev, ctx, mine); rerr != nil {
			surfchain.Logger().Warn("swapchain: restore surface after failed attachment exchange", "error", rerr)
		}
		return fmt.Errorf("swapchain: take attachment from: %w", err)
	}

	if err := other.data.back.ReplaceSurface(dev, ctx, mine); err != nil {
		return fmt.Errorf("swapchain: take attachment from: %w", err)
	}
	return nil
}

// Resize replaces the chain's back buffer with one of a new size and
// destroys the old one. The recycled pool is left alone: the next
// SwapBuffers skips entries of the wrong size when picking a back
// buffer and destroys whatever remains.
func (c *Chain) Resize(dev device.Device, ctx device.Context, size device.Size) error {
	if size.Empty() {
		return &device.ValidationError{Field: "size", Value: size, Reason: "width and height must be positive"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	d := &c.data

	if err := d.validateContext(dev, ctx); err != nil {
		return err
	}

	old, err := d.back.TakeSurface(dev, ctx)
	if err != nil {
		return fmt.Errorf("swapchain: resize: %w", err)
	}

	next, err := dev.CreateSurface(ctx, d.access, size)
	if err != nil {
		if rerr := d.back.ReplaceSurface(dev, ctx, old); rerr != nil {
			surfchain.Logger().Warn("swapchain: restore old surface after failed resize allocation", "error", rerr)
		}
		return fmt.Errorf("swapchain: resize: %w", err)
	}

	if err := d.back.ReplaceSurface(dev, ctx, next); err != nil {
		// The failed replace already destroyed next, and the back buffer
		// is no longer in a taken state, so old cannot be restored.
		if derr := dev.DestroySurface(ctx, old); derr != nil {
			surfchain.Logger().Warn("swapchain: destroy old surface after failed resize", "error", derr)
		}
		return fmt.Errorf("swapchain: resize: %w", err)
	}

	if derr := dev.DestroySurface(ctx, old); derr != nil {
		surfchain.Logger().Warn("swapchain: destroy old surface after resize", "error", derr)
	}

	d.size = size
	return nil
}

// TakeSurfaceTexture lifts the back buffer's surface out as a sampleable
// Texture; see backbuffer.BackBuffer.TakeSurfaceTexture for the failure
// contract.
func (c *Chain) TakeSurfaceTexture(dev device.Device, ctx device.Context) (device.Texture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.data.validateContext(dev, ctx); err != nil {
		return device.Texture{}, err
	}
	return c.data.back.TakeSurfaceTexture(dev, ctx)
}

// RecycleSurfaceTexture reverses TakeSurfaceTexture, restoring the back
// buffer from t.
func (c *Chain) RecycleSurfaceTexture(dev device.Device, ctx device.Context, t device.Texture) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.data.validateContext(dev, ctx); err != nil {
		return err
	}
	return c.data.back.ReplaceSurfaceTexture(dev, ctx, t)
}

// ClearSurface clears the chain's back buffer to color. The back buffer
// is taken out of its slot for the duration (unbinding it from ctx if
// it was attached) and restored afterwards, so the caller's rendering
// state is exactly as it was before the call. The clear itself is a
// single device.Clearer.ClearSurface call on the Device rather than a
// change to any persistent state.
func (c *Chain) ClearSurface(dev device.Device, ctx device.Context, color [4]float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.data.validateContext(dev, ctx); err != nil {
		return err
	}

	clearer, ok := dev.(device.Clearer)
	if !ok {
		return fmt.Errorf("swapchain: clear surface: device cannot clear: %w", device.ErrFailed)
	}

	s, err := c.data.back.TakeSurface(dev, ctx)
	if err != nil {
		return fmt.Errorf("swapchain: clear surface: %w", err)
	}

	clearErr := clearer.ClearSurface(ctx, s, color)

	if err := c.data.back.ReplaceSurface(dev, ctx, s); err != nil {
		return fmt.Errorf("swapchain: clear surface: %w", err)
	}
	if clearErr != nil {
		return fmt.Errorf("swapchain: clear surface: %w", clearErr)
	}
	return nil
}

// Destroy drains every surface the chain owns back to the Device: the
// back buffer, any pending surface, and the recycled pool. It must
// be the last operation performed on the chain.
func (c *Chain) Destroy(dev device.Device, ctx device.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := &c.data

	if err := d.validateContext(dev, ctx); err != nil {
		return err
	}

	var errs []error

	if s, err := d.back.TakeSurface(dev, ctx); err != nil {
		errs = append(errs, err)
	} else if !s.IsZero() {
		if err := dev.DestroySurface(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}

	if d.pending != nil {
		if err := dev.DestroySurface(ctx, *d.pending); err != nil {
			errs = append(errs, err)
		}
		d.pending = nil
	}

	for _, s := range d.recycled {
		if err := dev.DestroySurface(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	d.recycled = nil

	if len(errs) > 0 {
		return fmt.Errorf("swapchain: destroy: %w", errors.Join(errs...))
	}
	return nil
}

// Size returns the chain's current surface size. Safe to call from any
// thread, including the consumer's.
func (c *Chain) Size() device.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.size
}

// IsAttached reports whether the chain's back buffer is bound to a
// producer context. Safe to call from any thread.
func (c *Chain) IsAttached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.back.IsAttached()
}

// TakePendingSurface removes and returns the surface most recently
// produced by SwapBuffers, if any. Safe to call from any thread; this is
// a consumer's primary way to pick up a freshly rendered frame.
func (c *Chain) TakePendingSurface() (device.Surface, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data.pending == nil {
		return device.Surface{}, false
	}
	s := *c.data.pending
	c.data.pending = nil
	return s, true
}

// TakeSurface removes and returns a surface for a consumer that wants one
// right now even if no fresh frame has been produced: it prefers the
// pending surface (like TakePendingSurface) and, if none is waiting,
// falls back to popping the most recently recycled surface from the
// pool. It never touches the back buffer, which only a producer
// operation (requiring a Device and Context) may take. Returns false if
// both the pending slot and the recycled pool are empty.
func (c *Chain) TakeSurface() (device.Surface, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data.pending != nil {
		s := *c.data.pending
		c.data.pending = nil
		return s, true
	}

	n := len(c.data.recycled)
	if n == 0 {
		return device.Surface{}, false
	}
	s := c.data.recycled[n-1]
	c.data.recycled = c.data.recycled[:n-1]
	return s, true
}

// RecycleSurface returns a surface previously obtained from
// TakePendingSurface or TakeSurface to the chain's pool, where the next
// SwapBuffers may reuse it instead of allocating a new one. No size
// check happens here; a mismatched surface is simply destroyed by that
// swap. Safe to call from any thread.
func (c *Chain) RecycleSurface(s device.Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.recycled = append(c.data.recycled, s)
}
