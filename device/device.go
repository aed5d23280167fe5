// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package device

// Context is an opaque handle to a producer's rendering context. Its
// concrete type is defined by the Device implementation (for gpudevice,
// a *gpudevice.Context); backbuffer and swapchain never inspect it, only
// pass it back to the Device that issued it.
type Context = any

// Device is the trait surfchain consumes to allocate, destroy, and move
// GPU-backed pixel buffers between contexts. It is intentionally narrow:
// everything about context creation, pixel-format selection, and
// make-current logic lives outside it, in the caller's windowing layer.
//
// All methods must be safe for concurrent use. Implementations that
// serialize access internally (as gpudevice does, via its Context mutex)
// satisfy this by construction.
type Device interface {
	// ContextID returns a stable identifier for ctx, used as the
	// registry's secondary index key. It must return the same value for
	// the lifetime of ctx.
	ContextID(ctx Context) ContextID

	// CreateSurface allocates a new Surface of the given size and
	// access mode. The surface is not bound to any context.
	CreateSurface(ctx Context, access SurfaceAccess, size Size) (Surface, error)

	// DestroySurface releases s's underlying resources. s must not be
	// currently bound to a context.
	DestroySurface(ctx Context, s Surface) error

	// CreateSurfaceTexture wraps s so it can be sampled or copied as a
	// plain texture, consuming s. Use DestroySurfaceTexture to reverse
	// this and get the Surface back.
	CreateSurfaceTexture(ctx Context, s Surface) (Texture, error)

	// DestroySurfaceTexture reverses CreateSurfaceTexture, consuming t
	// and returning the original Surface.
	DestroySurfaceTexture(ctx Context, t Texture) (Surface, error)

	// BindSurfaceToContext makes s the current render target of ctx.
	// ctx must not already have a surface bound.
	BindSurfaceToContext(ctx Context, s Surface) error

	// UnbindSurfaceFromContext detaches whatever Surface is currently
	// bound to ctx and returns it. ok is false if nothing was bound.
	UnbindSurfaceFromContext(ctx Context) (s Surface, ok bool, err error)

	// SurfaceInfo reports the renderable attachments of s.
	SurfaceInfo(ctx Context, s Surface) (SurfaceInfo, error)

	// ContextSurfaceInfo reports the renderable attachments of whatever
	// Surface is currently bound to ctx. ok is false if nothing is
	// bound.
	ContextSurfaceInfo(ctx Context) (info SurfaceInfo, ok bool, err error)
}

// Blitter is an optional capability: a Device that can copy pixels
// directly from one Surface to another. swapchain.SwapBuffers
// type-asserts for this when asked to preserve the outgoing frame.
type Blitter interface {
	// BlitSurface copies src's pixels into dst. Both must belong to the
	// same context's device and must not be larger than their
	// destination's bounds allow.
	BlitSurface(ctx Context, dst, src Surface) error
}

// Clearer is an optional capability: a Device that can clear a Surface's
// attachments to a solid color (and depth/stencil values) without the
// caller driving a full render pass itself.
type Clearer interface {
	// ClearSurface clears s's color attachment to color. Implementations
	// that also own a depth/stencil attachment should clear it to its
	// default value.
	ClearSurface(ctx Context, s Surface, color [4]float64) error
}
