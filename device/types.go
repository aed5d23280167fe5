// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package device defines the trait that surfchain consumes from a
// GPU-backed rendering context: creation and destruction of opaque pixel
// buffers (Surfaces), binding them to a context for rendering, and
// detaching them so they can be presented or recycled elsewhere.
//
// surfchain never creates these resources itself; it only moves them
// between states. A concrete Device lives in a sub-package, such as
// gpudevice, which backs the trait with github.com/gogpu/wgpu.
package device

import "fmt"

// ContextID identifies a rendering context for the lifetime it is current
// on some thread. It must be stable and comparable so a Chain can track
// which context it is attached to without holding a reference to the
// context itself.
type ContextID uint64

// SurfaceID identifies a Surface for diagnostics and logging. It carries
// no meaning to the Device; two different Surfaces may reuse the same ID
// after one has been destroyed.
type SurfaceID uint64

// Size is the pixel dimensions of a Surface.
type Size struct {
	Width, Height int
}

// Empty reports whether either dimension is zero or negative.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// SurfaceAccess controls whether a Surface's pixels may be read back by
// the CPU. GPUOnly surfaces are cheaper to allocate and are the default
// for surfaces that are only ever presented or sampled by the GPU.
type SurfaceAccess uint8

const (
	// SurfaceAccessGPUOnly restricts the surface to GPU-side use.
	SurfaceAccessGPUOnly SurfaceAccess = iota

	// SurfaceAccessCPUReadable additionally allows reading the surface's
	// pixels back to the CPU, e.g. for a screenshot or software preview.
	SurfaceAccessCPUReadable
)

func (a SurfaceAccess) String() string {
	if a == SurfaceAccessCPUReadable {
		return "cpu-readable"
	}
	return "gpu-only"
}

// Config configures the creation of a chain's initial Surface.
type Config struct {
	// Size is the initial surface size in pixels. Both dimensions must
	// be positive.
	Size Size

	// Access controls whether the surface is CPU-readable.
	Access SurfaceAccess
}

// DefaultConfig returns a Config for a GPU-only surface of the given size.
func DefaultConfig(width, height int) Config {
	return Config{
		Size:   Size{Width: width, Height: height},
		Access: SurfaceAccessGPUOnly,
	}
}

// Surface is an opaque, Device-owned pixel buffer. Callers never inspect
// Handle; it exists so a concrete Device can stash whatever it needs
// (texture + view identifiers, typically) to destroy or rebind the
// surface later.
type Surface struct {
	ID     SurfaceID
	Size   Size
	Access SurfaceAccess
	Handle any
}

// IsZero reports whether s is the zero Surface (no resource attached).
func (s Surface) IsZero() bool {
	return s.Handle == nil && s.ID == 0
}

// Texture is a Surface that has been detached from presentation duty and
// is temporarily being consumed as a plain sampled/copyable texture, e.g.
// to blit its contents into the next back buffer.
type Texture struct {
	ID     SurfaceID
	Size   Size
	Handle any
}

// IsZero reports whether t is the zero Texture.
func (t Texture) IsZero() bool {
	return t.Handle == nil && t.ID == 0
}

// Attachment names one renderable plane of a SurfaceInfo, used by the
// framebuffer package to decide what ClearSurface must touch.
type Attachment uint8

const (
	AttachmentColor Attachment = iota
	AttachmentDepth
	AttachmentStencil
)

func (a Attachment) String() string {
	switch a {
	case AttachmentColor:
		return "color"
	case AttachmentDepth:
		return "depth"
	case AttachmentStencil:
		return "stencil"
	default:
		return "unknown"
	}
}

// SurfaceInfo reports everything about a currently bound surface that a
// caller needs to drive rendering against it directly, without further
// trips through the Device.
type SurfaceInfo struct {
	ID          SurfaceID
	Size        Size
	FBO         any
	Attachments []Attachment
}
