// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gpudevice implements device.Device on top of
// github.com/gogpu/wgpu, the pure-Go WebGPU implementation the rest of
// the gogpu stack already depends on.
//
// The device is received from the host application through a
// gpucontext.DeviceProvider (New), so surfchain shares the host's GPU
// device and resources instead of creating a competing one. Open and
// OpenMock are the standalone fallback for programs with no host: they
// build a Provider around a fresh wgpu instance and adopt it.
//
// Texture and texture-view creation goes through wgpu/core's legacy
// ID-based API (core.DeviceCreateTexture, core.GetGlobal().Hub()...),
// which that package's own comments mark as a placeholder pending HAL
// integration. We accept that rather than fabricate a HAL-backed path
// that does not exist in the vendored module; Blitter and Clearer still
// move real pixels for CPU-readable surfaces via golang.org/x/image, so
// the capability is exercised even where the GPU path is a stub.
package gpudevice

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"

	"github.com/gogpu/surfchain/device"
)

// Context is a producer's binding to a Device: which Surface, if any, is
// currently its render target. WebGPU has no implicit "current
// framebuffer" the way an OpenGL context does, so Device tracks the
// binding itself rather than relying on driver state.
type Context struct {
	id device.ContextID

	mu    sync.Mutex
	bound device.Surface
}

// NewContext wraps id as a Context usable with a gpudevice.Device.
func NewContext(id device.ContextID) *Context {
	return &Context{id: id}
}

// handle is what gpudevice stashes in a device.Surface's and
// device.Texture's Handle field.
type handle struct {
	texture core.TextureID
	view    core.TextureViewID
	hasView bool

	// pixels backs CPU-readable surfaces so Blitter and Clearer have
	// something real to operate on while the HAL render-pass path
	// behind core.DeviceCreateTexture remains a placeholder.
	pixels []byte
}

// Device implements device.Device against one wgpu logical device and
// its default queue, received from a gpucontext.DeviceProvider.
type Device struct {
	provider gpucontext.DeviceProvider
	deviceID core.DeviceID
	queueID  core.QueueID
	format   gputypes.TextureFormat

	// standalone is set when Open created the provider itself; Close
	// releases it. A host-supplied provider is never released here: the
	// host owns its device.
	standalone *Provider

	nextSurfaceID atomic.Uint64
}

// New wraps a GPU device received from the host application's provider.
// surfchain does not create a device of its own on this path: the host
// (a gogpu.App, typically) owns the device, and surfaces created here
// share it. The provider must expose its wgpu/core handles via
// CoreDevice()/CoreQueue(); a provider backed by another runtime cannot
// drive this package and is rejected with ErrNoCoreHandles.
func New(provider gpucontext.DeviceProvider) (*Device, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}

	type coreProvider interface {
		CoreDevice() any
		CoreQueue() any
	}
	cp, ok := provider.(coreProvider)
	if !ok {
		return nil, ErrNoCoreHandles
	}
	deviceID, ok := cp.CoreDevice().(core.DeviceID)
	if !ok {
		return nil, fmt.Errorf("%w: CoreDevice is not a core.DeviceID", ErrNoCoreHandles)
	}
	queueID, ok := cp.CoreQueue().(core.QueueID)
	if !ok {
		return nil, fmt.Errorf("%w: CoreQueue is not a core.QueueID", ErrNoCoreHandles)
	}

	format := provider.SurfaceFormat()
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatRGBA8Unorm
	}

	return &Device{
		provider: provider,
		deviceID: deviceID,
		queueID:  queueID,
		format:   format,
	}, nil
}

// Open requests an adapter and device from a fresh wgpu instance and
// returns a Device ready to create surfaces. This is the standalone
// path; a caller running inside a host application that already owns a
// GPU device should pass the host's provider to New instead. label is
// attached to the device for diagnostics.
func Open(label string) (*Device, error) {
	p, err := NewProvider(label)
	if err != nil {
		return nil, err
	}
	return adopt(p)
}

// OpenMock is Open against a mock wgpu instance, the same instance the
// wgpu module's own concurrency tests use to exercise adapter/device
// acquisition without a real GPU. It exists for gpudevice's tests and
// for callers running in environments with no available backend.
func OpenMock(label string) (*Device, error) {
	p, err := NewMockProvider(label)
	if err != nil {
		return nil, err
	}
	return adopt(p)
}

// adopt wraps a provider this package created itself, so Close knows to
// release it.
func adopt(p *Provider) (*Device, error) {
	d, err := New(p)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	d.standalone = p
	return d, nil
}

// logGPUInfo uses the standard log package for GPU diagnostics, a
// deliberate exception to the slog use everywhere else in this module:
// it runs once at startup, before a caller has had a chance to call
// surfchain.SetLogger.
func logGPUInfo(adapterID core.AdapterID) {
	info, err := core.GetAdapterInfo(adapterID)
	if err != nil {
		log.Printf("gpudevice: failed to get adapter info: %v", err)
		return
	}
	log.Printf("gpudevice: adapter: %s (%s, %s)", info.Name, info.DeviceType, info.Backend)
}

// Close releases the standalone provider Open created, if any. A Device
// built around a host-supplied provider leaves the host's device
// untouched: the host owns it. Close is idempotent.
func (d *Device) Close() error {
	if d.standalone == nil {
		return nil
	}
	p := d.standalone
	d.standalone = nil
	return p.Close()
}

// Provider returns the gpucontext.DeviceProvider this Device was built
// around, so a caller can hand the shared device on to other consumers
// in the same process.
func (d *Device) Provider() gpucontext.DeviceProvider { return d.provider }

func (d *Device) contextOf(ctx device.Context) *Context {
	c, ok := ctx.(*Context)
	if !ok {
		panic(fmt.Sprintf("gpudevice: ctx is a %T, not *gpudevice.Context", ctx))
	}
	return c
}

// ContextID returns ctx's stable identifier.
func (d *Device) ContextID(ctx device.Context) device.ContextID {
	return d.contextOf(ctx).id
}

// CreateSurface allocates a texture-backed Surface of the given size.
func (d *Device) CreateSurface(ctx device.Context, access device.SurfaceAccess, size device.Size) (device.Surface, error) {
	if size.Empty() {
		return device.Surface{}, &device.ValidationError{Field: "size", Value: size, Reason: "both dimensions must be positive"}
	}

	desc := &gputypes.TextureDescriptor{
		Label:         "surfchain-surface",
		Size:          gputypes.Extent3D{Width: uint32(size.Width), Height: uint32(size.Height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        d.format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst,
	}
	textureID, err := core.DeviceCreateTexture(d.deviceID, desc)
	if err != nil {
		return device.Surface{}, fmt.Errorf("gpudevice: create surface texture: %w", err)
	}

	h := &handle{texture: textureID}
	if access == device.SurfaceAccessCPUReadable {
		h.pixels = make([]byte, size.Width*size.Height*4)
	}

	id := device.SurfaceID(d.nextSurfaceID.Add(1))
	return device.Surface{ID: id, Size: size, Access: access, Handle: h}, nil
}

// DestroySurface releases s's underlying texture (and view, if one was
// created via CreateSurfaceTexture and never reversed).
func (d *Device) DestroySurface(ctx device.Context, s device.Surface) error {
	h, ok := s.Handle.(*handle)
	if !ok || h == nil {
		return &device.ValidationError{Field: "s.Handle", Value: s.Handle, Reason: "not a gpudevice surface"}
	}

	hub := core.GetGlobal().Hub()
	if h.hasView {
		if _, err := hub.UnregisterTextureView(h.view); err != nil {
			return fmt.Errorf("gpudevice: destroy surface view: %w", err)
		}
	}
	if _, err := hub.UnregisterTexture(h.texture); err != nil {
		return fmt.Errorf("gpudevice: destroy surface texture: %w", err)
	}
	return nil
}

// CreateSurfaceTexture registers a texture view over s's texture so it
// can be attached to a render pass or sampled, and returns a Texture
// carrying the same handle plus the new view.
func (d *Device) CreateSurfaceTexture(ctx device.Context, s device.Surface) (device.Texture, error) {
	h, ok := s.Handle.(*handle)
	if !ok || h == nil {
		return device.Texture{}, &device.ValidationError{Field: "s.Handle", Value: s.Handle, Reason: "not a gpudevice surface"}
	}
	if h.hasView {
		return device.Texture{}, fmt.Errorf("gpudevice: surface %d already has a texture view", s.ID)
	}

	viewID := core.GetGlobal().Hub().RegisterTextureView(core.TextureView{})
	h.view = viewID
	h.hasView = true

	return device.Texture{ID: s.ID, Size: s.Size, Handle: h}, nil
}

// DestroySurfaceTexture unregisters t's texture view and hands back the
// Surface it was created from.
func (d *Device) DestroySurfaceTexture(ctx device.Context, t device.Texture) (device.Surface, error) {
	h, ok := t.Handle.(*handle)
	if !ok || h == nil {
		return device.Surface{}, &device.ValidationError{Field: "t.Handle", Value: t.Handle, Reason: "not a gpudevice texture"}
	}
	if !h.hasView {
		return device.Surface{}, fmt.Errorf("gpudevice: texture %d has no view to release", t.ID)
	}

	if _, err := core.GetGlobal().Hub().UnregisterTextureView(h.view); err != nil {
		return device.Surface{}, fmt.Errorf("gpudevice: destroy surface texture view: %w", err)
	}
	h.hasView = false
	h.view = core.TextureViewID{}

	access := device.SurfaceAccessGPUOnly
	if h.pixels != nil {
		access = device.SurfaceAccessCPUReadable
	}
	return device.Surface{ID: t.ID, Size: t.Size, Access: access, Handle: h}, nil
}

// BindSurfaceToContext makes s ctx's current render target.
func (d *Device) BindSurfaceToContext(ctx device.Context, s device.Surface) error {
	c := d.contextOf(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.bound.IsZero() {
		return fmt.Errorf("gpudevice: context %d already has a surface bound", c.id)
	}
	c.bound = s
	return nil
}

// UnbindSurfaceFromContext detaches whatever Surface is bound to ctx.
func (d *Device) UnbindSurfaceFromContext(ctx device.Context) (device.Surface, bool, error) {
	c := d.contextOf(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bound.IsZero() {
		return device.Surface{}, false, nil
	}
	s := c.bound
	c.bound = device.Surface{}
	return s, true, nil
}

// SurfaceInfo reports s's single color attachment; gpudevice surfaces
// never carry a depth/stencil plane of their own.
func (d *Device) SurfaceInfo(ctx device.Context, s device.Surface) (device.SurfaceInfo, error) {
	return device.SurfaceInfo{
		ID:          s.ID,
		Size:        s.Size,
		FBO:         s.Handle,
		Attachments: []device.Attachment{device.AttachmentColor},
	}, nil
}

// ContextSurfaceInfo reports the attachments of whatever is bound to ctx.
func (d *Device) ContextSurfaceInfo(ctx device.Context) (device.SurfaceInfo, bool, error) {
	c := d.contextOf(ctx)
	c.mu.Lock()
	bound := c.bound
	c.mu.Unlock()

	if bound.IsZero() {
		return device.SurfaceInfo{}, false, nil
	}
	info, err := d.SurfaceInfo(ctx, bound)
	return info, true, err
}

var (
	_ device.Device  = (*Device)(nil)
	_ device.Blitter = (*Device)(nil)
	_ device.Clearer = (*Device)(nil)
)
