// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package devicetest provides a fake device.Device for use in this
// module's own tests: an in-memory surface allocator that records every
// call and can be told to fail specific operations.
package devicetest

import (
	"fmt"
	"sync"

	"github.com/gogpu/surfchain/device"
)

// Context is a fake device.Context carrying only a stable ID.
type Context struct {
	id device.ContextID
}

// NewContext returns a Context with the given ID.
func NewContext(id device.ContextID) *Context {
	return &Context{id: id}
}

// Device is an in-memory device.Device that records every call made to
// it and can be configured to fail specific operations, for exercising
// backbuffer's and swapchain's error-recovery paths.
type Device struct {
	mu     sync.Mutex
	nextID uint64
	bound  map[device.ContextID]device.Surface

	// Calls records, in order, the name of every method invoked.
	Calls []string

	FailCreateSurface         error
	FailDestroySurface        error
	FailCreateSurfaceTexture  error
	FailDestroySurfaceTexture error
	FailBindSurfaceToContext  error
}

// New returns an empty fake Device.
func New() *Device {
	return &Device{bound: make(map[device.ContextID]device.Surface)}
}

func (d *Device) record(name string) {
	d.Calls = append(d.Calls, name)
}

func (d *Device) ContextID(ctx device.Context) device.ContextID {
	return ctx.(*Context).id
}

func (d *Device) CreateSurface(_ device.Context, access device.SurfaceAccess, size device.Size) (device.Surface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateSurface")
	if d.FailCreateSurface != nil {
		return device.Surface{}, d.FailCreateSurface
	}
	d.nextID++
	return device.Surface{
		ID:     device.SurfaceID(d.nextID),
		Size:   size,
		Access: access,
		Handle: d.nextID,
	}, nil
}

func (d *Device) DestroySurface(_ device.Context, _ device.Surface) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DestroySurface")
	return d.FailDestroySurface
}

func (d *Device) CreateSurfaceTexture(_ device.Context, s device.Surface) (device.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateSurfaceTexture")
	if d.FailCreateSurfaceTexture != nil {
		return device.Texture{}, d.FailCreateSurfaceTexture
	}
	return device.Texture{ID: s.ID, Size: s.Size, Handle: s.Handle}, nil
}

func (d *Device) DestroySurfaceTexture(_ device.Context, t device.Texture) (device.Surface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DestroySurfaceTexture")
	if d.FailDestroySurfaceTexture != nil {
		return device.Surface{}, d.FailDestroySurfaceTexture
	}
	return device.Surface{ID: t.ID, Size: t.Size, Handle: t.Handle}, nil
}

func (d *Device) BindSurfaceToContext(ctx device.Context, s device.Surface) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BindSurfaceToContext")
	if d.FailBindSurfaceToContext != nil {
		return d.FailBindSurfaceToContext
	}
	c := ctx.(*Context)
	if _, bound := d.bound[c.id]; bound {
		return fmt.Errorf("devicetest: context %d already has a surface bound", c.id)
	}
	d.bound[c.id] = s
	return nil
}

func (d *Device) UnbindSurfaceFromContext(ctx device.Context) (device.Surface, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("UnbindSurfaceFromContext")
	c := ctx.(*Context)
	s, ok := d.bound[c.id]
	if !ok {
		return device.Surface{}, false, nil
	}
	delete(d.bound, c.id)
	return s, true, nil
}

func (d *Device) SurfaceInfo(_ device.Context, s device.Surface) (device.SurfaceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("SurfaceInfo")
	return device.SurfaceInfo{
		ID:          s.ID,
		Size:        s.Size,
		FBO:         s.Handle,
		Attachments: []device.Attachment{device.AttachmentColor},
	}, nil
}

func (d *Device) ContextSurfaceInfo(ctx device.Context) (device.SurfaceInfo, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ContextSurfaceInfo")
	c := ctx.(*Context)
	s, ok := d.bound[c.id]
	if !ok {
		return device.SurfaceInfo{}, false, nil
	}
	return device.SurfaceInfo{
		ID:          s.ID,
		Size:        s.Size,
		FBO:         s.Handle,
		Attachments: []device.Attachment{device.AttachmentColor},
	}, true, nil
}

// CapableDevice embeds Device and additionally implements
// device.Blitter and device.Clearer, for tests that exercise the
// optional-capability fast paths swapchain detects via type assertion.
type CapableDevice struct {
	*Device

	BlitCalls  int
	ClearCalls int

	FailBlitSurface  error
	FailClearSurface error
}

// NewCapable returns a CapableDevice wrapping a fresh fake Device.
func NewCapable() *CapableDevice {
	return &CapableDevice{Device: New()}
}

func (d *CapableDevice) BlitSurface(_ device.Context, _, _ device.Surface) error {
	d.BlitCalls++
	return d.FailBlitSurface
}

func (d *CapableDevice) ClearSurface(_ device.Context, _ device.Surface, _ [4]float64) error {
	d.ClearCalls++
	return d.FailClearSurface
}
