// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpudevice

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"
)

// ErrNilProvider is returned by New when no provider is given.
var ErrNilProvider = errors.New("gpudevice: nil device provider")

// ErrNoCoreHandles is returned by New when the provider does not expose
// the wgpu/core handles this package drives.
var ErrNoCoreHandles = errors.New("gpudevice: provider does not expose wgpu/core handles")

// Provider is a gpucontext.DeviceProvider backed by a wgpu instance this
// package opened itself. It is the standalone fallback for callers that
// have no host application to receive a GPU device from; a host that
// already owns one (a gogpu.App, typically) passes its own provider to
// New instead, and surfchain shares that device rather than creating a
// second one.
type Provider struct {
	instance  *core.Instance
	adapterID core.AdapterID
	deviceID  core.DeviceID
	queueID   core.QueueID
}

// NewProvider opens a wgpu instance, requests an adapter and device, and
// returns a Provider wrapping them. label is attached to the device for
// diagnostics.
func NewProvider(label string) (*Provider, error) {
	return newProvider(core.NewInstance(&gputypes.InstanceDescriptor{}), label)
}

// NewMockProvider is NewProvider against a mock wgpu instance, for tests
// and environments with no available GPU backend.
func NewMockProvider(label string) (*Provider, error) {
	return newProvider(core.NewInstanceWithMock(nil), label)
}

func newProvider(instance *core.Instance, label string) (*Provider, error) {
	adapterID, err := instance.RequestAdapter(&gputypes.RequestAdapterOptions{})
	if err != nil {
		return nil, fmt.Errorf("gpudevice: request adapter: %w", err)
	}
	logGPUInfo(adapterID)

	desc := &gputypes.DeviceDescriptor{
		Label:            label,
		RequiredFeatures: nil,
		RequiredLimits:   gputypes.DefaultLimits(),
	}
	deviceID, err := core.RequestDevice(adapterID, desc)
	if err != nil {
		_ = core.AdapterDrop(adapterID)
		return nil, fmt.Errorf("gpudevice: request device: %w", err)
	}

	queueID, err := core.GetDeviceQueue(deviceID)
	if err != nil {
		_ = core.DeviceDrop(deviceID)
		_ = core.AdapterDrop(adapterID)
		return nil, fmt.Errorf("gpudevice: get device queue: %w", err)
	}

	return &Provider{
		instance:  instance,
		adapterID: adapterID,
		deviceID:  deviceID,
		queueID:   queueID,
	}, nil
}

// Device returns the provider's logical device.
func (p *Provider) Device() gpucontext.Device { return coreDevice{id: p.deviceID} }

// Queue returns the provider's default queue.
func (p *Provider) Queue() gpucontext.Queue { return coreQueue{id: p.queueID} }

// Adapter returns the provider's adapter.
func (p *Provider) Adapter() gpucontext.Adapter { return coreAdapter{id: p.adapterID} }

// SurfaceFormat returns the texture format surfaces created against this
// provider use.
func (p *Provider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// CoreDevice exposes the wgpu/core device handle for device sharing, the
// core-level analogue of the HalDevice() convention HAL-backed providers
// follow.
func (p *Provider) CoreDevice() any { return p.deviceID }

// CoreQueue exposes the wgpu/core queue handle for device sharing.
func (p *Provider) CoreQueue() any { return p.queueID }

// Close releases the provider's device and adapter.
func (p *Provider) Close() error {
	if err := core.DeviceDrop(p.deviceID); err != nil {
		return fmt.Errorf("gpudevice: release device: %w", err)
	}
	if err := core.AdapterDrop(p.adapterID); err != nil {
		return fmt.Errorf("gpudevice: release adapter: %w", err)
	}
	return nil
}

var _ gpucontext.DeviceProvider = (*Provider)(nil)

// coreDevice adapts a core.DeviceID to gpucontext.Device.
type coreDevice struct{ id core.DeviceID }

// Poll is a no-op: the core API this package drives submits
// synchronously, so there is never outstanding work to poll for.
func (coreDevice) Poll(wait bool) {}

// Destroy releases the device. Prefer Provider.Close, which also
// releases the adapter.
func (d coreDevice) Destroy() { _ = core.DeviceDrop(d.id) }

// coreQueue adapts a core.QueueID to gpucontext.Queue.
type coreQueue struct{ id core.QueueID }

// coreAdapter adapts a core.AdapterID to gpucontext.Adapter.
type coreAdapter struct{ id core.AdapterID }
