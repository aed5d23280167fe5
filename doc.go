// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package surfchain provides a GPU surface swap-chain engine for the
// GoGPU ecosystem.
//
// # Overview
//
// surfchain mediates ownership of GPU-backed pixel buffers between a
// rendering producer (a context that draws into a surface) and one or
// more consumers (a compositor, a presenter, a recorder) without either
// side needing to know about the other's threading model. It is generic
// over the device package's Device trait, so it has no dependency on
// any specific graphics API beyond what that trait exposes.
//
//	import "github.com/gogpu/surfchain/swapchain"
//
//	reg := swapchain.NewRegistry()
//	err := reg.CreateAttachedSwapChain(dev, ctx, chainID, device.SurfaceAccessGPUOnly)
//	chain, _ := reg.Get(chainID)
//	err = chain.SwapBuffers(dev, ctx, swapchain.PreserveYes)
//	surface, ok := chain.TakePendingSurface()
//
// # Architecture
//
//   - backbuffer: the four-state BackBuffer state machine a chain uses
//     to track its currently-rendered-to Surface
//   - swapchain: SwapChainData, the Chain handle, the two-level Registry,
//     and the narrow Consumer/Lookup view traits
//   - device: the Device trait surfchain consumes, plus device/gpudevice
//     (a concrete implementation backed by github.com/gogpu/wgpu) and
//     device/devicetest (a fake used by this module's own tests)
//   - framebuffer: a small helper enumerating a SurfaceInfo's renderable
//     attachments, used by gpudevice's clear path
//
// Context creation, pixel-format selection, make-current logic, adapter
// enumeration, and the underlying platform connection objects are all
// out of scope; surfchain only ever receives an opaque device.Context
// handle and hands it back to the Device that issued it.
package surfchain
