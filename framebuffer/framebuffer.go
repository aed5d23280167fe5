// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package framebuffer enumerates which renderable planes a surface
// exposes, so a clear operation knows what to touch without needing to
// interpret pixel formats itself.
//
// A device.SurfaceInfo already reports its attachments directly; this
// package only picks them apart for callers that care about individual
// planes rather than "clear everything."
package framebuffer

import "github.com/gogpu/surfchain/device"

// Attachments returns the renderable planes info exposes, in a stable
// order: color first, then depth, then stencil, skipping any planes
// info does not report.
func Attachments(info device.SurfaceInfo) []device.Attachment {
	order := []device.Attachment{device.AttachmentColor, device.AttachmentDepth, device.AttachmentStencil}
	present := make(map[device.Attachment]bool, len(info.Attachments))
	for _, a := range info.Attachments {
		present[a] = true
	}

	out := make([]device.Attachment, 0, len(order))
	for _, a := range order {
		if present[a] {
			out = append(out, a)
		}
	}
	return out
}

// HasDepthStencil reports whether info exposes either a depth or a
// stencil attachment, the condition under which a clear must also reset
// those planes rather than the color attachment alone.
func HasDepthStencil(info device.SurfaceInfo) bool {
	for _, a := range info.Attachments {
		if a == device.AttachmentDepth || a == device.AttachmentStencil {
			return true
		}
	}
	return false
}
