// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package swapchain

import "github.com/gogpu/surfchain/device"

// Consumer is the narrow, any-thread-safe view of a Chain given to a
// caller that only ever consumes finished frames, such as a compositor
// or a presenter, and never drives the producer side. *Chain
// satisfies this directly.
type Consumer interface {
	// Size returns the chain's current surface size.
	Size() device.Size

	// IsAttached reports whether the chain's back buffer is currently
	// bound to a producer context.
	IsAttached() bool

	// TakePendingSurface removes and returns the most recently produced
	// surface, if any.
	TakePendingSurface() (device.Surface, bool)

	// TakeSurface removes and returns a surface for immediate use,
	// preferring the pending surface and falling back to the most
	// recently recycled one if no frame is pending.
	TakeSurface() (device.Surface, bool)

	// RecycleSurface returns a previously taken surface to the chain's
	// pool for reuse.
	RecycleSurface(s device.Surface)
}

// Lookup is the narrow view of a Registry a Consumer-only caller needs:
// resolving a ChainID without access to producer-only operations such as
// SwapBuffers or Destroy.
type Lookup interface {
	GetConsumer(id ChainID) (Consumer, bool)
}

var _ Lookup = (*Registry)(nil)
var _ Consumer = (*Chain)(nil)
