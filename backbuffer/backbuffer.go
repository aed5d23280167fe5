// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package backbuffer implements the back-buffer state machine a chain
// uses to track whichever Surface currently backs its rendering target.
//
// BackBuffer is a closed sum type over four states, modeled as a struct
// with an enum tag rather than an interface; the state space is fixed.
package backbuffer

import (
	"fmt"

	"github.com/gogpu/surfchain"
	"github.com/gogpu/surfchain/device"
)

type state uint8

const (
	// stateAttached means the back buffer's Surface is currently bound
	// to the producer's context; BackBuffer holds no Surface value of
	// its own, the Device does.
	stateAttached state = iota

	// stateDetached means BackBuffer holds the Surface directly; it is
	// not bound to any context.
	stateDetached

	// stateTakenAttached means the Surface was unbound from the context
	// by TakeSurface/TakeSurfaceTexture and must be rebound by a
	// matching Replace call before any other operation is valid.
	stateTakenAttached

	// stateTakenDetached means the Surface was lifted out of a detached
	// BackBuffer and must be returned by a matching Replace call.
	stateTakenDetached
)

func (s state) String() string {
	switch s {
	case stateAttached:
		return "attached"
	case stateDetached:
		return "detached"
	case stateTakenAttached:
		return "taken-attached"
	case stateTakenDetached:
		return "taken-detached"
	default:
		return "unknown"
	}
}

// BackBuffer tracks the Surface currently serving as a Chain's render
// target, through being bound to a context, detached for producer-side
// ownership, or temporarily taken out for a blit or presentation.
type BackBuffer struct {
	state   state
	surface device.Surface
}

// NewAttached returns a BackBuffer whose Surface is already bound to the
// producer's context (the Device did the binding at creation time).
func NewAttached() BackBuffer {
	return BackBuffer{state: stateAttached}
}

// NewDetached returns a BackBuffer that owns s directly, unattached to
// any context.
func NewDetached(s device.Surface) BackBuffer {
	return BackBuffer{state: stateDetached, surface: s}
}

// IsAttached reports whether the back buffer is in attached mode: its
// Surface is bound to a context, or was unbound by a Take call and is
// rebound by the matching Replace call.
func (b *BackBuffer) IsAttached() bool {
	return b.state == stateAttached || b.state == stateTakenAttached
}

// IsTaken reports whether a Take* call is outstanding, awaiting a
// matching Replace* call.
func (b *BackBuffer) IsTaken() bool {
	return b.state == stateTakenAttached || b.state == stateTakenDetached
}

// TakeSurface removes the Surface from the back buffer, leaving it
// ready to accept a matching ReplaceSurface. For an attached back
// buffer this unbinds the surface from ctx first.
func (b *BackBuffer) TakeSurface(dev device.Device, ctx device.Context) (device.Surface, error) {
	switch b.state {
	case stateAttached:
		s, ok, err := dev.UnbindSurfaceFromContext(ctx)
		if err != nil {
			return device.Surface{}, fmt.Errorf("backbuffer: take surface: %w", err)
		}
		if !ok {
			return device.Surface{}, fmt.Errorf("backbuffer: take surface: %w", device.ErrContextNotCurrent)
		}
		b.state = stateTakenAttached
		return s, nil
	case stateDetached:
		s := b.surface
		b.surface = device.Surface{}
		b.state = stateTakenDetached
		return s, nil
	default:
		return device.Surface{}, fmt.Errorf("backbuffer: take surface: already taken (%s): %w", b.state, device.ErrFailed)
	}
}

// ReplaceSurface restores a Surface previously removed by TakeSurface.
// For a back buffer that was attached, this rebinds s to ctx; if the
// bind fails, s is destroyed (there is no slot left that could own it)
// and the back buffer is left detached with no surface, so a later
// operation sees a closed state rather than a dangling Taken one.
func (b *BackBuffer) ReplaceSurface(dev device.Device, ctx device.Context, s device.Surface) error {
	switch b.state {
	case stateTakenAttached:
		if err := dev.BindSurfaceToContext(ctx, s); err != nil {
			if derr := dev.DestroySurface(ctx, s); derr != nil {
				surfchain.Logger().Warn("backbuffer: destroy surface after failed bind",
					"error", derr)
			}
			b.state = stateDetached
			b.surface = device.Surface{}
			return fmt.Errorf("backbuffer: replace surface: %w", err)
		}
		b.state = stateAttached
		return nil
	case stateTakenDetached:
		b.surface = s
		b.state = stateDetached
		return nil
	default:
		return fmt.Errorf("backbuffer: replace surface: nothing taken (%s): %w", b.state, device.ErrFailed)
	}
}

// TakeSurfaceTexture takes the back buffer's Surface and converts it to
// a Texture the caller can sample or copy from. If the conversion fails,
// the Surface is restored before the error is returned; a failure during
// that restoration is logged and swallowed, since the caller already has
// a concrete error to act on.
func (b *BackBuffer) TakeSurfaceTexture(dev device.Device, ctx device.Context) (device.Texture, error) {
	s, err := b.TakeSurface(dev, ctx)
	if err != nil {
		return device.Texture{}, err
	}

	tex, err := dev.CreateSurfaceTexture(ctx, s)
	if err != nil {
		if rerr := b.ReplaceSurface(dev, ctx, s); rerr != nil {
			surfchain.Logger().Warn("backbuffer: restore surface after failed CreateSurfaceTexture",
				"error", rerr)
		}
		return device.Texture{}, fmt.Errorf("backbuffer: take surface texture: %w", err)
	}
	return tex, nil
}

// ReplaceSurfaceTexture reverses TakeSurfaceTexture, converting t back
// into a Surface and restoring it via ReplaceSurface, which owns the
// cleanup if the rebind fails.
func (b *BackBuffer) ReplaceSurfaceTexture(dev device.Device, ctx device.Context, t device.Texture) error {
	s, err := dev.DestroySurfaceTexture(ctx, t)
	if err != nil {
		return fmt.Errorf("backbuffer: replace surface texture: %w", err)
	}

	if err := b.ReplaceSurface(dev, ctx, s); err != nil {
		return fmt.Errorf("backbuffer: replace surface texture: %w", err)
	}
	return nil
}
