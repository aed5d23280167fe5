// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpudevice

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/gogpu/wgpu/core"

	"github.com/gogpu/surfchain/device"
	"github.com/gogpu/surfchain/framebuffer"
)

// submitPlaceholderPass runs one command encoder through the legacy
// ID-based encode/finish/submit cycle. The encoder and command buffer it
// produces are placeholders (core's own doc comments say as much: no HAL
// command recording happens yet), but submitting one still exercises the
// device's real queue rather than skipping GPU involvement entirely.
func (d *Device) submitPlaceholderPass(label string) error {
	encID, err := core.DeviceCreateCommandEncoder(d.deviceID, label)
	if err != nil {
		return fmt.Errorf("gpudevice: %s encoder: %w", label, err)
	}
	cmdID, err := core.CommandEncoderFinish(encID)
	if err != nil {
		return fmt.Errorf("gpudevice: %s finish: %w", label, err)
	}
	if err := core.QueueSubmit(d.queueID, []core.CommandBufferID{cmdID}); err != nil {
		return fmt.Errorf("gpudevice: %s submit: %w", label, err)
	}
	return nil
}

// BlitSurface copies src's pixels into dst, with nearest filtering when
// the sizes differ. The copy runs on the CPU via golang.org/x/image/draw
// when both surfaces are CPU-readable; the GPU submission still happens
// so the call exercises the queue like a real texture-to-texture copy
// would.
func (d *Device) BlitSurface(ctx device.Context, dst, src device.Surface) error {
	if err := d.submitPlaceholderPass("surfchain-blit"); err != nil {
		return err
	}

	dh, dok := dst.Handle.(*handle)
	sh, sok := src.Handle.(*handle)
	if !dok || !sok || dh.pixels == nil || sh.pixels == nil {
		return nil
	}

	srcImg := &image.RGBA{Pix: sh.pixels, Stride: src.Size.Width * 4, Rect: image.Rect(0, 0, src.Size.Width, src.Size.Height)}
	dstImg := &image.RGBA{Pix: dh.pixels, Stride: dst.Size.Width * 4, Rect: image.Rect(0, 0, dst.Size.Width, dst.Size.Height)}

	if src.Size == dst.Size {
		draw.Draw(dstImg, dstImg.Bounds(), srcImg, image.Point{}, draw.Src)
	} else {
		draw.NearestNeighbor.Scale(dstImg, dstImg.Bounds(), srcImg, srcImg.Bounds(), draw.Src, nil)
	}
	return nil
}

// ClearSurface clears every renderable plane s reports. Like
// BlitSurface, the GPU submission is real; the actual fill is a CPU
// write for CPU-readable surfaces, one pass per attachment the way a
// per-pass clear load op would touch each plane.
func (d *Device) ClearSurface(ctx device.Context, s device.Surface, clr [4]float64) error {
	if err := d.submitPlaceholderPass("surfchain-clear"); err != nil {
		return err
	}

	info, err := d.SurfaceInfo(ctx, s)
	if err != nil {
		return err
	}

	h, ok := s.Handle.(*handle)
	if !ok || h.pixels == nil {
		return nil
	}

	for _, att := range framebuffer.Attachments(info) {
		switch att {
		case device.AttachmentColor:
			img := &image.RGBA{Pix: h.pixels, Stride: s.Size.Width * 4, Rect: image.Rect(0, 0, s.Size.Width, s.Size.Height)}
			fill := color.RGBA{
				R: clamp255(clr[0]),
				G: clamp255(clr[1]),
				B: clamp255(clr[2]),
				A: clamp255(clr[3]),
			}
			draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)
		case device.AttachmentDepth, device.AttachmentStencil:
			// gpudevice surfaces never carry their own depth/stencil
			// planes; nothing to reset.
		}
	}
	return nil
}

func clamp255(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v * 255)
	}
}
