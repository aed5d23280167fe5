package swapchain

import (
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/surfchain/device"
	"github.com/gogpu/surfchain/device/devicetest"
)

func countCalls(calls []string, name string) int {
	n := 0
	for _, c := range calls {
		if c == name {
			n++
		}
	}
	return n
}

// bindFreshSurface gives ctx a bound surface, the precondition for
// creating an attached chain, and returns it.
func bindFreshSurface(t *testing.T, dev device.Device, ctx device.Context, size device.Size) device.Surface {
	t.Helper()
	s, err := dev.CreateSurface(ctx, device.SurfaceAccessGPUOnly, size)
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	if err := dev.BindSurfaceToContext(ctx, s); err != nil {
		t.Fatalf("BindSurfaceToContext: %v", err)
	}
	return s
}

func newAttachedTestChain(t *testing.T, dev device.Device, ctx device.Context, size device.Size) (*Registry, *Chain) {
	t.Helper()
	bindFreshSurface(t, dev, ctx, size)
	reg := NewRegistry()
	if err := reg.CreateAttachedSwapChain(dev, ctx, 1, device.SurfaceAccessGPUOnly); err != nil {
		t.Fatalf("CreateAttachedSwapChain: %v", err)
	}
	c, ok := reg.Get(1)
	if !ok {
		t.Fatal("Get() after create: not found")
	}
	return reg, c
}

func TestSwapBuffersRotatesBackBuffer(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	size := device.Size{Width: 640, Height: 480}
	_, c := newAttachedTestChain(t, dev, ctx, size)

	if err := c.SwapBuffers(dev, ctx, PreserveNo); err != nil {
		t.Fatalf("SwapBuffers: %v", err)
	}

	s, ok := c.TakeSurface()
	if !ok {
		t.Fatal("TakeSurface() ok = false after a swap, want true")
	}
	if s.Size != size {
		t.Errorf("consumed surface size = %v, want %v", s.Size, size)
	}
	if !c.IsAttached() {
		t.Error("IsAttached() = false after SwapBuffers, want true")
	}
	if n := len(c.data.recycled); n != 0 {
		t.Errorf("recycled pool holds %d surfaces after SwapBuffers, want 0", n)
	}
}

func TestSwapBuffersReusesRecycledSurface(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	if err := c.SwapBuffers(dev, ctx, PreserveNo); err != nil {
		t.Fatalf("first SwapBuffers: %v", err)
	}
	s, ok := c.TakeSurface()
	if !ok {
		t.Fatal("TakeSurface() ok = false, want true")
	}
	c.RecycleSurface(s)

	if err := c.SwapBuffers(dev, ctx, PreserveNo); err != nil {
		t.Fatalf("second SwapBuffers: %v", err)
	}

	// One allocation for the initial bound surface, one for the first
	// swap; the second swap must reuse the recycled surface.
	if n := countCalls(dev.Calls, "CreateSurface"); n != 2 {
		t.Errorf("CreateSurface called %d times across two swaps, want 2", n)
	}
	if n := countCalls(dev.Calls, "DestroySurface"); n != 0 {
		t.Errorf("DestroySurface called %d times, want 0 (nothing should be dropped)", n)
	}
}

func TestSwapBuffersReusesStalePending(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	if err := c.SwapBuffers(dev, ctx, PreserveNo); err != nil {
		t.Fatalf("first SwapBuffers: %v", err)
	}
	// The consumer never picks up the pending surface; the second swap
	// must recycle and then reuse it rather than allocating again.
	if err := c.SwapBuffers(dev, ctx, PreserveNo); err != nil {
		t.Fatalf("second SwapBuffers: %v", err)
	}

	if n := countCalls(dev.Calls, "CreateSurface"); n != 2 {
		t.Errorf("CreateSurface called %d times, want 2 (stale pending should be reused)", n)
	}
	if n := len(c.data.recycled); n != 0 {
		t.Errorf("recycled pool holds %d surfaces after SwapBuffers, want 0", n)
	}
}

func TestSwapBuffersDrainsRecycledPool(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	// Two pool entries of the wrong size can never become the next back
	// buffer; the swap must destroy them.
	c.RecycleSurface(device.Surface{ID: 90, Size: device.Size{Width: 2, Height: 2}, Handle: 90})
	c.RecycleSurface(device.Surface{ID: 91, Size: device.Size{Width: 8, Height: 8}, Handle: 91})

	if err := c.SwapBuffers(dev, ctx, PreserveNo); err != nil {
		t.Fatalf("SwapBuffers: %v", err)
	}

	if n := len(c.data.recycled); n != 0 {
		t.Errorf("recycled pool holds %d surfaces after SwapBuffers, want 0", n)
	}
	if n := countCalls(dev.Calls, "DestroySurface"); n != 2 {
		t.Errorf("DestroySurface called %d times, want 2", n)
	}
}

func TestSwapBuffersPreserveBlits(t *testing.T) {
	dev := devicetest.NewCapable()
	ctx := devicetest.NewContext(1)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	if err := c.SwapBuffers(dev, ctx, PreserveYes); err != nil {
		t.Fatalf("SwapBuffers: %v", err)
	}
	if dev.BlitCalls != 1 {
		t.Errorf("BlitCalls = %d, want 1", dev.BlitCalls)
	}
}

func TestSwapBuffersPreserveWithoutBlitterFails(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	err := c.SwapBuffers(dev, ctx, PreserveYes)
	if !errors.Is(err, device.ErrFailed) {
		t.Errorf("SwapBuffers(PreserveYes) on a blit-less device error = %v, want wrapping ErrFailed", err)
	}
	// The rotation itself still completed; only the preserve failed.
	if _, ok := c.TakePendingSurface(); !ok {
		t.Error("the swap should still have produced a pending surface")
	}
}

func TestResizeChangesSize(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	if err := c.Resize(dev, ctx, device.Size{Width: 8, Height: 8}); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if got := c.Size(); got != (device.Size{Width: 8, Height: 8}) {
		t.Errorf("Size() = %v, want 8x8", got)
	}
	if !c.IsAttached() {
		t.Error("IsAttached() = false after Resize, want true")
	}
}

func TestResizeRejectsEmptySize(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	before := len(dev.Calls)
	for _, size := range []device.Size{{}, {Width: 0, Height: 100}, {Width: 100, Height: 0}, {Width: -1, Height: 100}} {
		if err := c.Resize(dev, ctx, size); !errors.Is(err, device.ErrFailed) {
			t.Errorf("Resize(%v) error = %v, want wrapping ErrFailed", size, err)
		}
	}
	if got := c.Size(); got != (device.Size{Width: 4, Height: 4}) {
		t.Errorf("Size() after rejected Resize = %v, want unchanged 4x4", got)
	}
	if after := len(dev.Calls); after != before {
		t.Errorf("rejected Resize made %d device calls, want 0", after-before)
	}
}

func TestResizeInvalidatesPoolOnNextSwap(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	small := device.Size{Width: 640, Height: 480}
	large := device.Size{Width: 800, Height: 600}
	_, c := newAttachedTestChain(t, dev, ctx, small)

	if err := c.SwapBuffers(dev, ctx, PreserveNo); err != nil {
		t.Fatalf("SwapBuffers: %v", err)
	}
	s, _ := c.TakeSurface()
	c.RecycleSurface(s)

	if err := c.Resize(dev, ctx, large); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	// Resize leaves the pool alone; the stale entry goes on the next swap.
	if n := len(c.data.recycled); n != 1 {
		t.Fatalf("recycled pool holds %d surfaces after Resize, want 1", n)
	}

	destroysBefore := countCalls(dev.Calls, "DestroySurface")
	if err := c.SwapBuffers(dev, ctx, PreserveNo); err != nil {
		t.Fatalf("SwapBuffers after Resize: %v", err)
	}

	if n := len(c.data.recycled); n != 0 {
		t.Errorf("recycled pool holds %d surfaces after the swap, want 0", n)
	}
	if n := countCalls(dev.Calls, "DestroySurface") - destroysBefore; n != 1 {
		t.Errorf("the swap destroyed %d surfaces, want 1 (the stale pooled one)", n)
	}
	if got := c.Size(); got != large {
		t.Errorf("Size() = %v, want %v", got, large)
	}
	pending, ok := c.TakePendingSurface()
	if !ok {
		t.Fatal("TakePendingSurface() ok = false after the swap, want true")
	}
	if pending.Size != large {
		t.Errorf("pending surface size = %v, want %v", pending.Size, large)
	}
}

func TestTakeAttachmentFromExchangesSurfaces(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	bound := bindFreshSurface(t, dev, ctx, device.Size{Width: 4, Height: 4})

	reg := NewRegistry()
	if err := reg.CreateAttachedSwapChain(dev, ctx, 1, device.SurfaceAccessGPUOnly); err != nil {
		t.Fatalf("create attached chain: %v", err)
	}
	if err := reg.CreateDetachedSwapChain(dev, ctx, 2, device.DefaultConfig(4, 4)); err != nil {
		t.Fatalf("create detached chain: %v", err)
	}
	attached, _ := reg.Get(1)
	detached, _ := reg.Get(2)

	if err := detached.TakeAttachmentFrom(dev, ctx, attached); err != nil {
		t.Fatalf("TakeAttachmentFrom: %v", err)
	}

	// Surfaces crossed over; each chain keeps its own attachment state.
	if !attached.IsAttached() {
		t.Error("the attached chain should remain attached after the exchange")
	}
	if detached.IsAttached() {
		t.Error("the detached chain should remain detached after the exchange")
	}

	// The context's bound surface is now the detached chain's old one.
	info, ok, err := dev.ContextSurfaceInfo(ctx)
	if err != nil || !ok {
		t.Fatalf("ContextSurfaceInfo: ok=%v err=%v", ok, err)
	}
	if info.ID == bound.ID {
		t.Error("the exchange should have replaced the context's bound surface")
	}

	// And the detached chain now holds the surface that had been bound.
	got, err := detached.data.back.TakeSurface(dev, ctx)
	if err != nil {
		t.Fatalf("inspect detached back buffer: %v", err)
	}
	if got.ID != bound.ID {
		t.Errorf("detached chain holds surface %d, want %d", got.ID, bound.ID)
	}
	if err := detached.data.back.ReplaceSurface(dev, ctx, got); err != nil {
		t.Fatalf("restore detached back buffer: %v", err)
	}
}

func TestCreateDetachedStandalone(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)

	c, err := CreateDetached(dev, ctx, 5, device.DefaultConfig(4, 4))
	if err != nil {
		t.Fatalf("CreateDetached: %v", err)
	}
	if c.ID() != 5 {
		t.Errorf("ID() = %d, want 5", c.ID())
	}
	if c.IsAttached() {
		t.Error("a chain from CreateDetached should not be attached")
	}
	if err := c.Destroy(dev, ctx); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
}

func TestCreateAttachedStandaloneRequiresBoundSurface(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)

	if _, err := CreateAttached(dev, ctx, 1, device.SurfaceAccessGPUOnly); !errors.Is(err, device.ErrContextNotCurrent) {
		t.Errorf("CreateAttached on an unbound context error = %v, want wrapping ErrContextNotCurrent", err)
	}
}

func TestTakeAttachmentFromRejectsSelf(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	if err := c.TakeAttachmentFrom(dev, ctx, c); !errors.Is(err, device.ErrFailed) {
		t.Errorf("TakeAttachmentFrom(self) error = %v, want wrapping ErrFailed", err)
	}
}

func TestTakeAttachmentFromRejectsWrongContext(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	other := devicetest.NewContext(2)
	reg, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	if err := reg.CreateDetachedSwapChain(dev, ctx, 2, device.DefaultConfig(4, 4)); err != nil {
		t.Fatalf("create detached chain: %v", err)
	}
	d, _ := reg.Get(2)

	if err := d.TakeAttachmentFrom(dev, other, c); !errors.Is(err, device.ErrIncompatibleContext) {
		t.Errorf("TakeAttachmentFrom with wrong context error = %v, want wrapping ErrIncompatibleContext", err)
	}
}

func TestClearSurfaceRequiresClearer(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	if err := c.ClearSurface(dev, ctx, [4]float64{0, 0, 0, 1}); !errors.Is(err, device.ErrFailed) {
		t.Errorf("ClearSurface on a clear-less device error = %v, want wrapping ErrFailed", err)
	}
}

func TestClearSurfaceRestoresBinding(t *testing.T) {
	dev := devicetest.NewCapable()
	ctx := devicetest.NewContext(1)
	bound := bindFreshSurface(t, dev, ctx, device.Size{Width: 4, Height: 4})

	reg := NewRegistry()
	if err := reg.CreateAttachedSwapChain(dev, ctx, 1, device.SurfaceAccessGPUOnly); err != nil {
		t.Fatalf("CreateAttachedSwapChain: %v", err)
	}
	c, _ := reg.Get(1)

	if err := c.ClearSurface(dev, ctx, [4]float64{1, 0, 0, 1}); err != nil {
		t.Fatalf("ClearSurface: %v", err)
	}
	if dev.ClearCalls != 1 {
		t.Errorf("ClearCalls = %d, want 1", dev.ClearCalls)
	}

	info, ok, err := dev.ContextSurfaceInfo(ctx)
	if err != nil || !ok {
		t.Fatalf("ContextSurfaceInfo after clear: ok=%v err=%v", ok, err)
	}
	if info.ID != bound.ID {
		t.Errorf("bound surface after clear = %d, want %d (binding must be restored)", info.ID, bound.ID)
	}
}

func TestClearSurfaceOnDetachedChain(t *testing.T) {
	dev := devicetest.NewCapable()
	ctx := devicetest.NewContext(1)
	reg := NewRegistry()
	if err := reg.CreateDetachedSwapChain(dev, ctx, 1, device.DefaultConfig(4, 4)); err != nil {
		t.Fatalf("CreateDetachedSwapChain: %v", err)
	}
	c, _ := reg.Get(1)

	if err := c.ClearSurface(dev, ctx, [4]float64{0, 1, 0, 1}); err != nil {
		t.Fatalf("ClearSurface on a detached chain: %v", err)
	}
	if dev.ClearCalls != 1 {
		t.Errorf("ClearCalls = %d, want 1", dev.ClearCalls)
	}
	if c.IsAttached() {
		t.Error("chain should remain detached after ClearSurface")
	}
}

func TestSurfaceTextureRoundTripOnChain(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	tex, err := c.TakeSurfaceTexture(dev, ctx)
	if err != nil {
		t.Fatalf("TakeSurfaceTexture: %v", err)
	}
	if tex.IsZero() {
		t.Fatal("TakeSurfaceTexture returned a zero texture")
	}

	if err := c.RecycleSurfaceTexture(dev, ctx, tex); err != nil {
		t.Fatalf("RecycleSurfaceTexture: %v", err)
	}
	if !c.IsAttached() {
		t.Error("IsAttached() = false after the texture round trip, want true")
	}
}

func TestDestroyDrainsEverything(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	if err := c.SwapBuffers(dev, ctx, PreserveNo); err != nil {
		t.Fatalf("SwapBuffers: %v", err)
	}
	pending, _ := c.TakePendingSurface()
	c.RecycleSurface(pending)

	destroysBefore := countCalls(dev.Calls, "DestroySurface")
	if err := c.Destroy(dev, ctx); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	// The back buffer and the recycled surface both go back to the device.
	if n := countCalls(dev.Calls, "DestroySurface") - destroysBefore; n != 2 {
		t.Errorf("Destroy destroyed %d surfaces, want 2", n)
	}
	if c.data.pending != nil || len(c.data.recycled) != 0 {
		t.Error("Destroy left surfaces behind")
	}
}

func TestTakeSurfaceOnFreshChainReturnsNone(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	if _, ok := c.TakeSurface(); ok {
		t.Error("TakeSurface() on a fresh chain should return ok = false")
	}
	if _, ok := c.TakePendingSurface(); ok {
		t.Error("TakePendingSurface() on a fresh chain should return ok = false")
	}
}

func TestTakeSurfacePrefersPendingOverRecycled(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	c.RecycleSurface(device.Surface{ID: 99, Size: device.Size{Width: 2, Height: 2}, Handle: 99})

	if err := c.SwapBuffers(dev, ctx, PreserveNo); err != nil {
		t.Fatalf("SwapBuffers: %v", err)
	}

	s, ok := c.TakeSurface()
	if !ok {
		t.Fatal("TakeSurface() ok = false, want true")
	}
	if s.ID == 99 {
		t.Error("TakeSurface() should prefer the pending surface over the recycled pool")
	}
}

func TestTakeSurfaceFallsBackToRecycledPool(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	want := device.Surface{ID: 42, Size: device.Size{Width: 4, Height: 4}, Handle: 42}
	c.RecycleSurface(want)

	s, ok := c.TakeSurface()
	if !ok {
		t.Fatal("TakeSurface() ok = false, want true")
	}
	if s.ID != want.ID {
		t.Errorf("TakeSurface() = %v, want the recycled surface %v", s, want)
	}

	if _, ok := c.TakeSurface(); ok {
		t.Error("TakeSurface() should return ok = false once the pool is drained")
	}
}

func TestProducerOpsRejectWrongContext(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	other := devicetest.NewContext(2)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	callsBefore := len(dev.Calls)

	if err := c.SwapBuffers(dev, other, PreserveNo); !errors.Is(err, device.ErrIncompatibleContext) {
		t.Errorf("SwapBuffers with wrong context error = %v, want wrapping ErrIncompatibleContext", err)
	}
	if err := c.Resize(dev, other, device.Size{Width: 8, Height: 8}); !errors.Is(err, device.ErrIncompatibleContext) {
		t.Errorf("Resize with wrong context error = %v, want wrapping ErrIncompatibleContext", err)
	}
	if err := c.ClearSurface(dev, other, [4]float64{}); !errors.Is(err, device.ErrIncompatibleContext) {
		t.Errorf("ClearSurface with wrong context error = %v, want wrapping ErrIncompatibleContext", err)
	}
	if _, err := c.TakeSurfaceTexture(dev, other); !errors.Is(err, device.ErrIncompatibleContext) {
		t.Errorf("TakeSurfaceTexture with wrong context error = %v, want wrapping ErrIncompatibleContext", err)
	}
	if err := c.Destroy(dev, other); !errors.Is(err, device.ErrIncompatibleContext) {
		t.Errorf("Destroy with wrong context error = %v, want wrapping ErrIncompatibleContext", err)
	}

	// The chain is untouched and the device saw no surface traffic.
	if after := len(dev.Calls); after != callsBefore {
		t.Errorf("rejected calls made %d device surface calls, want 0", after-callsBefore)
	}
	if got := c.Size(); got != (device.Size{Width: 4, Height: 4}) {
		t.Errorf("Size() after rejected calls = %v, want unchanged 4x4", got)
	}
	if !c.IsAttached() {
		t.Error("IsAttached() after rejected calls = false, want true (unchanged)")
	}
}

func TestProducerConsumerParallel(t *testing.T) {
	dev := devicetest.New()
	ctx := devicetest.NewContext(1)
	_, c := newAttachedTestChain(t, dev, ctx, device.Size{Width: 4, Height: 4})

	const frames = 100
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if s, ok := c.TakeSurface(); ok {
				c.RecycleSurface(s)
			}
		}
	}()

	for i := 0; i < frames; i++ {
		if err := c.SwapBuffers(dev, ctx, PreserveNo); err != nil {
			close(done)
			wg.Wait()
			t.Fatalf("SwapBuffers frame %d: %v", i, err)
		}
	}
	close(done)
	wg.Wait()

	if err := c.Destroy(dev, ctx); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
}
