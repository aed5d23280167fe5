// Command surfchaindemo exercises the surfchain swap-chain engine
// end to end against a real (or mock) gpudevice.Device: creating an
// attached chain, producing a few frames, exchanging its surface with a
// second, detached chain, resizing, and clearing.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/surfchain"
	"github.com/gogpu/surfchain/device"
	"github.com/gogpu/surfchain/device/gpudevice"
	"github.com/gogpu/surfchain/swapchain"
)

const (
	producerChain  swapchain.ChainID = 1
	offscreenChain swapchain.ChainID = 2
)

func main() {
	var (
		width   = flag.Int("width", 800, "swap chain surface width")
		height  = flag.Int("height", 600, "swap chain surface height")
		mock    = flag.Bool("mock", true, "use a mock wgpu adapter instead of a real GPU")
		verbose = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		surfchain.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	// The demo has no host application to receive a GPU device from, so
	// it opens a standalone provider and hands it to gpudevice.New the
	// way a host's own gpucontext.DeviceProvider would be.
	provider, err := openProvider(*mock)
	if err != nil {
		log.Fatalf("surfchaindemo: open device provider: %v", err)
	}
	defer func() {
		if err := provider.Close(); err != nil {
			log.Printf("surfchaindemo: close device provider: %v", err)
		}
	}()

	dev, err := gpudevice.New(provider)
	if err != nil {
		log.Fatalf("surfchaindemo: wrap device: %v", err)
	}

	ctx := gpudevice.NewContext(1)
	reg := swapchain.NewRegistry()

	// An attached chain inherits the surface currently bound to the
	// context, so give the context one first; this stands in for the
	// window surface a real windowing backend would have bound.
	window, err := dev.CreateSurface(ctx, device.SurfaceAccessCPUReadable, device.Size{Width: *width, Height: *height})
	if err != nil {
		log.Fatalf("surfchaindemo: create window surface: %v", err)
	}
	if err := dev.BindSurfaceToContext(ctx, window); err != nil {
		log.Fatalf("surfchaindemo: bind window surface: %v", err)
	}

	if err := reg.CreateAttachedSwapChain(dev, ctx, producerChain, device.SurfaceAccessCPUReadable); err != nil {
		log.Fatalf("surfchaindemo: create attached swap chain: %v", err)
	}
	producer, _ := reg.Get(producerChain)

	for frame := 0; frame < 3; frame++ {
		if err := producer.ClearSurface(dev, ctx, [4]float64{0.1, 0.1, 0.1, 1}); err != nil {
			log.Fatalf("surfchaindemo: clear frame %d: %v", frame, err)
		}
		if err := producer.SwapBuffers(dev, ctx, swapchain.PreserveNo); err != nil {
			log.Fatalf("surfchaindemo: swap frame %d: %v", frame, err)
		}
		if pending, ok := producer.TakePendingSurface(); ok {
			log.Printf("surfchaindemo: frame %d produced surface %d", frame, pending.ID)
			producer.RecycleSurface(pending)
		}
	}

	cfg := device.Config{
		Size:   device.Size{Width: *width, Height: *height},
		Access: device.SurfaceAccessCPUReadable,
	}
	if err := reg.CreateDetachedSwapChain(dev, ctx, offscreenChain, cfg); err != nil {
		log.Fatalf("surfchaindemo: create detached swap chain: %v", err)
	}
	offscreen, _ := reg.Get(offscreenChain)

	if err := offscreen.TakeAttachmentFrom(dev, ctx, producer); err != nil {
		log.Fatalf("surfchaindemo: exchange surfaces: %v", err)
	}
	log.Printf("surfchaindemo: chains %d and %d exchanged back buffers", producerChain, offscreenChain)

	if err := offscreen.Resize(dev, ctx, device.Size{Width: *width * 2, Height: *height * 2}); err != nil {
		log.Fatalf("surfchaindemo: resize: %v", err)
	}
	log.Printf("surfchaindemo: chain %d resized to %s", offscreenChain, offscreen.Size())

	for _, c := range reg.Iter(dev, ctx) {
		log.Printf("surfchaindemo: chain %d: size %s, attached %v", c.ID(), c.Size(), c.IsAttached())
	}

	if err := reg.Destroy(dev, ctx, producerChain); err != nil {
		log.Fatalf("surfchaindemo: destroy producer chain: %v", err)
	}
	if err := reg.Destroy(dev, ctx, offscreenChain); err != nil {
		log.Fatalf("surfchaindemo: destroy offscreen chain: %v", err)
	}

	log.Println("surfchaindemo: done")
}

func openProvider(mock bool) (*gpudevice.Provider, error) {
	if mock {
		return gpudevice.NewMockProvider("surfchaindemo")
	}
	return gpudevice.NewProvider("surfchaindemo")
}
