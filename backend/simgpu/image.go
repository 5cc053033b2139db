package simgpu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framepipe/gpu"
)

// Image is a simulated GPU image holding RGBA8 pixels.
type Image struct {
	dev    *Device
	label  string
	width  uint32
	height uint32
	format gputypes.TextureFormat

	mu    sync.Mutex // guards pix and state
	pix   []byte
	state gpu.ResourceState // as executed on the GPU timeline

	// recorded is the state after all recorded commands. Only the
	// recording goroutine touches it.
	recorded gpu.ResourceState

	// pending counts queued GPU commands that reference the image.
	pending  atomic.Int32
	released atomic.Bool

	// Set for swapchain buffers. Release on a buffer drops a reference
	// taken by Swapchain.Buffer instead of destroying it.
	owner      *Swapchain
	generation int
	refs       atomic.Int32
}

var _ gpu.Image = (*Image)(nil)

func newImage(d *Device, desc gpu.ImageDesc, owner *Swapchain, generation int) *Image {
	return &Image{
		dev:        d,
		label:      desc.Label,
		width:      desc.Width,
		height:     desc.Height,
		format:     desc.Format,
		pix:        make([]byte, int(desc.Width)*int(desc.Height)*4),
		state:      desc.InitialState,
		recorded:   desc.InitialState,
		owner:      owner,
		generation: generation,
	}
}

func (img *Image) Label() string                  { return img.label }
func (img *Image) Width() uint32                  { return img.width }
func (img *Image) Height() uint32                 { return img.height }
func (img *Image) Format() gputypes.TextureFormat { return img.format }

// Generation returns the swapchain buffer generation, zero for images not
// owned by a swapchain. Every ResizeBuffers starts a new generation.
func (img *Image) Generation() int { return img.generation }

// State returns the state of the image on the GPU timeline.
func (img *Image) State() gpu.ResourceState {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.state
}

// Released reports whether the image has been destroyed.
func (img *Image) Released() bool { return img.released.Load() }

// Release destroys the image, or drops a swapchain buffer reference.
func (img *Image) Release() {
	if img.owner != nil {
		if img.refs.Add(-1) < 0 {
			img.refs.Store(0)
		}
		return
	}
	img.destroy()
}

func (img *Image) destroy() {
	if !img.released.CompareAndSwap(false, true) {
		return
	}
	img.dev.trace.add(Event{
		Kind:       EventRelease,
		Label:      img.label,
		Generation: img.generation,
		Width:      img.width,
		Height:     img.height,
	})
	if n := img.pending.Load(); n > 0 {
		img.dev.fault(fmt.Errorf("image %q destroyed with %d GPU commands pending", img.label, n))
	}
	if img.owner == nil {
		img.dev.live.Add(-1)
	}
}

// transition applies a barrier on the GPU timeline.
func (img *Image) transition(before, after gpu.ResourceState) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.state != before {
		return fmt.Errorf("image %q is %v, barrier expects %v: %w", img.label, img.state, before, gpu.ErrStateMismatch)
	}
	img.state = after
	return nil
}

// expect checks the GPU timeline state.
func (img *Image) expect(s gpu.ResourceState) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.state != s {
		return fmt.Errorf("image %q is %v, need %v: %w", img.label, img.state, s, gpu.ErrStateMismatch)
	}
	return nil
}

// copyFrom copies src pixels into img. Both must be the same size.
func (img *Image) copyFrom(src *Image) {
	src.mu.Lock()
	defer src.mu.Unlock()
	img.mu.Lock()
	defer img.mu.Unlock()
	copy(img.pix, src.pix)
}
