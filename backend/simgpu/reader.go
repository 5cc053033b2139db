package simgpu

import (
	"fmt"
	"image"

	"github.com/gogpu/framepipe/gpu"
)

// ReadImage copies the pixels of img. It fails with gpu.ErrInFlight if
// queued GPU work still references the image.
func (d *Device) ReadImage(img gpu.Image) (*image.RGBA, error) {
	si, err := d.image(img)
	if err != nil {
		return nil, err
	}
	if si.released.Load() {
		return nil, gpu.ErrReleased
	}
	if n := si.pending.Load(); n > 0 {
		return nil, fmt.Errorf("read %q with %d commands pending: %w", si.label, n, gpu.ErrInFlight)
	}

	out := image.NewRGBA(image.Rect(0, 0, int(si.width), int(si.height)))
	si.mu.Lock()
	copy(out.Pix, si.pix)
	si.mu.Unlock()
	return out, nil
}
