package boundary

import (
	"fmt"

	"sdloader/sdruntime"
)

// hostImage is the host-owned copy of an engine image.
type hostImage struct {
	pixels   []byte
	width    int
	height   int
	channels int
}

// copyOut transfers img into a host buffer from alloc and frees img on
// every path. The host buffer is either fully written or not returned.
func copyOut(img sdruntime.ImageBuffer, alloc Allocator) (hostImage, error) {
	defer img.Free()

	w, h, c := img.Width(), img.Height(), img.Channels()
	n, ok := sdruntime.ByteLen(w, h, c)
	if !ok {
		return hostImage{}, fmt.Errorf("%w: %dx%dx%d", ErrBadDimensions, w, h, c)
	}

	src := img.Data()
	if len(src) < n {
		return hostImage{}, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, len(src))
	}

	dst, err := alloc.Alloc(n)
	if err != nil {
		return hostImage{}, err
	}
	if len(dst) != n {
		return hostImage{}, fmt.Errorf("%w: allocator returned %d bytes, want %d", ErrHostAllocation, len(dst), n)
	}
	copy(dst, src[:n])

	return hostImage{pixels: dst, width: w, height: h, channels: c}, nil
}
