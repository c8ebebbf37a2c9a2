package entity

import (
	"fmt"

	"github.com/weftworks/weft/errors"
)

// PixelLayout describes the color-plane arrangement of a video-style buffer.
// It is the explicit descriptor that distinguishes device video buffers from
// plain array tensors.
type PixelLayout uint8

const (
	// LayoutUnknown marks an unset layout.
	LayoutUnknown PixelLayout = iota
	// LayoutGray8 is single-channel 8-bit luminance.
	LayoutGray8
	// LayoutRGB8 is interleaved 8-bit RGB.
	LayoutRGB8
	// LayoutRGBA8 is interleaved 8-bit RGBA.
	LayoutRGBA8
	// LayoutNV12 is biplanar YUV 4:2:0 (full-resolution Y plane followed by
	// an interleaved half-resolution UV plane).
	LayoutNV12
)

// String returns the layout name.
func (l PixelLayout) String() string {
	switch l {
	case LayoutGray8:
		return "gray8"
	case LayoutRGB8:
		return "rgb8"
	case LayoutRGBA8:
		return "rgba8"
	case LayoutNV12:
		return "nv12"
	default:
		return fmt.Sprintf("layout(%d)", uint8(l))
	}
}

// Channels returns the interleaved channel count, or 0 for planar layouts.
func (l PixelLayout) Channels() int {
	switch l {
	case LayoutGray8:
		return 1
	case LayoutRGB8:
		return 3
	case LayoutRGBA8:
		return 4
	default:
		return 0
	}
}

// bytesFor returns the packed byte size of a frame in this layout.
func (l PixelLayout) bytesFor(width, height int64) int64 {
	switch l {
	case LayoutNV12:
		return width * height * 3 / 2
	default:
		return width * height * int64(l.Channels())
	}
}

// VideoBuffer is a video/image-style buffer with an explicit pixel layout.
// Like Tensor it is a non-owning view; the engine owns the bytes.
type VideoBuffer struct {
	width  int64
	height int64
	layout PixelLayout
	data   []byte
	device Device
	sync   SyncToken
	alive  func() bool
}

// VideoOption configures video buffer construction.
type VideoOption func(*VideoBuffer)

// WithVideoDevice sets the device placement. The default is host.
func WithVideoDevice(d Device) VideoOption {
	return func(v *VideoBuffer) { v.device = d }
}

// WithVideoSyncToken attaches a synchronization token.
func WithVideoSyncToken(tok SyncToken) VideoOption {
	return func(v *VideoBuffer) { v.sync = tok }
}

// WithVideoLiveness ties the buffer's validity to an external probe.
func WithVideoLiveness(alive func() bool) VideoOption {
	return func(v *VideoBuffer) { v.alive = alive }
}

// NewVideoBuffer builds a video buffer view over data without copying.
func NewVideoBuffer(data []byte, width, height int64, layout PixelLayout, opts ...VideoOption) (*VideoBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.WrapInterchange(
			fmt.Errorf("invalid frame size %dx%d", width, height),
			"VideoBuffer", "NewVideoBuffer", "size validation")
	}
	if layout == LayoutUnknown {
		return nil, errors.WrapInterchange(errors.ErrUnsupportedLayout,
			"VideoBuffer", "NewVideoBuffer", "layout validation")
	}
	if need := layout.bytesFor(width, height); int64(len(data)) < need {
		return nil, errors.WrapInterchange(
			fmt.Errorf("buffer holds %d bytes, %s frame needs %d", len(data), layout, need),
			"VideoBuffer", "NewVideoBuffer", "buffer size validation")
	}

	v := &VideoBuffer{
		width:  width,
		height: height,
		layout: layout,
		data:   data,
		device: HostDevice(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Width returns the frame width in pixels.
func (v *VideoBuffer) Width() int64 { return v.width }

// Height returns the frame height in pixels.
func (v *VideoBuffer) Height() int64 { return v.height }

// Layout returns the pixel layout descriptor.
func (v *VideoBuffer) Layout() PixelLayout { return v.layout }

// Bytes returns the raw non-owning view of the frame.
func (v *VideoBuffer) Bytes() []byte { return v.data }

// AsTensor exposes the frame as a tensor in the requested pixel layout.
// Only zero-copy reinterpretations are offered: the source layout itself.
// Requesting any other layout yields a typed interchange failure, distinct
// from "not found", so callers can tell "needs conversion" apart from
// "absent".
func (v *VideoBuffer) AsTensor(want PixelLayout) (*Tensor, error) {
	if want != v.layout {
		return nil, errors.WrapInterchange(errors.ErrUnsupportedLayout,
			"VideoBuffer", "AsTensor",
			fmt.Sprintf("cannot view %s frame as %s without a copy", v.layout, want))
	}

	var shape []int64
	switch v.layout {
	case LayoutNV12:
		// Y plane plus interleaved UV rows, as a single dense plane stack.
		shape = []int64{v.height * 3 / 2, v.width}
	default:
		shape = []int64{v.height, v.width, int64(v.layout.Channels())}
	}

	opts := []TensorOption{WithDevice(v.device), WithSyncToken(v.sync)}
	if v.alive != nil {
		opts = append(opts, WithLiveness(v.alive))
	}
	return NewTensor(v.data, shape, DtypeUint8, opts...)
}
