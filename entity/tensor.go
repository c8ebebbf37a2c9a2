package entity

import (
	"fmt"

	"github.com/weftworks/weft/errors"
)

// Tensor is a non-owning descriptor of a typed, shaped, strided memory
// buffer, possibly device-resident. The data slice views memory owned by the
// engine's arena; a Tensor must not outlive the Entity (or Block) that backs
// it. Consumers treat the bytes as read-only unless the producer has
// relinquished exclusive access.
type Tensor struct {
	shape   []int64
	strides []int64
	dtype   Dtype
	device  Device
	data    []byte
	sync    SyncToken
	alive   func() bool
}

// TensorOption configures tensor construction.
type TensorOption func(*Tensor)

// WithStrides overrides the row-major default strides (in bytes).
func WithStrides(strides []int64) TensorOption {
	return func(t *Tensor) { t.strides = append([]int64(nil), strides...) }
}

// WithDevice sets the device placement. The default is host.
func WithDevice(d Device) TensorOption {
	return func(t *Tensor) { t.device = d }
}

// WithSyncToken attaches the synchronization token required when producer
// and consumer may run concurrently on different execution streams.
func WithSyncToken(tok SyncToken) TensorOption {
	return func(t *Tensor) { t.sync = tok }
}

// WithLiveness ties the tensor's validity to an external probe, typically
// the backing Block or Entity. Capsules opened after the probe reports false
// fail with ErrCapsuleExpired.
func WithLiveness(alive func() bool) TensorOption {
	return func(t *Tensor) { t.alive = alive }
}

// NewTensor builds a tensor view over data. The data slice is referenced,
// never copied. Strides default to a contiguous row-major layout.
func NewTensor(data []byte, shape []int64, dtype Dtype, opts ...TensorOption) (*Tensor, error) {
	if !dtype.Valid() {
		return nil, errors.WrapInterchange(errors.ErrUnsupportedDtype,
			"Tensor", "NewTensor", fmt.Sprintf("dtype %s", dtype))
	}
	for i, dim := range shape {
		if dim < 0 {
			return nil, errors.WrapInterchange(
				fmt.Errorf("dimension %d is negative (%d)", i, dim),
				"Tensor", "NewTensor", "shape validation")
		}
	}

	t := &Tensor{
		shape:  append([]int64(nil), shape...),
		dtype:  dtype,
		device: HostDevice(),
		data:   data,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.strides == nil {
		t.strides = RowMajorStrides(t.shape, int64(dtype.Size()))
	}
	if len(t.strides) != len(t.shape) {
		return nil, errors.WrapInterchange(
			fmt.Errorf("%d strides for %d dimensions", len(t.strides), len(t.shape)),
			"Tensor", "NewTensor", "stride validation")
	}
	for i, s := range t.strides {
		if s < 0 {
			return nil, errors.WrapInterchange(
				fmt.Errorf("stride %d is negative (%d)", i, s),
				"Tensor", "NewTensor", "stride validation")
		}
	}
	if need := t.byteExtent(); data != nil && int64(len(data)) < need {
		return nil, errors.WrapInterchange(
			fmt.Errorf("buffer holds %d bytes, tensor needs %d", len(data), need),
			"Tensor", "NewTensor", "buffer size validation")
	}
	return t, nil
}

// byteExtent returns the span of addressable bytes under the tensor's
// strides: the offset of the last element plus one element. Padded layouts
// can need more than the dense NumBytes, and an empty tensor needs none.
func (t *Tensor) byteExtent() int64 {
	extent := int64(t.dtype.Size())
	for i, dim := range t.shape {
		if dim == 0 {
			return 0
		}
		extent += (dim - 1) * t.strides[i]
	}
	return extent
}

// RowMajorStrides derives contiguous byte strides for a shape and element
// size, the default layout of the interchange.
func RowMajorStrides(shape []int64, itemSize int64) []int64 {
	strides := make([]int64, len(shape))
	stride := itemSize
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// Shape returns a copy of the dimension sizes, outermost first.
func (t *Tensor) Shape() []int64 {
	return append([]int64(nil), t.shape...)
}

// Strides returns a copy of the per-dimension byte strides.
func (t *Tensor) Strides() []int64 {
	return append([]int64(nil), t.strides...)
}

// Dtype returns the element type.
func (t *Tensor) Dtype() Dtype {
	return t.dtype
}

// Device returns the buffer placement.
func (t *Tensor) Device() Device {
	return t.device
}

// SyncToken returns the synchronization token, zero when none is attached.
func (t *Tensor) SyncToken() SyncToken {
	return t.sync
}

// Bytes returns the raw non-owning view. Callers must not retain it past
// the life of the backing entity.
func (t *Tensor) Bytes() []byte {
	return t.data
}

// NumElements returns the total element count.
func (t *Tensor) NumElements() int64 {
	n := int64(1)
	for _, dim := range t.shape {
		n *= dim
	}
	return n
}

// NumBytes returns the byte size of a densely packed tensor of this shape
// and dtype.
func (t *Tensor) NumBytes() int64 {
	return t.NumElements() * int64(t.dtype.Size())
}

// Alive reports whether the backing storage is still valid.
func (t *Tensor) Alive() bool {
	return t.alive == nil || t.alive()
}

// Descriptor is the shape/stride/dtype interchange form consumed by a
// downstream numeric ecosystem. It describes the same underlying buffer as
// the tensor it came from; nothing is copied in either direction.
type Descriptor struct {
	Shape   []int64
	Dtype   Dtype
	Strides []int64
	Device  Device
	Data    []byte
	Sync    SyncToken
}

// Describe returns the immediate-interop descriptor for the tensor. The
// Data field aliases the tensor's buffer.
func (t *Tensor) Describe() Descriptor {
	return Descriptor{
		Shape:   t.Shape(),
		Dtype:   t.dtype,
		Strides: t.Strides(),
		Device:  t.device,
		Data:    t.data,
		Sync:    t.sync,
	}
}

// FromDescriptor reconstructs a tensor view from a descriptor without
// copying the buffer.
func FromDescriptor(d Descriptor) (*Tensor, error) {
	if len(d.Strides) != 0 && len(d.Strides) != len(d.Shape) {
		return nil, errors.WrapInterchange(errors.ErrBadDescriptor,
			"Tensor", "FromDescriptor", "stride count validation")
	}
	opts := []TensorOption{WithDevice(d.Device), WithSyncToken(d.Sync)}
	if len(d.Strides) != 0 {
		opts = append(opts, WithStrides(d.Strides))
	}
	return NewTensor(d.Data, d.Shape, d.Dtype, opts...)
}

// Capsule is the opaque hand-off form for deferred, multi-consumer
// consumption. Every Open observes the same underlying buffer; a capsule
// whose backing entity has been released fails with ErrCapsuleExpired
// instead of handing out a dangling view.
type Capsule struct {
	desc  Descriptor
	alive func() bool
}

// Capsule returns the deferred hand-off form of the tensor.
func (t *Tensor) Capsule() *Capsule {
	return &Capsule{desc: t.Describe(), alive: t.alive}
}

// Open yields the descriptor. It may be called by any number of consumers.
func (c *Capsule) Open() (Descriptor, error) {
	if c.alive != nil && !c.alive() {
		return Descriptor{}, errors.WrapInterchange(errors.ErrCapsuleExpired,
			"Capsule", "Open", "liveness check")
	}
	return c.desc, nil
}
