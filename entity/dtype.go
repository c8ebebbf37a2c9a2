package entity

import "fmt"

// Dtype enumerates the primitive element types a Tensor can carry across the
// interchange boundary.
type Dtype uint8

const (
	// DtypeUnspecified marks an invalid or unset dtype.
	DtypeUnspecified Dtype = iota
	// DtypeInt8 is a signed 8-bit integer.
	DtypeInt8
	// DtypeInt16 is a signed 16-bit integer.
	DtypeInt16
	// DtypeInt32 is a signed 32-bit integer.
	DtypeInt32
	// DtypeInt64 is a signed 64-bit integer.
	DtypeInt64
	// DtypeUint8 is an unsigned 8-bit integer.
	DtypeUint8
	// DtypeUint16 is an unsigned 16-bit integer.
	DtypeUint16
	// DtypeUint32 is an unsigned 32-bit integer.
	DtypeUint32
	// DtypeUint64 is an unsigned 64-bit integer.
	DtypeUint64
	// DtypeFloat32 is an IEEE-754 32-bit float.
	DtypeFloat32
	// DtypeFloat64 is an IEEE-754 64-bit float.
	DtypeFloat64
)

// Size returns the element size in bytes, or 0 for an unspecified dtype.
func (d Dtype) Size() int {
	switch d {
	case DtypeInt8, DtypeUint8:
		return 1
	case DtypeInt16, DtypeUint16:
		return 2
	case DtypeInt32, DtypeUint32, DtypeFloat32:
		return 4
	case DtypeInt64, DtypeUint64, DtypeFloat64:
		return 8
	default:
		return 0
	}
}

// String returns the canonical dtype name.
func (d Dtype) String() string {
	switch d {
	case DtypeInt8:
		return "int8"
	case DtypeInt16:
		return "int16"
	case DtypeInt32:
		return "int32"
	case DtypeInt64:
		return "int64"
	case DtypeUint8:
		return "uint8"
	case DtypeUint16:
		return "uint16"
	case DtypeUint32:
		return "uint32"
	case DtypeUint64:
		return "uint64"
	case DtypeFloat32:
		return "float32"
	case DtypeFloat64:
		return "float64"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// Valid reports whether d names a concrete primitive type.
func (d Dtype) Valid() bool {
	return d.Size() > 0
}

// DeviceKind distinguishes host memory from accelerator memory.
type DeviceKind uint8

const (
	// DeviceHost places a buffer in host memory.
	DeviceHost DeviceKind = iota
	// DeviceAccelerator places a buffer in device memory owned by the
	// external engine's memory arena.
	DeviceAccelerator
)

// String returns the device kind name.
func (k DeviceKind) String() string {
	switch k {
	case DeviceHost:
		return "host"
	case DeviceAccelerator:
		return "device"
	default:
		return fmt.Sprintf("devicekind(%d)", uint8(k))
	}
}

// Device describes where a buffer lives.
type Device struct {
	Kind    DeviceKind
	Ordinal int
}

// HostDevice returns the host placement.
func HostDevice() Device {
	return Device{Kind: DeviceHost}
}

// String returns "host" or "device:<ordinal>".
func (d Device) String() string {
	if d.Kind == DeviceHost {
		return "host"
	}
	return fmt.Sprintf("device:%d", d.Ordinal)
}

// SyncToken orders producer and consumer access to a device buffer when they
// may run on different execution streams. The zero token means "no
// synchronization required". The interchange layer propagates the token
// verbatim; it never assumes same-stream ordering.
type SyncToken uint64
