package common

import (
	"unsafe"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// AlignUp rounds value up to the next multiple of alignment.
// Alignment must be a power of two; an alignment of 0 returns value unchanged.
//
// Parameters:
//   - alignment: the required alignment
//   - value: the value to align
//
// Returns:
//   - uint64: value rounded up to the next multiple of alignment
func AlignUp(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// DivCeil returns the smallest n such that n*divisor >= value.
// A divisor of 0 returns 0.
func DivCeil(value, divisor uint32) uint32 {
	if divisor == 0 {
		return 0
	}
	return (value + divisor - 1) / divisor
}
