package peview

import (
	"bytes"
	"encoding/binary"
	"math"
	"reflect"
	"unicode/utf16"

	"github.com/pkg/errors"
)

// The typed read layer. Everything here is layered strictly on Pe.Slice and
// Pe.Read; no function does bounds arithmetic of its own beyond the overflow
// and incremental checks the contracts require. Element decoding always goes
// through encoding/binary, never a reinterpretation of raw bytes.

// typeInfo returns the wire size and natural alignment of T. T must be a
// fixed size type in the encoding/binary sense.
func typeInfo[T any]() (size, align int, err error) {
	var v T
	size = binary.Size(v)
	if size <= 0 {
		return 0, 0, errors.Errorf("peview: %T is not a fixed size type", v)
	}
	return size, reflect.TypeOf(v).Align(), nil
}

// checkedMul multiplies an element size by an untrusted count.
func checkedMul(size, count int) (int, error) {
	if count < 0 {
		return 0, ErrOverflow
	}
	total := uint64(size) * uint64(count)
	if count != 0 && total/uint64(count) != uint64(size) {
		return 0, ErrOverflow
	}
	if total > uint64(math.MaxInt) {
		return 0, ErrOverflow
	}
	return int(total), nil
}

func decodeValue[T any](b []byte, size int) (T, error) {
	var v T
	err := binary.Read(bytes.NewReader(b[:size]), binary.LittleEndian, &v)
	return v, err
}

// Derva reads an aligned POD T at the rva.
func Derva[T any](p Pe, rva Rva) (*T, error) {
	size, align, err := typeInfo[T]()
	if err != nil {
		return nil, err
	}
	b, err := p.Slice(rva, size, align)
	if err != nil {
		return nil, err
	}
	v, err := decodeValue[T](b, size)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// DervaCopy reads an unaligned POD T at the rva. Same size requirement as
// Derva but the source bytes need not be naturally aligned.
func DervaCopy[T any](p Pe, rva Rva) (T, error) {
	var zero T
	size, _, err := typeInfo[T]()
	if err != nil {
		return zero, err
	}
	b, err := p.Slice(rva, size, 1)
	if err != nil {
		return zero, err
	}
	return decodeValue[T](b, size)
}

// DervaSlice reads an array of POD T with the given length. The length may
// originate from an untrusted header field, so the byte size is multiplied
// with an overflow check before any read is attempted.
func DervaSlice[T any](p Pe, rva Rva, count int) ([]T, error) {
	size, align, err := typeInfo[T]()
	if err != nil {
		return nil, err
	}
	total, err := checkedMul(size, count)
	if err != nil {
		return nil, err
	}
	b, err := p.Slice(rva, total, align)
	if err != nil {
		return nil, err
	}
	out := make([]T, count)
	if count > 0 {
		if err := binary.Read(bytes.NewReader(b[:total]), binary.LittleEndian, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DervaSliceF reads an array of POD T whose length is unknown up front: f is
// called for each element in turn and the array ends at, and excludes, the
// first element for which f returns true.
//
// Because no exact length request can be made in advance, the view is taken
// with a zero minimum size and each element's byte range is re-verified
// against it before decoding; running out of view before f fires is
// ErrOutOfBounds.
func DervaSliceF[T any](p Pe, rva Rva, f func(*T) bool) ([]T, error) {
	size, align, err := typeInfo[T]()
	if err != nil {
		return nil, err
	}
	b, err := p.Slice(rva, 0, align)
	if err != nil {
		return nil, err
	}
	var out []T
	for offset := 0; ; offset += size {
		if offset+size > len(b) {
			return nil, ErrOutOfBounds
		}
		v, err := decodeValue[T](b[offset:offset+size], size)
		if err != nil {
			return nil, err
		}
		if f(&v) {
			return out, nil
		}
		out = append(out, v)
	}
}

// DervaSliceS reads an array of POD T terminated by, and excluding, the
// sentinel value.
func DervaSliceS[T comparable](p Pe, rva Rva, sentinel T) ([]T, error) {
	return DervaSliceF(p, rva, func(v *T) bool { return *v == sentinel })
}

// DervaCStr reads a nul-terminated C string at the rva.
func DervaCStr(p Pe, rva Rva) (string, error) {
	b, err := SliceBytes(p, rva)
	if err != nil {
		return "", err
	}
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", ErrBadCStr
	}
	return string(b[:i]), nil
}

// DervaString reads a nul-terminated C string at the rva, giving up with
// ErrBadCStr if no terminator appears within maxLen bytes. Directory walkers
// use it to reject absurd name fields without scanning to the region end.
func DervaString(p Pe, rva Rva, maxLen int) (string, error) {
	if maxLen < 0 {
		return "", ErrOverflow
	}
	b, err := SliceBytes(p, rva)
	if err != nil {
		return "", err
	}
	if len(b) > maxLen {
		b = b[:maxLen]
	}
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", ErrBadCStr
	}
	return string(b[:i]), nil
}

// DervaWideCStr reads a nul-terminated UTF-16LE string at the rva.
func DervaWideCStr(p Pe, rva Rva) (string, error) {
	units, err := DervaSliceS[uint16](p, rva, 0)
	if err != nil {
		if errors.Is(err, ErrOutOfBounds) {
			return "", ErrBadCStr
		}
		return "", err
	}
	return string(utf16.Decode(units)), nil
}

// Deref reads an aligned POD T behind the typed virtual address.
func Deref[T any](p Pe, ptr Ptr[T]) (*T, error) {
	size, align, err := typeInfo[T]()
	if err != nil {
		return nil, err
	}
	b, err := p.Read(Va(ptr), size, align)
	if err != nil {
		return nil, err
	}
	v, err := decodeValue[T](b, size)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// DerefCopy reads an unaligned POD T behind the typed virtual address.
func DerefCopy[T any](p Pe, ptr Ptr[T]) (T, error) {
	var zero T
	size, _, err := typeInfo[T]()
	if err != nil {
		return zero, err
	}
	b, err := p.Read(Va(ptr), size, 1)
	if err != nil {
		return zero, err
	}
	return decodeValue[T](b, size)
}

// DerefSlice reads an array of POD T with the given length behind the typed
// virtual address, with the same overflow check as DervaSlice.
func DerefSlice[T any](p Pe, ptr Ptr[T], count int) ([]T, error) {
	size, align, err := typeInfo[T]()
	if err != nil {
		return nil, err
	}
	total, err := checkedMul(size, count)
	if err != nil {
		return nil, err
	}
	b, err := p.Read(Va(ptr), total, align)
	if err != nil {
		return nil, err
	}
	out := make([]T, count)
	if count > 0 {
		if err := binary.Read(bytes.NewReader(b[:total]), binary.LittleEndian, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DerefSliceF is DervaSliceF addressed by a typed virtual address.
func DerefSliceF[T any](p Pe, ptr Ptr[T], f func(*T) bool) ([]T, error) {
	size, align, err := typeInfo[T]()
	if err != nil {
		return nil, err
	}
	b, err := p.Read(Va(ptr), 0, align)
	if err != nil {
		return nil, err
	}
	var out []T
	for offset := 0; ; offset += size {
		if offset+size > len(b) {
			return nil, ErrOutOfBounds
		}
		v, err := decodeValue[T](b[offset:offset+size], size)
		if err != nil {
			return nil, err
		}
		if f(&v) {
			return out, nil
		}
		out = append(out, v)
	}
}

// DerefSliceS reads a sentinel-terminated array behind the typed virtual
// address.
func DerefSliceS[T comparable](p Pe, ptr Ptr[T], sentinel T) ([]T, error) {
	return DerefSliceF(p, ptr, func(v *T) bool { return *v == sentinel })
}

// DerefCStr reads a nul-terminated C string behind the virtual address.
func DerefCStr(p Pe, ptr Ptr[byte]) (string, error) {
	b, err := ReadBytes(p, Va(ptr))
	if err != nil {
		return "", err
	}
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", ErrBadCStr
	}
	return string(b[:i]), nil
}
