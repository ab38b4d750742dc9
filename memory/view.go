// Package memory provides bounds-checked access to a guest's linear memory.
//
// A View is created for a single host call and discarded when the call
// returns. Every offset and length it receives comes from the guest and is
// validated against the live memory size before any byte is touched.
package memory

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrOutOfBounds is returned when a range falls outside the guest memory.
	ErrOutOfBounds = errors.New("out of bounds")

	// ErrNoMemory is returned when the guest does not export a linear memory.
	ErrNoMemory = errors.New("guest memory unavailable")

	// ErrInvalidUTF8 is returned by ReadString for malformed payloads.
	ErrInvalidUTF8 = errors.New("invalid utf-8")
)

// Memory is the subset of a guest linear memory used by View.
// wazero's api.Memory satisfies it.
type Memory interface {
	Size() uint32
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
	WriteUint32Le(offset, v uint32) bool
}

// Fault describes a rejected memory access.
type Fault struct {
	Err    error
	Op     string
	Offset uint32
	Length uint32
	Size   uint32
}

func (f *Fault) Error() string {
	if errors.Is(f.Err, ErrNoMemory) {
		return fmt.Sprintf("memory %s: %v", f.Op, f.Err)
	}
	return fmt.Sprintf("memory %s [%d, +%d) of %d bytes: %v", f.Op, f.Offset, f.Length, f.Size, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// IsFault reports whether err is a memory fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

// View is a transient accessor over guest memory for one host call.
type View struct {
	mem Memory
}

// NewView returns a View over mem. A nil mem yields a View whose every
// access fails with ErrNoMemory.
func NewView(mem Memory) *View {
	return &View{mem: mem}
}

// Available reports whether the guest exported a memory.
func (v *View) Available() bool {
	return v != nil && v.mem != nil
}

// Size returns the current size of the guest memory in bytes.
func (v *View) Size() uint32 {
	if !v.Available() {
		return 0
	}
	return v.mem.Size()
}

// Check validates that [offset, offset+length) lies inside the live memory.
func (v *View) Check(offset, length uint32) error {
	return v.check("check", offset, length)
}

func (v *View) check(op string, offset, length uint32) error {
	if !v.Available() {
		return &Fault{Op: op, Offset: offset, Length: length, Err: ErrNoMemory}
	}
	size := v.mem.Size()
	// 64-bit sum so a huge offset cannot wrap back into range.
	if uint64(offset)+uint64(length) > uint64(size) {
		return &Fault{Op: op, Offset: offset, Length: length, Size: size, Err: ErrOutOfBounds}
	}
	return nil
}

// ReadBytes returns a copy of exactly length bytes starting at offset.
func (v *View) ReadBytes(offset, length uint32) ([]byte, error) {
	if err := v.check("read", offset, length); err != nil {
		return nil, err
	}
	buf, ok := v.mem.Read(offset, length)
	if !ok {
		return nil, &Fault{Op: "read", Offset: offset, Length: length, Size: v.mem.Size(), Err: ErrOutOfBounds}
	}
	// The returned slice aliases guest memory; the guest may overwrite it
	// once the call returns.
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// ReadString reads length bytes at offset and validates them as UTF-8.
func (v *View) ReadString(offset, length uint32) (string, error) {
	buf, err := v.ReadBytes(offset, length)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", ErrInvalidUTF8
	}
	return string(buf), nil
}

// WriteUint32 writes v little-endian at offset.
func (v *View) WriteUint32(offset, value uint32) error {
	if err := v.check("write", offset, 4); err != nil {
		return err
	}
	if !v.mem.WriteUint32Le(offset, value) {
		return &Fault{Op: "write", Offset: offset, Length: 4, Size: v.mem.Size(), Err: ErrOutOfBounds}
	}
	return nil
}

// WriteInt32 writes v little-endian at offset using two's complement.
func (v *View) WriteInt32(offset uint32, value int32) error {
	return v.WriteUint32(offset, uint32(value)) //nolint:gosec // G115: bit-preserving conversion
}

// WriteBytes copies b into guest memory at offset and returns the count written.
func (v *View) WriteBytes(offset uint32, b []byte) (int, error) {
	length := uint64(len(b))
	if length > uint64(^uint32(0)) {
		return 0, &Fault{Op: "write", Offset: offset, Length: ^uint32(0), Size: v.Size(), Err: ErrOutOfBounds}
	}
	if err := v.check("write", offset, uint32(length)); err != nil {
		return 0, err
	}
	if !v.mem.Write(offset, b) {
		return 0, &Fault{Op: "write", Offset: offset, Length: uint32(length), Size: v.mem.Size(), Err: ErrOutOfBounds}
	}
	return len(b), nil
}
