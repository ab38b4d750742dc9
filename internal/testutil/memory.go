package testutil

import (
	"encoding/binary"
	"sync"
)

// PageSize is the WebAssembly page size in bytes.
const PageSize = 65536

// FakeMemory is a slice-backed guest memory. It satisfies memory.Memory and
// records how many accesses reached it so tests can prove that rejected
// calls never touched guest memory.
type FakeMemory struct {
	mu     sync.Mutex
	buf    []byte
	reads  int
	writes int
}

// NewFakeMemory returns a zeroed memory of size bytes.
func NewFakeMemory(size int) *FakeMemory {
	return &FakeMemory{buf: make([]byte, size)}
}

// Size returns the memory size in bytes.
func (m *FakeMemory) Size() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint32(len(m.buf)) //nolint:gosec // G115: test memories are small
}

// Grow appends n zero bytes, simulating memory.grow between calls.
func (m *FakeMemory) Grow(n int) {
	m.mu.Lock()
	m.buf = append(m.buf, make([]byte, n)...)
	m.mu.Unlock()
}

// Read returns a slice aliasing the backing buffer.
func (m *FakeMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.inRange(offset, byteCount) {
		return nil, false
	}
	m.reads++
	return m.buf[offset : offset+byteCount : offset+byteCount], true
}

// Write copies v into the buffer at offset.
func (m *FakeMemory) Write(offset uint32, v []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.inRange(offset, uint32(len(v))) { //nolint:gosec // G115: test data is small
		return false
	}
	m.writes++
	copy(m.buf[offset:], v)
	return true
}

// WriteUint32Le writes v little-endian at offset.
func (m *FakeMemory) WriteUint32Le(offset, v uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.inRange(offset, 4) {
		return false
	}
	m.writes++
	binary.LittleEndian.PutUint32(m.buf[offset:], v)
	return true
}

// Put stores b at offset without counting it as a guest access. It panics
// if the range is out of bounds.
func (m *FakeMemory) Put(offset uint32, b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.buf[offset:offset+uint32(len(b))], b) //nolint:gosec // G115: test data is small
}

// Fill sets every byte to b without counting it as a guest access.
func (m *FakeMemory) Fill(b byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.buf {
		m.buf[i] = b
	}
}

// Reads returns the number of successful reads.
func (m *FakeMemory) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Writes returns the number of successful writes.
func (m *FakeMemory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *FakeMemory) inRange(offset, n uint32) bool {
	return uint64(offset)+uint64(n) <= uint64(len(m.buf))
}
