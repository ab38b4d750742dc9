// Package testutil provides test doubles and assertions shared by the module's tests.
package testutil

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Reader is satisfied by FakeMemory and wazero's api.Memory.
type Reader interface {
	Read(offset, byteCount uint32) ([]byte, bool)
}

// AssertUint32At asserts that the little-endian value stored at offset equals want.
func AssertUint32At(t *testing.T, mem Reader, offset, want uint32, msgAndArgs ...interface{}) {
	t.Helper()
	buf, ok := mem.Read(offset, 4)
	require.True(t, ok, "offset %d out of range", offset)
	assert.Equal(t, want, binary.LittleEndian.Uint32(buf), msgAndArgs...)
}

// AssertBytesAt asserts that memory at offset holds exactly want.
func AssertBytesAt(t *testing.T, mem Reader, offset uint32, want []byte, msgAndArgs ...interface{}) {
	t.Helper()
	buf, ok := mem.Read(offset, uint32(len(want))) //nolint:gosec // G115: test data is small
	require.True(t, ok, "range [%d, +%d) out of range", offset, len(want))
	assert.Equal(t, want, buf, msgAndArgs...)
}

// RequireErrorIs is a convenience wrapper for require.ErrorIs that also
// checks the error message when contains is non-empty.
func RequireErrorIs(t *testing.T, err, target error, contains string) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, target)
	if contains != "" {
		assert.Contains(t, err.Error(), contains)
	}
}
