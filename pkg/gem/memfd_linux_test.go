//go:build linux

package gem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemfdObject(t *testing.T, w, h, bpp uint32) *Object {
	t.Helper()
	obj, err := CreateMemfdDumb(w, h, bpp)
	if err != nil {
		t.Skipf("memfd unavailable: %v", err)
	}
	t.Cleanup(func() { obj.Release() })
	return obj
}

func TestMemfdBackendReadWrite(t *testing.T) {
	obj := newMemfdObject(t, 16, 16, 32)
	assert.Equal(t, uint64(1024), obj.Size())

	n, err := obj.Write(1020, []byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	out := make([]byte, 4)
	_, err = obj.Read(1020, out)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, out)
}

func TestMemfdBackendIsMappable(t *testing.T) {
	obj := newMemfdObject(t, 16, 1, 32)

	m, ok := obj.Mappable()
	require.True(t, ok)
	assert.GreaterOrEqual(t, m.Fd(), 0)

	mapped, err := m.Map()
	require.NoError(t, err)
	mapped[3] = 0x7f
	require.NoError(t, m.Unmap(mapped))

	out := make([]byte, 4)
	_, err = obj.Read(0, out)
	require.NoError(t, err)
	assert.Equal(t, byte(0x7f), out[3], "writes through the mapping are visible to ReadAt")
}

func TestMemfdBackendReleaseIsIdempotent(t *testing.T) {
	obj := newMemfdObject(t, 4, 4, 8)
	require.NoError(t, obj.Release())
	require.NoError(t, obj.Release())

	_, err := obj.Read(0, make([]byte, 1))
	assert.ErrorIs(t, err, ErrReleased)

	m, ok := obj.Mappable()
	require.True(t, ok)
	_, err = m.Map()
	assert.ErrorIs(t, err, ErrReleased)
}
