package gem

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubBackend struct{ mock.Mock }

func (s *stubBackend) ReadAt(p []byte, off int64) (int, error) {
	ret := s.Called(p, off)
	return ret.Int(0), ret.Error(1)
}

func (s *stubBackend) WriteAt(p []byte, off int64) (int, error) {
	ret := s.Called(p, off)
	return ret.Int(0), ret.Error(1)
}

func (s *stubBackend) Release() error { return s.Called().Error(0) }

func TestObjectDelegatesToBackend(t *testing.T) {
	backend := &stubBackend{}
	buf := make([]byte, 4)
	backend.On("ReadAt", buf, int64(8)).Return(4, nil).Once()
	backend.On("WriteAt", []byte{9}, int64(0)).Return(1, nil).Once()
	backend.On("Release").Return(nil).Twice()

	obj := NewObject(64, 16, backend)
	assert.Equal(t, uint64(64), obj.Size())
	assert.Equal(t, uint32(16), obj.Pitch())
	assert.Same(t, backend, obj.Backend())

	n, err := obj.Read(8, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = obj.Write(0, []byte{9})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Release is passed through every time; idempotency is the backend's job.
	require.NoError(t, obj.Release())
	require.NoError(t, obj.Release())

	backend.AssertExpectations(t)
}

func TestObjectPropagatesBackendErrors(t *testing.T) {
	backend := &stubBackend{}
	boom := errors.New("device lost")
	backend.On("WriteAt", mock.Anything, int64(0)).Return(0, boom)

	_, err := NewObject(1, 1, backend).Write(0, []byte{1})
	assert.ErrorIs(t, err, boom)
}

func TestHeapBackendLifecycle(t *testing.T) {
	h := NewHeapBackend(8)

	n, err := h.WriteAt([]byte{1, 2, 3}, 6)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "writes are clipped at the end of the buffer")

	out := make([]byte, 8)
	n, err = h.ReadAt(out, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 1, 2}, out)

	_, err = h.ReadAt(out, 9)
	assert.ErrorIs(t, err, ErrOutOfRange)

	require.NoError(t, h.Release())
	require.NoError(t, h.Release())

	_, err = h.ReadAt(out, 0)
	assert.ErrorIs(t, err, ErrReleased)
	_, err = h.WriteAt(out, 0)
	assert.ErrorIs(t, err, ErrReleased)
}

func TestHeapObjectIsNotMappable(t *testing.T) {
	obj, err := CreateHeapDumb(4, 4, 32)
	require.NoError(t, err)

	m, ok := obj.Mappable()
	assert.False(t, ok)
	assert.Nil(t, m)
}

func TestDumbGeometry(t *testing.T) {
	tests := []struct {
		name               string
		width, height, bpp uint32
		wantPitch          uint32
		wantSize           uint64
		wantErr            bool
	}{
		{"xrgb8888", 1280, 800, 32, 5120, 4096000, false},
		{"rgb565", 1024, 768, 16, 2048, 1572864, false},
		{"bpp rounds up", 10, 1, 12, 20, 20, false},
		{"zero width", 0, 800, 32, 0, 0, true},
		{"zero bpp", 1, 1, 0, 0, 0, true},
		{"largest default mode", 8192, 8192, 32, 32768, 1 << 28, false},
		{"exactly at limit", 16384, 16384, 32, 65536, MaxDumbSize, false},
		{"too large", 65535, 65535, 32, 0, 0, true},
		{"wide pixels overflow limit", 65535, 1, 1 << 31, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pitch, size, err := DumbGeometry(tt.width, tt.height, tt.bpp)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadGeometry)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPitch, pitch)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}

func TestCreateHeapDumb(t *testing.T) {
	obj, err := CreateHeapDumb(1280, 800, 32)
	require.NoError(t, err)
	assert.Equal(t, uint32(5120), obj.Pitch())
	assert.Equal(t, uint64(4096000), obj.Size())

	_, err = CreateHeapDumb(0, 1, 32)
	assert.Error(t, err)
}
