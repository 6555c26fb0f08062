package surface

import (
	"os"
	"path/filepath"
	"testing"

	"camlink/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindingIsExclusive(t *testing.T) {
	s := NewNullSurface()

	require.NoError(t, s.Bind(domain.ProtocolWebRTC))
	err := s.Bind(domain.ProtocolMSE)
	require.ErrorIs(t, err, domain.ErrSurfaceBound)
	assert.Contains(t, err.Error(), "webrtc")

	s.Release()
	assert.NoError(t, s.Bind(domain.ProtocolMSE))
}

func TestNullSurfaceCounts(t *testing.T) {
	s := NewNullSurface()
	require.NoError(t, s.Bind(domain.ProtocolMJPEG))

	require.NoError(t, s.WriteFrame(domain.Frame{Kind: domain.FrameVideo, Data: []byte("abcd")}))
	require.NoError(t, s.WriteFrame(domain.Frame{Kind: domain.FrameVideo, Data: []byte("ef")}))

	assert.Equal(t, uint64(2), s.Frames())
	assert.Equal(t, uint64(6), s.Bytes())
}

func TestFileSurfaceWritesPayloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.bin")
	s, err := NewFileSurface(path)
	require.NoError(t, err)
	require.NoError(t, s.Bind(domain.ProtocolMSE))

	require.NoError(t, s.WriteFrame(domain.Frame{Kind: domain.FrameInit, Data: []byte("init")}))
	require.NoError(t, s.WriteFrame(domain.Frame{Kind: domain.FrameVideo, Data: []byte("seg")}))
	require.NoError(t, s.CloseFile())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "initseg", string(data))

	assert.Error(t, s.WriteFrame(domain.Frame{Data: []byte("late")}))
	assert.NoError(t, s.CloseFile())
}
