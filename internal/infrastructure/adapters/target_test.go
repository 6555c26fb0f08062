package adapters

import (
	"net/url"
	"sync"
	"testing"

	"camlink/internal/core/domain"
	"camlink/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSurface collects frames for assertions.
type testSurface struct {
	mu     sync.Mutex
	bound  bool
	frames []domain.Frame
}

func (s *testSurface) Bind(domain.Protocol) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return domain.ErrSurfaceBound
	}
	s.bound = true
	return nil
}

func (s *testSurface) WriteFrame(f domain.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *testSurface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound = false
}

func (s *testSurface) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *testSurface) frame(i int) domain.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames[i]
}

func TestSocketURL(t *testing.T) {
	target := ports.Target{
		URL:      "http://gw.example:1984",
		StreamID: "front_door",
		Token:    "secret",
	}

	got, err := socketURL(target, "webrtc")
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "ws", u.Scheme)
	assert.Equal(t, "/api/ws", u.Path)
	assert.Equal(t, "front_door", u.Query().Get("src"))
	assert.Equal(t, "webrtc", u.Query().Get("mode"))
	assert.Equal(t, "secret", u.Query().Get("token"))
}

func TestSocketURLSecureScheme(t *testing.T) {
	got, err := socketURL(ports.Target{URL: "https://gw.example", StreamID: "s"}, "mse")
	require.NoError(t, err)
	u, _ := url.Parse(got)
	assert.Equal(t, "wss", u.Scheme)
}

func TestSocketURLWithoutToken(t *testing.T) {
	got, err := socketURL(ports.Target{URL: "http://gw.example", StreamID: "s"}, "webrtc")
	require.NoError(t, err)

	u, _ := url.Parse(got)
	_, present := u.Query()["token"]
	assert.False(t, present, "absent token must not produce a placeholder parameter")
}

func TestMediaURL(t *testing.T) {
	target := ports.Target{
		URL:      "http://gw.example:1984/base",
		StreamID: "yard",
		Token:    "tok",
	}

	got, err := mediaURL(target, hlsPath)
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "/base/api/stream.m3u8", u.Path)
	assert.Equal(t, "yard", u.Query().Get("src"))
	assert.Equal(t, "tok", u.Query().Get("token"))
}

func TestMediaURLRejectsUnknownScheme(t *testing.T) {
	_, err := mediaURL(ports.Target{URL: "ftp://gw.example", StreamID: "s"}, mjpegPath)
	assert.Error(t, err)
}
