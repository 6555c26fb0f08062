package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"camlink/internal/core/domain"
	"camlink/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const mediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:2
#EXT-X-MEDIA-SEQUENCE:7
#EXTINF:2.0,
seg7.ts
#EXTINF:2.0,
seg8.ts
`

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=1280x720
media.m3u8
`

func hlsServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stream.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		fmt.Fprint(w, mediaPlaylist)
	})
	for _, name := range []string{"seg7.ts", "seg8.ts"} {
		name := name
		mux.HandleFunc("/api/"+name, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "payload-"+name)
		})
	}
	return httptest.NewServer(mux)
}

func TestHLSStartDeliversSegments(t *testing.T) {
	srv := hlsServer(t)
	defer srv.Close()

	adapter := NewHLSAdapter(srv.Client(), time.Second, zap.NewNop().Sugar())
	surface := &testSurface{}
	require.NoError(t, adapter.Configure(
		ports.Target{URL: srv.URL, StreamID: "cam1", Token: "tok"},
		surface,
		domain.TrackSelection{Video: true},
	))
	defer adapter.Close()

	require.NoError(t, adapter.Start(context.Background()))

	require.GreaterOrEqual(t, surface.frameCount(), 2)
	assert.Equal(t, []byte("payload-seg7.ts"), surface.frame(0).Data)
	assert.Equal(t, []byte("payload-seg8.ts"), surface.frame(1).Data)
	assert.Equal(t, domain.FrameVideo, surface.frame(0).Kind)
}

func TestHLSFollowsMasterPlaylist(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stream.m3u8", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, masterPlaylist)
	})
	mux.HandleFunc("/api/media.m3u8", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, mediaPlaylist)
	})
	mux.HandleFunc("/api/seg7.ts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "v7")
	})
	mux.HandleFunc("/api/seg8.ts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "v8")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	adapter := NewHLSAdapter(srv.Client(), time.Second, zap.NewNop().Sugar())
	surface := &testSurface{}
	require.NoError(t, adapter.Configure(
		ports.Target{URL: srv.URL, StreamID: "cam1"},
		surface,
		domain.TrackSelection{Video: true},
	))
	defer adapter.Close()

	require.NoError(t, adapter.Start(context.Background()))
	assert.GreaterOrEqual(t, surface.frameCount(), 2)
}

func TestHLSEmptyPlaylistFailsStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:2\n")
	}))
	defer srv.Close()

	adapter := NewHLSAdapter(srv.Client(), time.Second, zap.NewNop().Sugar())
	surface := &testSurface{}
	require.NoError(t, adapter.Configure(
		ports.Target{URL: srv.URL, StreamID: "cam1"},
		surface,
		domain.TrackSelection{Video: true},
	))
	defer adapter.Close()

	err := adapter.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no segments")
}

func TestHLSUnreachableGatewayFailsStart(t *testing.T) {
	adapter := NewHLSAdapter(&http.Client{Timeout: 200 * time.Millisecond}, time.Second, zap.NewNop().Sugar())
	surface := &testSurface{}
	require.NoError(t, adapter.Configure(
		ports.Target{URL: "http://127.0.0.1:1", StreamID: "cam1"},
		surface,
		domain.TrackSelection{Video: true},
	))
	defer adapter.Close()

	assert.Error(t, adapter.Start(context.Background()))
}

// Close before or during Start must cancel the polling context and leave the
// events channel safe for a late emit.
func TestHLSCloseBeforeStartCancelsPolling(t *testing.T) {
	adapter := NewHLSAdapter(http.DefaultClient, time.Millisecond, zap.NewNop().Sugar())
	surface := &testSurface{}
	require.NoError(t, adapter.Configure(
		ports.Target{URL: "http://gw.example:1984", StreamID: "cam1"},
		surface,
		domain.TrackSelection{Video: true},
	))

	require.NoError(t, adapter.Close())
	require.Error(t, adapter.pollCtx.Err(), "polling context must be cancelled")

	for i := 0; i < 8; i++ {
		adapter.emit(ports.AdapterEvent{Type: ports.AdapterDisconnected, Reason: "late"})
	}
}
