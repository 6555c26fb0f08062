package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"camlink/internal/core/domain"
	"camlink/internal/core/ports"

	"github.com/grafov/m3u8"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// hlsMaxConsecutiveErrors is how many playlist refreshes may fail in a row
// after a successful start before the stream is considered dropped.
const hlsMaxConsecutiveErrors = 3

// HLSAdapter plays the gateway's HLS endpoint: it fetches the playlist,
// resolves a media playlist if the gateway serves a master one, and polls for
// new segments, delivering each as a frame to the surface.
type HLSAdapter struct {
	client *http.Client
	logger *zap.SugaredLogger

	target  ports.Target
	surface ports.Surface

	events    chan ports.AdapterEvent
	done      chan struct{}
	closeOnce sync.Once
	pollCtx   context.Context
	cancel    context.CancelFunc

	limiter   *rate.Limiter
	lastSeq   uint64
	delivered bool
}

func NewHLSAdapter(client *http.Client, pollInterval time.Duration, logger *zap.SugaredLogger) *HLSAdapter {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &HLSAdapter{
		client:  client,
		logger:  logger,
		events:  make(chan ports.AdapterEvent, 4),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Every(pollInterval), 1),
	}
}

func (a *HLSAdapter) Protocol() domain.Protocol { return domain.ProtocolHLS }

func (a *HLSAdapter) Configure(target ports.Target, surface ports.Surface, _ domain.TrackSelection) error {
	a.target = target
	if err := surface.Bind(a.Protocol()); err != nil {
		return err
	}
	a.surface = surface
	// The polling context is created here, before any goroutine handoff, so
	// Close always finds a cancel to call.
	a.pollCtx, a.cancel = context.WithCancel(context.Background())
	return nil
}

func (a *HLSAdapter) Events() <-chan ports.AdapterEvent { return a.events }

// Start fetches the playlist and the first batch of segments. Polling for
// subsequent segments continues in the background.
func (a *HLSAdapter) Start(ctx context.Context) error {
	playlistURL, err := mediaURL(a.target, hlsPath)
	if err != nil {
		return err
	}

	media, resolved, err := a.fetchMediaPlaylist(ctx, playlistURL)
	if err != nil {
		return err
	}
	if countSegments(media) == 0 {
		return fmt.Errorf("playlist has no segments")
	}

	if err := a.deliverNewSegments(ctx, resolved, media); err != nil {
		return err
	}

	go a.poll(a.pollCtx, resolved)
	return nil
}

// fetchMediaPlaylist downloads and parses the playlist, following a master
// playlist's first variant when necessary. It returns the URL the media
// playlist was actually served from for segment resolution.
func (a *HLSAdapter) fetchMediaPlaylist(ctx context.Context, playlistURL string) (*m3u8.MediaPlaylist, string, error) {
	body, err := a.get(ctx, playlistURL)
	if err != nil {
		return nil, "", err
	}

	playlist, kind, err := m3u8.DecodeFrom(body, true)
	body.Close()
	if err != nil {
		return nil, "", fmt.Errorf("parse playlist: %w", err)
	}

	switch kind {
	case m3u8.MEDIA:
		return playlist.(*m3u8.MediaPlaylist), playlistURL, nil
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		if len(master.Variants) == 0 {
			return nil, "", fmt.Errorf("master playlist has no variants")
		}
		variantURL, err := resolveRef(playlistURL, master.Variants[0].URI)
		if err != nil {
			return nil, "", err
		}
		vbody, err := a.get(ctx, variantURL)
		if err != nil {
			return nil, "", err
		}
		defer vbody.Close()
		vp, vkind, err := m3u8.DecodeFrom(vbody, true)
		if err != nil || vkind != m3u8.MEDIA {
			return nil, "", fmt.Errorf("parse variant playlist: %w", err)
		}
		return vp.(*m3u8.MediaPlaylist), variantURL, nil
	}
	return nil, "", fmt.Errorf("unrecognized playlist")
}

// poll refreshes the playlist at the configured pace and pushes segments the
// surface has not seen yet.
func (a *HLSAdapter) poll(ctx context.Context, playlistURL string) {
	errs := 0
	for {
		if err := a.limiter.Wait(ctx); err != nil {
			return
		}

		media, _, err := a.fetchMediaPlaylist(ctx, playlistURL)
		if err == nil {
			err = a.deliverNewSegments(ctx, playlistURL, media)
		}
		if err != nil {
			select {
			case <-a.done:
				return
			default:
			}
			errs++
			a.logger.Warnw("hls refresh", "error", err, "consecutive", errs)
			if errs >= hlsMaxConsecutiveErrors {
				a.emit(ports.AdapterEvent{Type: ports.AdapterDisconnected, Reason: err.Error()})
				return
			}
			continue
		}
		errs = 0
	}
}

// deliverNewSegments fetches every segment newer than the last delivered
// sequence number, in playlist order.
func (a *HLSAdapter) deliverNewSegments(ctx context.Context, playlistURL string, media *m3u8.MediaPlaylist) error {
	seq := media.SeqNo
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		cur := seq
		seq++
		if a.delivered && cur <= a.lastSeq {
			continue
		}

		segURL, err := resolveRef(playlistURL, seg.URI)
		if err != nil {
			return err
		}
		body, err := a.get(ctx, segURL)
		if err != nil {
			return err
		}
		data, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			return fmt.Errorf("read segment: %w", err)
		}

		frame := domain.Frame{Kind: domain.FrameVideo, Data: data, Timestamp: time.Now()}
		if err := a.surface.WriteFrame(frame); err != nil {
			return fmt.Errorf("surface write: %w", err)
		}
		a.lastSeq = cur
		a.delivered = true
	}
	return nil
}

func (a *HLSAdapter) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

func (a *HLSAdapter) emit(ev ports.AdapterEvent) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

func (a *HLSAdapter) Close() error {
	a.closeOnce.Do(func() {
		close(a.done)
		if a.cancel != nil {
			a.cancel()
		}
		if a.surface != nil {
			a.surface.Release()
		}
	})
	return nil
}

func countSegments(media *m3u8.MediaPlaylist) int {
	n := 0
	for _, seg := range media.Segments {
		if seg != nil {
			n++
		}
	}
	return n
}

func resolveRef(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid segment uri %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}
