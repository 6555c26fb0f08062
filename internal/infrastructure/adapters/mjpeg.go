package adapters

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"camlink/internal/core/domain"
	"camlink/internal/core/ports"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MJPEGAdapter plays the gateway's multipart/x-mixed-replace endpoint, the
// last rung of the fallback ladder. Frame delivery is capped so a fast camera
// cannot flood the surface.
type MJPEGAdapter struct {
	client *http.Client
	logger *zap.SugaredLogger

	target  ports.Target
	surface ports.Surface

	events    chan ports.AdapterEvent
	done      chan struct{}
	closeOnce sync.Once
	streamCtx context.Context
	cancel    context.CancelFunc

	limiter *rate.Limiter
}

func NewMJPEGAdapter(client *http.Client, maxFPS float64, logger *zap.SugaredLogger) *MJPEGAdapter {
	if maxFPS <= 0 {
		maxFPS = 10
	}
	return &MJPEGAdapter{
		client:  client,
		logger:  logger,
		events:  make(chan ports.AdapterEvent, 4),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(maxFPS), 1),
	}
}

func (a *MJPEGAdapter) Protocol() domain.Protocol { return domain.ProtocolMJPEG }

func (a *MJPEGAdapter) Configure(target ports.Target, surface ports.Surface, _ domain.TrackSelection) error {
	a.target = target
	if err := surface.Bind(a.Protocol()); err != nil {
		return err
	}
	a.surface = surface
	// The response body outlives Start, so its context is created here rather
	// than from Start's argument; Close cancels it.
	a.streamCtx, a.cancel = context.WithCancel(context.Background())
	return nil
}

func (a *MJPEGAdapter) Events() <-chan ports.AdapterEvent { return a.events }

// Start opens the stream and blocks until the first frame arrives. Frame
// reading continues in the background; a read error afterwards is reported as
// a disconnect.
func (a *MJPEGAdapter) Start(ctx context.Context) error {
	streamURL, err := mediaURL(a.target, mjpegPath)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(a.streamCtx, http.MethodGet, streamURL, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("stream request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("stream request: status %d", resp.StatusCode)
	}

	reader, err := partReader(resp)
	if err != nil {
		resp.Body.Close()
		return err
	}

	frame, err := a.readFrame(reader)
	if err != nil {
		resp.Body.Close()
		return fmt.Errorf("first frame: %w", err)
	}
	if err := a.surface.WriteFrame(frame); err != nil {
		resp.Body.Close()
		return fmt.Errorf("surface write: %w", err)
	}

	go a.consume(a.streamCtx, resp.Body, reader)
	return nil
}

// partReader validates the content type and returns the multipart reader for
// the frame stream.
func partReader(resp *http.Response) (*multipart.Reader, error) {
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("unexpected content type %q", mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, fmt.Errorf("multipart response without boundary")
	}
	return multipart.NewReader(resp.Body, boundary), nil
}

func (a *MJPEGAdapter) readFrame(reader *multipart.Reader) (domain.Frame, error) {
	part, err := reader.NextPart()
	if err != nil {
		return domain.Frame{}, err
	}
	data, err := io.ReadAll(part)
	part.Close()
	if err != nil {
		return domain.Frame{}, err
	}
	return domain.Frame{Kind: domain.FrameVideo, Data: data, Timestamp: time.Now()}, nil
}

func (a *MJPEGAdapter) consume(ctx context.Context, body io.Closer, reader *multipart.Reader) {
	defer body.Close()
	for {
		if err := a.limiter.Wait(ctx); err != nil {
			return
		}
		frame, err := a.readFrame(reader)
		if err != nil {
			select {
			case <-a.done:
				return
			default:
			}
			a.emit(ports.AdapterEvent{Type: ports.AdapterDisconnected, Reason: err.Error()})
			return
		}
		if err := a.surface.WriteFrame(frame); err != nil {
			a.emit(ports.AdapterEvent{Type: ports.AdapterDisconnected, Reason: err.Error()})
			return
		}
	}
}

func (a *MJPEGAdapter) emit(ev ports.AdapterEvent) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

func (a *MJPEGAdapter) Close() error {
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
