package adapters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"camlink/internal/core/domain"
	"camlink/internal/core/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MSEAdapter consumes the gateway's fMP4-over-websocket stream: the first
// binary message is the codec initialization segment, every following binary
// message is a media segment.
type MSEAdapter struct {
	logger *zap.SugaredLogger

	target  ports.Target
	surface ports.Surface

	events    chan ports.AdapterEvent
	done      chan struct{}
	closeOnce sync.Once

	mu sync.Mutex
	ws *websocket.Conn
}

func NewMSEAdapter(logger *zap.SugaredLogger) *MSEAdapter {
	return &MSEAdapter{
		logger: logger,
		events: make(chan ports.AdapterEvent, 4),
		done:   make(chan struct{}),
	}
}

func (a *MSEAdapter) Protocol() domain.Protocol { return domain.ProtocolMSE }

func (a *MSEAdapter) Configure(target ports.Target, surface ports.Surface, _ domain.TrackSelection) error {
	a.target = target
	if err := surface.Bind(a.Protocol()); err != nil {
		return err
	}
	a.surface = surface
	return nil
}

func (a *MSEAdapter) Events() <-chan ports.AdapterEvent { return a.events }

// Start dials the segment socket and blocks until the initialization segment
// arrives. Segment delivery continues in the background; a socket error after
// that point is reported as a disconnect.
func (a *MSEAdapter) Start(ctx context.Context) error {
	wsURL, err := socketURL(a.target, "mse")
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("segment socket dial: %w", err)
	}

	a.mu.Lock()
	a.ws = conn
	a.mu.Unlock()

	first := make(chan error, 1)
	go a.readSegments(conn, first)

	select {
	case err := <-first:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *MSEAdapter) readSegments(conn *websocket.Conn, first chan<- error) {
	init := false
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-a.done:
				return
			default:
			}
			if !init {
				first <- fmt.Errorf("segment socket read: %w", err)
				return
			}
			a.emit(ports.AdapterEvent{Type: ports.AdapterDisconnected, Reason: err.Error()})
			return
		}
		if msgType != websocket.BinaryMessage {
			// text frames carry codec metadata; nothing to render
			a.logger.Debugw("segment socket text message", "payload", string(data))
			continue
		}

		kind := domain.FrameVideo
		if !init {
			kind = domain.FrameInit
		}
		frame := domain.Frame{Kind: kind, Data: data, Timestamp: time.Now()}
		if err := a.surface.WriteFrame(frame); err != nil {
			if !init {
				first <- fmt.Errorf("surface write: %w", err)
				return
			}
			a.emit(ports.AdapterEvent{Type: ports.AdapterDisconnected, Reason: err.Error()})
			return
		}
		if !init {
			init = true
			first <- nil
		}
	}
}

func (a *MSEAdapter) emit(ev ports.AdapterEvent) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

func (a *MSEAdapter) Close() error {
	a.closeOnce.Do(func() {
		close(a.done)
		a.mu.Lock()
		ws := a.ws
		a.ws = nil
		a.mu.Unlock()
		if ws != nil {
			ws.Close()
		}
		if a.surface != nil {
			a.surface.Release()
		}
	})
	return nil
}
