package ports

import (
	"context"

	"camlink/internal/core/domain"
)

// AdapterEventType is the uniform vocabulary an adapter reports in.
type AdapterEventType string

const (
	AdapterConnected    AdapterEventType = "connected"
	AdapterDisconnected AdapterEventType = "disconnected"
)

// AdapterEvent is one signal on an adapter's event channel.
type AdapterEvent struct {
	Type   AdapterEventType
	Reason string
}

// Target is the fully resolved connection destination for one transport,
// produced from the request's gateway URL, stream ID and optional token.
type Target struct {
	URL      string
	StreamID domain.StreamID
	Token    string
}

// StreamAdapter is the per-protocol glue between the connection controller
// and one transport. Adapters are stateless translators: they hold transport
// resources for a single attempt and never talk to other adapters.
//
// Lifecycle: Configure, then Start, then Close. Start blocks until playback
// is established (nil) or the attempt fails (error); post-success drops are
// reported on Events as AdapterDisconnected. Close is idempotent and must
// release every timer, socket and media handle the attempt opened. The
// events channel is never closed: transport callbacks may fire after Close,
// so a late emit must find an open channel. Consumers stop reading when they
// tear the attempt down, not on channel close.
type StreamAdapter interface {
	Protocol() domain.Protocol
	Configure(target Target, surface Surface, tracks domain.TrackSelection) error
	Start(ctx context.Context) error
	Events() <-chan AdapterEvent
	Close() error
}

// AdapterFactory constructs the adapter for one protocol. Each protocol maps
// to exactly one adapter implementation.
type AdapterFactory interface {
	New(protocol domain.Protocol) (StreamAdapter, error)
}

// Surface is the rendering sink a connected adapter writes media into. It is
// exclusively owned by the active adapter: Bind fails while another holder
// has not Released yet.
type Surface interface {
	Bind(protocol domain.Protocol) error
	WriteFrame(frame domain.Frame) error
	Release()
}
