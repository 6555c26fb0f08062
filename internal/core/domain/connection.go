package domain

import (
	"strings"
	"time"
)

type StreamID string
type ProfileID string
type MonitorID string

// Protocol identifies one live-stream transport supported by the gateway.
type Protocol string

const (
	ProtocolWebRTC Protocol = "webrtc"
	ProtocolMSE    Protocol = "mse"
	ProtocolHLS    Protocol = "hls"
	ProtocolMJPEG  Protocol = "mjpeg"
)

// DefaultProtocolOrder returns the built-in fallback ladder, quality-descending
// and compatibility-ascending: peer-to-peer media first, image polling last.
func DefaultProtocolOrder() []Protocol {
	return []Protocol{ProtocolWebRTC, ProtocolMSE, ProtocolHLS, ProtocolMJPEG}
}

// ParseProtocol converts a config/user supplied name into a Protocol.
func ParseProtocol(s string) (Protocol, bool) {
	switch Protocol(strings.ToLower(strings.TrimSpace(s))) {
	case ProtocolWebRTC:
		return ProtocolWebRTC, true
	case ProtocolMSE:
		return ProtocolMSE, true
	case ProtocolHLS:
		return ProtocolHLS, true
	case ProtocolMJPEG:
		return ProtocolMJPEG, true
	}
	return "", false
}

// ConnectionState is the externally observable state of one stream connection.
type ConnectionState string

const (
	StateIdle         ConnectionState = "idle"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateError        ConnectionState = "error"
)

// TrackSelection names the media tracks the viewer wants from the gateway.
type TrackSelection struct {
	Video bool
	Audio bool
}

// ConnectionRequest is the immutable input for one connection cycle. A new
// request supersedes and cancels any in-flight attempt.
type ConnectionRequest struct {
	GatewayURL     string
	StreamID       StreamID
	Token          string
	Tracks         TrackSelection
	Protocols      []Protocol
	EnableFallback bool
}

// Normalize fills in defaults the caller left unset. A nil protocol list
// means "use the default ladder"; an explicitly empty list is preserved so
// the controller can reject it.
func (r *ConnectionRequest) Normalize() {
	if r.Protocols == nil {
		r.Protocols = DefaultProtocolOrder()
	}
	if !r.Tracks.Video && !r.Tracks.Audio {
		r.Tracks = TrackSelection{Video: true, Audio: true}
	}
}

// Equal reports whether two requests target the same stream with the same
// parameters. Used by the controller to ignore duplicate Start calls.
func (r *ConnectionRequest) Equal(o *ConnectionRequest) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.GatewayURL != o.GatewayURL || r.StreamID != o.StreamID ||
		r.Token != o.Token || r.Tracks != o.Tracks ||
		r.EnableFallback != o.EnableFallback ||
		len(r.Protocols) != len(o.Protocols) {
		return false
	}
	for i := range r.Protocols {
		if r.Protocols[i] != o.Protocols[i] {
			return false
		}
	}
	return true
}

// ConnectionSnapshot is the controller state exposed to UI layers.
type ConnectionSnapshot struct {
	State      ConnectionState `json:"state"`
	Protocol   Protocol        `json:"protocol,omitempty"`
	Error      string          `json:"error,omitempty"`
	Generation uint64          `json:"generation"`
	Since      time.Time       `json:"since"`
}
