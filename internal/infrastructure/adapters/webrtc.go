package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"camlink/internal/core/domain"
	"camlink/internal/core/ports"

	"github.com/gorilla/websocket"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// pliInterval is how often a keyframe request is sent for the video track.
const pliInterval = 2 * time.Second

// signalMessage is the JSON envelope exchanged with the gateway's signaling
// socket.
type signalMessage struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// WebRTCAdapter negotiates a peer connection over the gateway's signaling
// websocket and delivers depacketized RTP payloads to the surface.
type WebRTCAdapter struct {
	iceServers []webrtc.ICEServer
	logger     *zap.SugaredLogger

	target  ports.Target
	surface ports.Surface
	tracks  domain.TrackSelection

	events    chan ports.AdapterEvent
	connected chan struct{}
	failed    chan error

	mu        sync.Mutex
	pc        *webrtc.PeerConnection
	ws        *websocket.Conn
	wasUp     bool
	closeOnce sync.Once
	connOnce  sync.Once
	done      chan struct{}
}

func NewWebRTCAdapter(iceServers []webrtc.ICEServer, logger *zap.SugaredLogger) *WebRTCAdapter {
	return &WebRTCAdapter{
		iceServers: iceServers,
		logger:     logger,
		events:     make(chan ports.AdapterEvent, 4),
		connected:  make(chan struct{}),
		failed:     make(chan error, 1),
		done:       make(chan struct{}),
	}
}

func (a *WebRTCAdapter) Protocol() domain.Protocol { return domain.ProtocolWebRTC }

func (a *WebRTCAdapter) Configure(target ports.Target, surface ports.Surface, tracks domain.TrackSelection) error {
	a.target = target
	a.tracks = tracks
	if err := surface.Bind(a.Protocol()); err != nil {
		return err
	}
	a.surface = surface
	return nil
}

func (a *WebRTCAdapter) Events() <-chan ports.AdapterEvent { return a.events }

// Start dials the signaling socket, runs the offer/answer exchange and blocks
// until the peer connection reaches the connected state or fails.
func (a *WebRTCAdapter) Start(ctx context.Context) error {
	wsURL, err := socketURL(a.target, "webrtc")
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("signaling dial: %w", err)
	}

	pc, err := a.newPeerConnection()
	if err != nil {
		conn.Close()
		return err
	}

	a.mu.Lock()
	a.ws = conn
	a.pc = pc
	a.mu.Unlock()

	pc.OnTrack(a.handleTrack)
	pc.OnConnectionStateChange(a.handleConnectionState)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	// Wait for ICE gathering so the offer carries all host candidates; the
	// gateway answers with its own candidates inline.
	select {
	case <-gathered:
	case <-ctx.Done():
		return ctx.Err()
	}

	local := pc.LocalDescription()
	if err := conn.WriteJSON(signalMessage{Type: "webrtc/offer", Value: local.SDP}); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}

	go a.readSignaling(conn, pc)

	select {
	case <-a.connected:
		return nil
	case err := <-a.failed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *WebRTCAdapter) newPeerConnection() (*webrtc.PeerConnection, error) {
	api := webrtc.NewAPI(webrtc.WithSettingEngine(webrtc.SettingEngine{}))
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: a.iceServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	if a.tracks.Video {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo,
			webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly},
		); err != nil {
			pc.Close()
			return nil, err
		}
	}
	if a.tracks.Audio {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio,
			webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly},
		); err != nil {
			pc.Close()
			return nil, err
		}
	}
	return pc, nil
}

// readSignaling consumes answer and trickle candidates from the gateway. It
// runs until the socket closes.
func (a *WebRTCAdapter) readSignaling(conn *websocket.Conn, pc *webrtc.PeerConnection) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-a.done:
			default:
				a.fail(fmt.Errorf("signaling read: %w", err))
			}
			return
		}

		var msg signalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			a.logger.Warnw("malformed signaling message", "error", err)
			continue
		}

		switch msg.Type {
		case "webrtc/answer":
			answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: msg.Value}
			if err := pc.SetRemoteDescription(answer); err != nil {
				a.fail(fmt.Errorf("set remote description: %w", err))
				return
			}
		case "webrtc/candidate":
			if err := pc.AddICECandidate(webrtc.ICECandidateInit{Candidate: msg.Value}); err != nil {
				a.logger.Warnw("add ICE candidate", "error", err)
			}
		case "error":
			a.fail(fmt.Errorf("gateway: %s", msg.Value))
			return
		}
	}
}

func (a *WebRTCAdapter) handleConnectionState(state webrtc.PeerConnectionState) {
	a.logger.Debugw("peer connection state", "state", state)
	switch state {
	case webrtc.PeerConnectionStateConnected:
		a.connOnce.Do(func() {
			a.mu.Lock()
			a.wasUp = true
			a.mu.Unlock()
			close(a.connected)
		})
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected,
		webrtc.PeerConnectionStateClosed:
		a.mu.Lock()
		up := a.wasUp
		a.mu.Unlock()
		if up {
			a.emit(ports.AdapterEvent{Type: ports.AdapterDisconnected, Reason: state.String()})
		} else {
			a.fail(fmt.Errorf("peer connection %s", state))
		}
	}
}

// handleTrack forwards incoming RTP payloads to the surface and keeps
// requesting keyframes for the video track.
func (a *WebRTCAdapter) handleTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	kind := domain.FrameAudio
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		kind = domain.FrameVideo
		go a.sendPLI(track.SSRC())
	}

	a.logger.Infow("remote track started",
		"stream_id", a.target.StreamID,
		"kind", track.Kind(),
		"codec", track.Codec().MimeType,
	)

	buf := make([]byte, 1500)
	pkt := &rtp.Packet{}
	for {
		n, _, err := track.Read(buf)
		if err != nil {
			return
		}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}
		frame := domain.Frame{Kind: kind, Data: append([]byte(nil), pkt.Payload...), Timestamp: time.Now()}
		if err := a.surface.WriteFrame(frame); err != nil {
			a.logger.Warnw("surface write", "error", err)
			return
		}
	}
}

func (a *WebRTCAdapter) sendPLI(ssrc webrtc.SSRC) {
	ticker := time.NewTicker(pliInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			a.mu.Lock()
			pc := a.pc
			a.mu.Unlock()
			if pc == nil {
				return
			}
			err := pc.WriteRTCP([]rtcp.Packet{
				&rtcp.PictureLossIndication{MediaSSRC: uint32(ssrc)},
			})
			if err != nil {
				return
			}
		}
	}
}

func (a *WebRTCAdapter) fail(err error) {
	select {
	case a.failed <- err:
	default:
	}
}

func (a *WebRTCAdapter) emit(ev ports.AdapterEvent) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

// Close releases the peer connection and signaling socket. The events channel
// stays open: pion delivers state callbacks asynchronously and a late emit
// must not hit a closed channel.
func (a *WebRTCAdapter) Close() error {
	a.closeOnce.Do(func() {
		close(a.done)
		a.mu.Lock()
		pc, ws := a.pc, a.ws
		a.pc, a.ws = nil, nil
		a.mu.Unlock()
		if pc != nil {
			pc.Close()
		}
		if ws != nil {
			ws.Close()
		}
		if a.surface != nil {
			a.surface.Release()
		}
	})
	return nil
}
