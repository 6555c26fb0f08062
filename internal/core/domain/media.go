package domain

import "time"

// FrameKind classifies a media payload handed to the rendering surface.
type FrameKind byte

const (
	FrameInit FrameKind = iota // codec initialization segment
	FrameVideo
	FrameAudio
)

func (k FrameKind) String() string {
	switch k {
	case FrameInit:
		return "init"
	case FrameVideo:
		return "video"
	case FrameAudio:
		return "audio"
	}
	return "unknown"
}

// Frame is the uniform unit adapters deliver to a Surface: an fMP4 segment
// for mse/hls, a depacketized access unit for webrtc, a JPEG for mjpeg.
type Frame struct {
	Kind      FrameKind
	Data      []byte
	Timestamp time.Time
}
