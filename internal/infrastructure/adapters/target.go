package adapters

import (
	"fmt"
	"net/url"
	"strings"

	"camlink/internal/core/ports"
)

// Gateway endpoint layout. The token, when present, is appended as a query
// parameter; an absent token leaves the URL untouched.
const (
	signalingPath = "/api/ws"
	hlsPath       = "/api/stream.m3u8"
	mjpegPath     = "/api/stream.mjpeg"
)

// socketURL resolves the websocket signaling endpoint for a target. mode
// distinguishes the webrtc signaling channel from the mse segment stream.
func socketURL(t ports.Target, mode string) (string, error) {
	u, err := url.Parse(t.URL)
	if err != nil {
		return "", fmt.Errorf("invalid gateway url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported gateway scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + signalingPath

	q := u.Query()
	q.Set("src", string(t.StreamID))
	if mode != "" {
		q.Set("mode", mode)
	}
	if t.Token != "" {
		q.Set("token", t.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// mediaURL resolves a direct HTTP media endpoint (HLS playlist, MJPEG
// stream) for a target.
func mediaURL(t ports.Target, endpoint string) (string, error) {
	u, err := url.Parse(t.URL)
	if err != nil {
		return "", fmt.Errorf("invalid gateway url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported gateway scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + endpoint

	q := u.Query()
	q.Set("src", string(t.StreamID))
	if t.Token != "" {
		q.Set("token", t.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
