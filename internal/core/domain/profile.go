package domain

import "time"

// Profile is a saved server connection: one surveillance gateway plus the
// viewer preferences used when connecting to its streams.
type Profile struct {
	ID             ProfileID  `json:"id"`
	Name           string     `json:"name"`
	GatewayURL     string     `json:"gateway_url"`
	Token          string     `json:"token,omitempty"`
	Protocols      []Protocol `json:"protocols,omitempty"`
	EnableFallback bool       `json:"enable_fallback"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Request builds a ConnectionRequest for one stream using this profile's
// gateway and preferences.
func (p *Profile) Request(streamID StreamID, tracks TrackSelection) *ConnectionRequest {
	req := &ConnectionRequest{
		GatewayURL:     p.GatewayURL,
		StreamID:       streamID,
		Token:          p.Token,
		Tracks:         tracks,
		Protocols:      append([]Protocol(nil), p.Protocols...),
		EnableFallback: p.EnableFallback,
	}
	req.Normalize()
	return req
}
