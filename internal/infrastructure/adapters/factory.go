package adapters

import (
	"fmt"
	"net/http"
	"time"

	"camlink/internal/core/domain"
	"camlink/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Config carries per-transport tuning for the adapter factory.
type Config struct {
	ICEServers      []webrtc.ICEServer
	HLSPollInterval time.Duration
	MJPEGMaxFPS     float64
}

// Factory maps each protocol to its adapter implementation. A fresh adapter
// is constructed per attempt; adapters are single-use.
type Factory struct {
	cfg    Config
	client *http.Client
	logger *zap.SugaredLogger
}

func NewFactory(cfg Config, logger *zap.SugaredLogger) *Factory {
	return &Factory{
		cfg: cfg,
		// Segment and frame downloads; long-lived MJPEG responses carry
		// their own cancellation, so no client-level timeout.
		client: &http.Client{},
		logger: logger,
	}
}

func (f *Factory) New(protocol domain.Protocol) (ports.StreamAdapter, error) {
	switch protocol {
	case domain.ProtocolWebRTC:
		return NewWebRTCAdapter(f.cfg.ICEServers, f.logger), nil
	case domain.ProtocolMSE:
		return NewMSEAdapter(f.logger), nil
	case domain.ProtocolHLS:
		return NewHLSAdapter(f.client, f.cfg.HLSPollInterval, f.logger), nil
	case domain.ProtocolMJPEG:
		return NewMJPEGAdapter(f.client, f.cfg.MJPEGMaxFPS, f.logger), nil
	}
	return nil, fmt.Errorf("no adapter for protocol %q", protocol)
}
