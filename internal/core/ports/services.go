package ports

import (
	"context"

	"camlink/internal/core/domain"
)

// ConnectionController drives the protocol fallback ladder for one stream.
// None of its methods return an error: failures surface through the snapshot
// state machine (idle/connecting/connected/disconnected/error).
type ConnectionController interface {
	Start(req *domain.ConnectionRequest)
	Stop()
	Retry()
	SetSurface(surface Surface)
	Snapshot() domain.ConnectionSnapshot
	OnChange(fn func(domain.ConnectionSnapshot))
}

// GatewayAPI is the surveillance server's monitor/event REST surface. The
// connection controller never depends on it; it exists for the viewer layer
// to resolve stream names and browse events.
type GatewayAPI interface {
	Ping(ctx context.Context) error
	ListMonitors(ctx context.Context) ([]*domain.Monitor, error)
	GetMonitor(ctx context.Context, id domain.MonitorID) (*domain.Monitor, error)
	ListEvents(ctx context.Context, q domain.EventQuery) ([]*domain.Event, error)
}
