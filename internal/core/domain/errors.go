package domain

import "errors"

var (
	ErrNoProtocols        = errors.New("no candidate protocols")
	ErrSurfaceUnavailable = errors.New("rendering surface unavailable")
	ErrSurfaceBound       = errors.New("surface already bound")
	ErrAllProtocolsFailed = errors.New("all candidate protocols failed")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrMonitorNotFound    = errors.New("monitor not found")
	ErrGatewayUnreachable = errors.New("gateway unreachable")
	ErrTokenExpired       = errors.New("access token expired")
)
