package services

import (
	"time"

	"camlink/internal/core/domain"
)

// ConnectionMetrics receives connection lifecycle signals from the
// controller. Implemented by the Prometheus collector; a nil value disables
// reporting.
type ConnectionMetrics interface {
	AttemptStarted(p domain.Protocol)
	Connected(p domain.Protocol, elapsed time.Duration)
	AttemptFailed(p domain.Protocol)
	FallbackAdvanced(from, to domain.Protocol)
	Exhausted()
	StateChanged(s domain.ConnectionState)
}

type nopMetrics struct{}

func (nopMetrics) AttemptStarted(domain.Protocol)           {}
func (nopMetrics) Connected(domain.Protocol, time.Duration) {}
func (nopMetrics) AttemptFailed(domain.Protocol)            {}
func (nopMetrics) FallbackAdvanced(_, _ domain.Protocol)    {}
func (nopMetrics) Exhausted()                               {}
func (nopMetrics) StateChanged(domain.ConnectionState)      {}
