package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"camlink/internal/core/domain"
	"camlink/internal/core/ports"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// connectionController owns the protocol fallback ladder for one stream: it
// drives one adapter at a time through the priority-ordered protocol list,
// advancing to the next protocol on connect failure and surfacing the result
// through an observable state machine.
//
// Concurrency model: all state lives behind one mutex; adapters report
// success, failure and disconnects from their own goroutines, and every such
// callback carries the generation it belongs to. A callback whose generation
// no longer matches the controller's is from a superseded attempt and is
// discarded without any state change. Stop and Retry bump the generation
// before teardown begins, so already-scheduled callbacks from the old attempt
// become no-ops even if they fire mid-teardown.
type connectionController struct {
	factory ports.AdapterFactory
	metrics ConnectionMetrics
	logger  *zap.SugaredLogger

	mu           sync.Mutex
	surface      ports.Surface
	request      *domain.ConnectionRequest
	state        domain.ConnectionState
	protocol     domain.Protocol
	errMsg       string
	since        time.Time
	generation   uint64
	protocolIdx  int
	attemptStart time.Time
	active       ports.StreamAdapter
	cancel       context.CancelFunc
	listeners    []func(domain.ConnectionSnapshot)
	pending      []domain.ConnectionSnapshot
	notifying    bool
}

// NewConnectionController creates a controller in the idle state. metrics may
// be nil.
func NewConnectionController(
	factory ports.AdapterFactory,
	metrics ConnectionMetrics,
	logger *zap.SugaredLogger,
) ports.ConnectionController {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &connectionController{
		factory: factory,
		metrics: metrics,
		logger:  logger,
		state:   domain.StateIdle,
		since:   time.Now(),
	}
}

// SetSurface supplies the rendering surface. It does not begin connecting on
// its own: after a Start that was deferred for lack of a surface, the caller
// re-invokes Start.
func (c *connectionController) SetSurface(surface ports.Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface = surface
}

func (c *connectionController) Start(req *domain.ConnectionRequest) {
	if req == nil {
		return
	}
	req.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Duplicate Start with the same request while an attempt is live is a
	// no-op; error and idle states may always be restarted.
	if c.request.Equal(req) && c.state != domain.StateError && c.state != domain.StateIdle {
		return
	}

	c.invalidateLocked()
	c.teardownLocked()
	c.request = req

	if c.surface == nil {
		// Surface not yet available: stay idle, construct nothing. The
		// caller re-invokes Start once the surface exists.
		c.logger.Debugw("start deferred, no rendering surface",
			"stream_id", req.StreamID,
		)
		c.setStateLocked(domain.StateIdle, "", "")
		return
	}
	if len(req.Protocols) == 0 {
		c.setStateLocked(domain.StateError, "", domain.ErrNoProtocols.Error())
		return
	}

	c.protocolIdx = 0
	c.beginAttemptLocked()
}

func (c *connectionController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
	c.teardownLocked()
	c.setStateLocked(domain.StateIdle, "", "")
}

// Retry discards the current attempt and restarts from the head of the
// protocol list, preserving the original request.
func (c *connectionController) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidateLocked()
	c.teardownLocked()
	if c.request == nil || c.surface == nil {
		c.setStateLocked(domain.StateIdle, "", "")
		return
	}
	c.protocolIdx = 0
	c.beginAttemptLocked()
}

func (c *connectionController) Snapshot() domain.ConnectionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.ConnectionSnapshot{
		State:      c.state,
		Protocol:   c.protocol,
		Error:      c.errMsg,
		Generation: c.generation,
		Since:      c.since,
	}
}

func (c *connectionController) OnChange(fn func(domain.ConnectionSnapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// beginAttemptLocked constructs and launches the adapter for the current
// protocol index. Construction or configuration errors take the same
// fallback-or-error branch as an adapter-reported connect failure.
func (c *connectionController) beginAttemptLocked() {
	c.generation++
	gen := c.generation
	proto := c.request.Protocols[c.protocolIdx]
	c.attemptStart = time.Now()
	c.setStateLocked(domain.StateConnecting, proto, "")
	c.metrics.AttemptStarted(proto)

	c.logger.Infow("attempting protocol",
		"stream_id", c.request.StreamID,
		"protocol", proto,
		"attempt", c.protocolIdx+1,
		"of", len(c.request.Protocols),
	)

	adapter, err := c.newAdapter(proto)
	if err != nil {
		c.advanceOrFailLocked(fmt.Errorf("%s: %w", proto, err))
		return
	}

	target := ports.Target{
		URL:      c.request.GatewayURL,
		StreamID: c.request.StreamID,
		Token:    c.request.Token,
	}
	if err := adapter.Configure(target, c.surface, c.request.Tracks); err != nil {
		adapter.Close()
		c.advanceOrFailLocked(fmt.Errorf("%s: %w", proto, err))
		return
	}

	c.active = adapter
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.runAttempt(ctx, gen, adapter)
}

// newAdapter folds factory panics into the ordinary failure path.
func (c *connectionController) newAdapter(proto domain.Protocol) (adapter ports.StreamAdapter, err error) {
	defer func() {
		if r := recover(); r != nil {
			adapter, err = nil, fmt.Errorf("adapter construction panic: %v", r)
		}
	}()
	return c.factory.New(proto)
}

// runAttempt executes one attempt outside the lock: it watches the adapter's
// event channel and blocks on Start. Every outcome is reported back through
// the generation-guarded handlers.
func (c *connectionController) runAttempt(ctx context.Context, gen uint64, adapter ports.StreamAdapter) {
	tracer := otel.Tracer("camlink/connection")
	ctx, span := tracer.Start(ctx, "stream.connect")
	span.SetAttributes(
		attribute.String("protocol", string(adapter.Protocol())),
	)
	defer span.End()

	go c.watchEvents(ctx, gen, adapter)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("adapter panic: %v", r)
			}
		}()
		return adapter.Start(ctx)
	}()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.handleFailure(gen, fmt.Errorf("%s: %w", adapter.Protocol(), err))
		return
	}
	span.SetStatus(codes.Ok, "")
	c.handleConnected(gen)
}

// watchEvents forwards adapter events until the attempt is torn down. The
// event channel is never closed by the adapter; cancellation of the attempt
// context is the only exit.
func (c *connectionController) watchEvents(ctx context.Context, gen uint64, adapter ports.StreamAdapter) {
	for {
		select {
		case ev, ok := <-adapter.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case ports.AdapterConnected:
				c.handleConnected(gen)
			case ports.AdapterDisconnected:
				c.handleDisconnected(gen, ev.Reason)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *connectionController) handleConnected(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return // stale attempt
	}
	if c.state == domain.StateConnected {
		return
	}
	elapsed := time.Since(c.attemptStart)
	c.metrics.Connected(c.protocol, elapsed)
	c.logger.Infow("stream connected",
		"stream_id", c.request.StreamID,
		"protocol", c.protocol,
		"elapsed", elapsed,
	)
	c.setStateLocked(domain.StateConnected, c.protocol, "")
}

// handleDisconnected reports a post-success drop. Disconnection is not a
// fallback trigger: the ladder only advances on attempts that never
// connected.
func (c *connectionController) handleDisconnected(gen uint64, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.logger.Warnw("stream disconnected",
		"stream_id", c.request.StreamID,
		"protocol", c.protocol,
		"reason", reason,
	)
	c.setStateLocked(domain.StateDisconnected, c.protocol, "")
}

func (c *connectionController) handleFailure(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.advanceOrFailLocked(err)
}

// advanceOrFailLocked releases the failed attempt and either moves to the
// next protocol or surfaces the terminal error. The previous adapter's
// resources are fully released before the next adapter is constructed.
func (c *connectionController) advanceOrFailLocked(err error) {
	failed := c.request.Protocols[c.protocolIdx]
	c.teardownLocked()
	c.metrics.AttemptFailed(failed)

	last := c.protocolIdx+1 >= len(c.request.Protocols)
	if !c.request.EnableFallback || last {
		c.metrics.Exhausted()
		c.logger.Errorw("stream connection failed",
			"stream_id", c.request.StreamID,
			"protocol", failed,
			"fallback", c.request.EnableFallback,
			"error", err,
		)
		c.setStateLocked(domain.StateError, failed,
			fmt.Sprintf("%s: %s", domain.ErrAllProtocolsFailed, err))
		return
	}

	c.protocolIdx++
	next := c.request.Protocols[c.protocolIdx]
	c.metrics.FallbackAdvanced(failed, next)
	c.logger.Warnw("protocol failed, falling back",
		"stream_id", c.request.StreamID,
		"failed", failed,
		"next", next,
		"error", err,
	)
	c.beginAttemptLocked()
}

// invalidateLocked synchronously marks the in-flight generation stale so any
// already-scheduled callback from it becomes a no-op.
func (c *connectionController) invalidateLocked() {
	c.generation++
}

// teardownLocked cancels pending work and disposes the active adapter, if
// any. After it returns no adapter resource is held.
func (c *connectionController) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.active != nil {
		if err := c.active.Close(); err != nil {
			c.logger.Warnw("adapter close",
				"protocol", c.active.Protocol(),
				"error", err,
			)
		}
		c.active = nil
	}
}

func (c *connectionController) setStateLocked(state domain.ConnectionState, proto domain.Protocol, errMsg string) {
	c.state = state
	c.protocol = proto
	c.errMsg = errMsg
	c.since = time.Now()
	c.metrics.StateChanged(state)

	snap := domain.ConnectionSnapshot{
		State:      c.state,
		Protocol:   c.protocol,
		Error:      c.errMsg,
		Generation: c.generation,
		Since:      c.since,
	}
	// Snapshots are queued and drained by a single goroutine so listeners
	// observe state changes in emission order.
	c.pending = append(c.pending, snap)
	if !c.notifying {
		c.notifying = true
		go c.drainNotifications()
	}
}

// drainNotifications delivers queued snapshots one at a time, outside the
// lock so listeners may call back into the controller.
func (c *connectionController) drainNotifications() {
	c.mu.Lock()
	for len(c.pending) > 0 {
		snap := c.pending[0]
		c.pending = c.pending[1:]
		listeners := append(([]func(domain.ConnectionSnapshot))(nil), c.listeners...)
		c.mu.Unlock()
		for _, fn := range listeners {
			fn(snap)
		}
		c.mu.Lock()
	}
	c.notifying = false
	c.mu.Unlock()
}
