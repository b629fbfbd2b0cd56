package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/rookery-io/rook/models"
)

// heartbeatLatencyThreshold is advisory: round trips above it are logged,
// never failed or retried.
const heartbeatLatencyThreshold = 500 * time.Millisecond

type monitorState int

const (
	stateDetached monitorState = iota
	stateAttached
)

func (s monitorState) String() string {
	if s == stateAttached {
		return "attached"
	}
	return "detached"
}

// Monitor drives the heartbeat and the reconnection path. While a session
// exists it round-trips a timestamp to the master on every tick; while none
// does it attempts one reconnect per tick to the last-connected address. The
// fixed tick interval is the sole retry cadence.
type Monitor struct {
	agent     *Agent
	threshold time.Duration
	state     monitorState
}

func newMonitor(a *Agent) *Monitor {
	return &Monitor{
		agent:     a,
		threshold: heartbeatLatencyThreshold,
		state:     stateDetached,
	}
}

// run ticks until the agent's context is cancelled. Started at most once per
// agent; it outlives any individual session.
func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.agent.hbInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick performs one heartbeat or reconnection attempt, depending on whether
// a session currently exists. Exposed so tests can drive the monitor without
// wall-clock timers.
func (m *Monitor) Tick(ctx context.Context) {
	s := m.agent.currentSession()
	if s == nil {
		m.transition(stateDetached)
		m.reconnect()
		return
	}
	m.transition(stateAttached)
	m.heartbeat(ctx, s)
}

func (m *Monitor) transition(next monitorState) {
	if m.state == next {
		return
	}
	m.agent.logger.Debug("monitor state changed",
		slog.String("from", m.state.String()), slog.String("to", next.String()))
	m.state = next
}

func (m *Monitor) reconnect() {
	addr := m.agent.lastAddr()
	if addr == "" {
		return
	}
	m.agent.logger.Info("attempting reconnect", slog.String("addr", addr))
	if err := m.agent.connect(addr); err != nil {
		m.agent.logger.Warn("reconnect failed", slog.String("addr", addr), slog.Any("err", err))
	}
}

func (m *Monitor) heartbeat(ctx context.Context, s *Session) {
	hb := models.Heartbeat{Timestamp: time.Now().UnixMilli()}
	start := time.Now()

	var echo models.Heartbeat
	if err := s.Call(ctx, models.MethodHeartbeat, hb, &echo); err != nil {
		// an unresponsive master means the session is dead even if the
		// socket is not; tear it down so the next tick reconnects
		m.agent.logger.Warn("heartbeat failed; tearing down session",
			slog.String("session", s.ID()), slog.Any("err", err))
		s.Close()
		return
	}

	if echo.Timestamp != hb.Timestamp {
		m.agent.logger.Warn("heartbeat echo mismatch",
			slog.Int64("sent", hb.Timestamp), slog.Int64("received", echo.Timestamp))
	}
	if rtt := time.Since(start); rtt > m.threshold {
		m.agent.logger.Warn("heartbeat latency above threshold",
			slog.Duration("rtt", rtt), slog.Duration("threshold", m.threshold))
	}
}
