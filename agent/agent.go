// Package agent implements the per-node rook agent: a reconnecting control
// session to the cluster master, a registry of supervised processes, and the
// JSON-RPC method table the master drives them through.
package agent

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/creachadair/jrpc2/handler"
)

const defaultHeartbeatInterval = 10 * time.Second

type Agent struct {
	ctx    context.Context
	logger *slog.Logger
	name   string

	registry *Registry
	methods  handler.Map
	monitor  *Monitor

	hbInterval time.Duration
	hbOnce     sync.Once

	mu      sync.Mutex
	session *Session
	addr    string
}

type Option func(*Agent)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithName overrides the display name of the agent's own process record.
func WithName(name string) Option {
	return func(a *Agent) { a.name = name }
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(a *Agent) { a.hbInterval = d }
}

// New constructs an agent with its protected self record registered. The
// agent does not touch the network until Connect is called.
func New(ctx context.Context, opts ...Option) *Agent {
	a := &Agent{
		ctx:        ctx,
		logger:     slog.Default(),
		name:       defaultAgentName(),
		hbInterval: defaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.registry = NewRegistry(a.name)
	a.methods = a.methodTable()
	a.monitor = newMonitor(a)
	return a
}

// Connect establishes the session to the master and starts the heartbeat
// loop. The loop is started at most once per agent and keeps running after a
// disconnect; it is what drives reconnection to the same address. Fails with
// ErrAlreadyConnected while a session exists.
func (a *Agent) Connect(host string, port int) error {
	a.mu.Lock()
	if a.session != nil {
		a.mu.Unlock()
		return ErrAlreadyConnected
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	a.addr = addr
	a.mu.Unlock()

	a.hbOnce.Do(func() {
		go a.monitor.run(a.ctx)
	})

	return a.connect(addr)
}

// connect dials addr and installs the resulting session. Used both by
// Connect and by the monitor's reconnection path.
func (a *Agent) connect(addr string) error {
	s, err := DialSession(a.ctx, addr, a.methods, a.logger)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.session != nil {
		a.mu.Unlock()
		s.Close()
		return ErrAlreadyConnected
	}
	a.session = s
	a.mu.Unlock()

	a.logger.Info("connected to master", slog.String("addr", addr), slog.String("session", s.ID()))

	go func() {
		<-s.Done()
		a.mu.Lock()
		if a.session == s {
			a.session = nil
		}
		a.mu.Unlock()
		a.logger.Warn("session lost", slog.String("session", s.ID()))
	}()

	return nil
}

func (a *Agent) currentSession() *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *Agent) lastAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Registry exposes the agent's process registry.
func (a *Agent) Registry() *Registry { return a.registry }

// Close tears down the active session, if any. The heartbeat loop is bound
// to the agent's context, not to the session.
func (a *Agent) Close() error {
	if s := a.currentSession(); s != nil {
		s.Close()
	}
	return nil
}

func defaultAgentName() string {
	exe, err := os.Executable()
	if err != nil {
		return "rook-agent"
	}
	return filepath.Base(exe)
}
