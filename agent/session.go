package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/hashicorp/yamux"
	"github.com/rs/xid"

	"github.com/rookery-io/rook/models"
)

// Session is one live control connection to the master: the dialed socket, a
// yamux multiplexer on top of it, and a JSON-RPC server bound to the control
// sub-stream. At most one Session exists per agent at a time.
//
// Sub-streams are labeled by convention: the opener writes the label as a
// single newline-terminated line before any payload bytes.
type Session struct {
	id     string
	logger *slog.Logger

	conn net.Conn
	mux  *yamux.Session
	rpc  *jrpc2.Server

	closeOnce sync.Once
	done      chan struct{}
}

// DialSession connects to the master at addr, establishes the multiplexer,
// opens the control sub-stream and starts serving the supplied method table
// over it.
func DialSession(ctx context.Context, addr string, methods jrpc2.Assigner, logger *slog.Logger) (*Session, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial master: %w", err)
	}

	cfg := yamux.DefaultConfig()
	cfg.LogOutput = io.Discard
	mux, err := yamux.Client(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("establish multiplexer: %w", err)
	}

	ctrl, err := openLabeled(mux, models.ControlStreamLabel)
	if err != nil {
		mux.Close()
		conn.Close()
		return nil, fmt.Errorf("open control stream: %w", err)
	}

	s := &Session{
		id:     xid.New().String(),
		logger: logger,
		conn:   conn,
		mux:    mux,
		done:   make(chan struct{}),
	}

	// AllowPush lets the agent issue heartbeat and process lifecycle calls
	// back to the master over the same channel.
	s.rpc = jrpc2.NewServer(methods, &jrpc2.ServerOptions{AllowPush: true}).Start(channel.Line(ctrl, ctrl))

	go s.watch()
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// watch blocks until the RPC server exits, whether from a remote close, a
// multiplexer error or a local Close, then tears the session down.
func (s *Session) watch() {
	err := s.rpc.Wait()
	s.teardown(err)
}

// teardown clears the RPC server, multiplexer and socket together so no
// partially-alive session is observable.
func (s *Session) teardown(err error) {
	s.closeOnce.Do(func() {
		s.rpc.Stop()
		s.mux.Close()
		s.conn.Close()
		close(s.done)
		if err != nil {
			s.logger.Warn("session closed", slog.String("session", s.id), slog.Any("err", err))
			return
		}
		s.logger.Debug("session closed", slog.String("session", s.id))
	})
}

// Close tears the session down locally.
func (s *Session) Close() {
	s.teardown(nil)
}

// OpenStream opens a new labeled sub-stream over the multiplexer, used to
// relay child process output to the master.
func (s *Session) OpenStream(label string) (net.Conn, error) {
	select {
	case <-s.done:
		return nil, ErrNotConnected
	default:
	}
	return openLabeled(s.mux, label)
}

// Call issues an outbound RPC to the master and unmarshals the reply into
// result when it is non-nil.
func (s *Session) Call(ctx context.Context, method string, params, result any) error {
	rsp, err := s.rpc.Callback(ctx, method, params)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	if result == nil {
		return nil
	}
	if err := rsp.UnmarshalResult(result); err != nil {
		return fmt.Errorf("decode %s reply: %w", method, err)
	}
	return nil
}

// Notify pushes a fire-and-forget notification to the master.
func (s *Session) Notify(ctx context.Context, method string, params any) error {
	return s.rpc.Notify(ctx, method, params)
}

func openLabeled(mux *yamux.Session, label string) (net.Conn, error) {
	st, err := mux.OpenStream()
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(st, label+"\n"); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
