package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rookery-io/rook/models"
)

// Spawn launches a process on the master's behalf.
//
// In creation mode it returns as soon as the process is launched and
// registered. In execution mode it stays pending until the process exits:
// stdout/stderr are relayed onto labeled sub-streams when labels were given,
// an onProcessCreated notification is pushed once the launch has succeeded,
// and the final result fails if the process exited non-zero or with a
// runtime error. In both modes the exit is relayed to the master with
// onProcessEnd after the record has been removed from the registry.
func (a *Agent) Spawn(ctx context.Context, req *models.SpawnRequest) (*models.ProcessView, error) {
	if req == nil || req.Command == "" {
		return nil, &UsageError{Reason: "command is required"}
	}
	mode := req.CompletionMode
	if mode == "" {
		mode = models.CompletionCreation
	}
	if !mode.Valid() {
		return nil, &UsageError{Reason: fmt.Sprintf("unsupported completion mode %q", req.CompletionMode)}
	}

	name := req.Name
	if name == "" {
		name = filepath.Base(req.Command)
	}

	cmd := exec.Command(req.Command, req.Args...)
	cmd.Dir = req.Dir
	if len(req.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range req.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var relays []*relayWriter
	if mode == models.CompletionExecution {
		if req.StdoutLabel != "" {
			w := a.newRelay(req.StdoutLabel)
			cmd.Stdout = w
			relays = append(relays, w)
		}
		if req.StderrLabel != "" {
			w := a.newRelay(req.StderrLabel)
			cmd.Stderr = w
			relays = append(relays, w)
		}
	}

	if err := cmd.Start(); err != nil {
		for _, w := range relays {
			w.Close()
		}
		return nil, &LaunchError{Command: req.Command, Err: err}
	}

	p := &Process{
		name:   name,
		pid:    cmd.Process.Pid,
		cmd:    cmd,
		coreID: req.CoreID,
		mode:   mode,
		relays: relays,
	}
	if err := a.registry.Add(p); err != nil {
		a.abandonLaunch(cmd, relays)
		return nil, fmt.Errorf("register pid %d: %w", p.pid, err)
	}
	a.logger.Debug("process started",
		slog.String("name", name),
		slog.Int("pid", p.pid),
		slog.String("mode", string(mode)))

	done := make(chan error, 1)

	if mode == models.CompletionCreation {
		go a.await(p, done)
		view := p.View()
		return &view, nil
	}

	// the created event goes out before the exit observer starts, so it can
	// never trail onProcessEnd on the wire and never carries exit state
	if s := a.currentSession(); s != nil {
		if err := s.Notify(ctx, models.MethodProcessCreated, p.View()); err != nil {
			a.logger.Warn("failed to send creation notification",
				slog.Int("pid", p.pid), slog.Any("err", err))
		}
	}
	go a.await(p, done)

	if err := <-done; err != nil {
		return nil, err
	}
	view := p.View()
	return &view, nil
}

// abandonLaunch kills and reaps a process whose record could not be
// registered, so the child is never leaked as a zombie.
func (a *Agent) abandonLaunch(cmd *exec.Cmd, relays []*relayWriter) {
	for _, w := range relays {
		w.Close()
	}
	if err := cmd.Process.Kill(); err != nil {
		a.logger.Warn("failed to kill unregistered process",
			slog.Int("pid", cmd.Process.Pid), slog.Any("err", err))
	}
	go func() { _ = cmd.Wait() }()
}

// await reaps the process, removes its record and relays the exit to the
// master. Removal always happens before the onProcessEnd notification so the
// master never sees a completed process in getProcesses output. Notification
// failures are logged, never propagated.
func (a *Agent) await(p *Process, done chan<- error) {
	werr := p.cmd.Wait()
	code := p.cmd.ProcessState.ExitCode()
	p.setExit(code, werr)
	p.closeRelays()

	if !a.registry.Remove(p.pid) {
		a.logger.Warn("process record already removed", slog.Int("pid", p.pid))
	}
	a.logger.Debug("process exited", slog.Int("pid", p.pid), slog.Int("code", code))

	if s := a.currentSession(); s != nil {
		if err := s.Notify(context.Background(), models.MethodProcessEnd, p.View()); err != nil {
			a.logger.Warn("failed to relay process end",
				slog.Int("pid", p.pid), slog.Any("err", err))
		}
	} else {
		a.logger.Debug("no session; dropping process end notification", slog.Int("pid", p.pid))
	}

	if werr != nil {
		done <- &ExitError{Pid: p.pid, Code: code, Err: werr}
		return
	}
	done <- nil
}

// Kill delivers a signal to a tracked process. The record stays in the
// registry; only the exit observer removes records.
func (a *Agent) Kill(req *models.KillRequest) (*models.ProcessView, error) {
	if req == nil || req.Pid == 0 {
		return nil, &UsageError{Reason: "pid is required"}
	}
	sig, err := parseSignal(req.Signal)
	if err != nil {
		return nil, err
	}

	p := a.registry.Get(req.Pid)
	if p == nil {
		return nil, fmt.Errorf("pid %d: %w", req.Pid, ErrProcessNotFound)
	}
	if p.Protected() {
		return nil, fmt.Errorf("pid %d: %w", req.Pid, ErrProtectedProcess)
	}
	h := p.Handle()
	if h == nil {
		return nil, fmt.Errorf("pid %d: %w", req.Pid, ErrMissingHandle)
	}

	if err := h.Signal(sig); err != nil {
		return nil, fmt.Errorf("signal pid %d: %w", req.Pid, err)
	}
	a.logger.Debug("signal delivered", slog.Int("pid", req.Pid), slog.String("signal", sig.String()))

	view := p.View()
	return &view, nil
}

var signalsByName = map[string]syscall.Signal{
	"SIGHUP":  syscall.SIGHUP,
	"SIGINT":  syscall.SIGINT,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGKILL": syscall.SIGKILL,
	"SIGUSR1": syscall.SIGUSR1,
	"SIGUSR2": syscall.SIGUSR2,
	"SIGTERM": syscall.SIGTERM,
	"SIGSTOP": syscall.SIGSTOP,
	"SIGCONT": syscall.SIGCONT,
}

// parseSignal accepts "TERM", "SIGTERM" or a numeric signal; empty defaults
// to SIGTERM.
func parseSignal(name string) (syscall.Signal, error) {
	if name == "" {
		return syscall.SIGTERM, nil
	}
	upper := strings.ToUpper(name)
	if !strings.HasPrefix(upper, "SIG") {
		upper = "SIG" + upper
	}
	if sig, ok := signalsByName[upper]; ok {
		return sig, nil
	}
	if n, err := strconv.Atoi(name); err == nil && n > 0 {
		return syscall.Signal(n), nil
	}
	return 0, &UsageError{Reason: fmt.Sprintf("unknown signal %q", name)}
}

// relayWriter forwards child process output onto a labeled sub-stream. A
// write failure detaches the stream and subsequent output is discarded;
// relay errors never reach the spawn caller.
type relayWriter struct {
	logger *slog.Logger
	label  string
	dst    io.WriteCloser
}

// newRelay opens the labeled sub-stream now, while the session exists. When
// there is no session or the open fails, the relay starts detached.
func (a *Agent) newRelay(label string) *relayWriter {
	w := &relayWriter{logger: a.logger, label: label}
	s := a.currentSession()
	if s == nil {
		a.logger.Warn("no session; discarding process output", slog.String("stream", label))
		return w
	}
	st, err := s.OpenStream(label)
	if err != nil {
		a.logger.Warn("failed to open output stream", slog.String("stream", label), slog.Any("err", err))
		return w
	}
	w.dst = st
	return w
}

func (w *relayWriter) Write(p []byte) (int, error) {
	if w.dst == nil {
		return len(p), nil
	}
	if _, err := w.dst.Write(p); err != nil {
		w.logger.Warn("output relay failed; detaching stream",
			slog.String("stream", w.label), slog.Any("err", err))
		w.dst.Close()
		w.dst = nil
	}
	return len(p), nil
}

func (w *relayWriter) Close() {
	if w.dst != nil {
		w.dst.Close()
		w.dst = nil
	}
}
