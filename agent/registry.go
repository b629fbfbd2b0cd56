package agent

import (
	"os"
	"os/exec"
	"sort"
	"sync"

	"github.com/rookery-io/rook/models"
)

// Process is the registry's bookkeeping entry for one tracked process. The
// agent's own entry is protected and has no handle; every other entry owns
// the exec.Cmd it was launched with until the process exits.
type Process struct {
	mu sync.Mutex

	name      string
	pid       int
	cmd       *exec.Cmd
	protected bool
	coreID    string
	mode      models.CompletionMode

	exitCode *int
	lastErr  error
	relays   []*relayWriter
}

func (p *Process) Pid() int { return p.pid }

func (p *Process) Protected() bool { return p.protected }

// Handle returns the live OS process, or nil once the process has been
// reaped (and always nil for the protected self entry).
func (p *Process) Handle() *os.Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return nil
	}
	return p.cmd.Process
}

func (p *Process) setExit(code int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exitCode = &code
	p.lastErr = err
}

func (p *Process) closeRelays() {
	p.mu.Lock()
	relays := p.relays
	p.relays = nil
	p.mu.Unlock()
	for _, w := range relays {
		w.Close()
	}
}

// View returns the wire-visible view of the record. The handle never leaks.
func (p *Process) View() models.ProcessView {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := models.ProcessView{
		Name:           p.name,
		Pid:            p.pid,
		Protected:      p.protected,
		CoreID:         p.coreID,
		CompletionMode: p.mode,
	}
	if p.exitCode != nil {
		code := *p.exitCode
		v.ExitCode = &code
	}
	if p.lastErr != nil {
		v.Error = p.lastErr.Error()
	}
	return v
}

// Registry tracks every live process record, keyed by pid. It is owned by one
// Agent and always contains the agent's own protected entry.
type Registry struct {
	mu    sync.Mutex
	procs map[int]*Process
}

func NewRegistry(selfName string) *Registry {
	self := &Process{
		name:      selfName,
		pid:       os.Getpid(),
		protected: true,
	}
	return &Registry{
		procs: map[int]*Process{self.pid: self},
	}
}

func (r *Registry) Add(p *Process) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.procs[p.pid]; ok {
		return ErrDuplicatePid
	}
	r.procs[p.pid] = p
	return nil
}

// Remove drops the record for pid and reports whether it was present.
// Protected records are never removed.
func (r *Registry) Remove(pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.procs[pid]
	if !ok || p.protected {
		return false
	}
	delete(r.procs, pid)
	return true
}

func (r *Registry) Get(pid int) *Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.procs[pid]
}

// List returns every tracked record ordered by pid.
func (r *Registry) List() []*Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Process, 0, len(r.procs))
	for _, p := range r.procs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].pid < out[j].pid })
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}
