package agent

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/carlmjohnson/be"
)

func TestRegistryProtectedSelf(t *testing.T) {
	r := NewRegistry("rook-test")

	be.Equal(t, 1, r.Len())

	self := r.Get(os.Getpid())
	be.Nonzero(t, self)
	be.True(t, self.Protected())
	be.Equal(t, "rook-test", self.View().Name)
	be.Equal(t, os.Getpid(), self.View().Pid)

	// the protected entry has no handle and can never be removed
	be.Zero(t, self.Handle())
	be.False(t, r.Remove(os.Getpid()))
	be.Equal(t, 1, r.Len())
}

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry("rook-test")

	// a pid no live process can hold, so it cannot collide with the self entry
	pid := os.Getpid() + 10_000_000

	p := &Process{name: "sleeper", pid: pid}
	be.NilErr(t, r.Add(p))
	be.Equal(t, 2, r.Len())
	be.Equal(t, p, r.Get(pid))

	err := r.Add(&Process{name: "dup", pid: pid})
	be.Nonzero(t, err)
	be.Equal(t, ErrDuplicatePid, err)

	be.True(t, r.Remove(pid))
	be.False(t, r.Remove(pid))
	be.Zero(t, r.Get(pid))
	be.Equal(t, 1, r.Len())
}

func TestRegistryListOrdered(t *testing.T) {
	r := NewRegistry("rook-test")
	be.NilErr(t, r.Add(&Process{name: "c", pid: os.Getpid() + 20_000_000}))
	be.NilErr(t, r.Add(&Process{name: "a", pid: os.Getpid() + 10_000_000}))

	list := r.List()
	be.Equal(t, 3, len(list))
	last := 0
	for _, p := range list {
		be.True(t, p.Pid() > last)
		last = p.Pid()
	}
}

func TestProcessViewNeverLeaksHandle(t *testing.T) {
	r := NewRegistry("rook-test")
	v := r.Get(os.Getpid()).View()

	b, err := json.Marshal(v)
	be.NilErr(t, err)
	be.False(t, strings.Contains(string(b), "handle"))
	be.False(t, strings.Contains(string(b), "cmd"))

	// exit fields only appear once the process has been reaped
	be.Zero(t, v.ExitCode)
	be.Zero(t, v.Error)
}
