package session

import (
	"sync/atomic"

	"github.com/itsmostafa/goprobe/internal/rc"
)

// CriticalSection allows at most one active session per process. Enter never
// blocks: a second caller is turned away.
type CriticalSection struct {
	active atomic.Bool
}

// Enter claims the section and reports whether the caller got it.
func (c *CriticalSection) Enter() bool {
	return c.active.CompareAndSwap(false, true)
}

// Exit releases the section unconditionally.
func (c *CriticalSection) Exit() {
	c.active.Store(false)
}

// Active reports whether a session currently holds the section.
func (c *CriticalSection) Active() bool {
	return c.active.Load()
}

// Do runs fn while holding the section. It reports false without running fn
// when the section is already held. The section is released even if fn panics.
func (c *CriticalSection) Do(fn func() error) (bool, error) {
	if !c.Enter() {
		return false, nil
	}
	defer c.Exit()
	return true, fn()
}

// Process is the state shared by every session in a process.
type Process struct {
	Critical *CriticalSection
	RC       *rc.State
}

// NewProcess creates process state with no active session and no startup
// scripts loaded.
func NewProcess() *Process {
	return &Process{
		Critical: &CriticalSection{},
		RC:       rc.NewState(),
	}
}

// DefaultProcess is used by sessions that do not supply their own Process.
var DefaultProcess = NewProcess()

// Active reports whether a session is running on DefaultProcess.
func Active() bool {
	return DefaultProcess.Critical.Active()
}
