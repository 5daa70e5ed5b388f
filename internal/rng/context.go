// internal/rng/context.go
package rng

import (
	"sync"

	"go.uber.org/atomic"
)

// State is the lifecycle state of a Context. The values match the usual
// provider state codes reported through Params.
type State int32

const (
	StateUninitialised State = 0
	StateReady         State = 1
	StateError         State = 2
)

func (s State) String() string {
	switch s {
	case StateUninitialised:
		return "uninitialised"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Context is one randomness session. Its lock, when present, is the only
// mutual exclusion offered to callers; generation itself never takes it.
type Context struct {
	state atomic.Int32
	freed atomic.Bool

	// mu guards lock and device, not the session itself.
	mu      sync.Mutex
	locking bool
	lock    chan struct{}
	done    chan struct{}
	device  string
}

func newContext(locking, lockOnCreate bool) *Context {
	c := &Context{
		locking: locking,
		done:    make(chan struct{}),
	}
	c.state.Store(int32(StateUninitialised))
	if locking && lockOnCreate {
		c.lock = make(chan struct{}, 1)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Context) State() State {
	return State(c.state.Load())
}

// Freed reports whether the context has been torn down.
func (c *Context) Freed() bool {
	return c.freed.Load()
}

// HasLock reports whether an exclusive lock exists for this context.
func (c *Context) HasLock() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lock != nil
}

// Device returns the device identifier reserved for multi-device selection.
func (c *Context) Device() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

// SetDevice records a device identifier. Generation does not use it.
func (c *Context) SetDevice(device string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device = device
}

func (c *Context) setState(s State) {
	c.state.Store(int32(s))
}

// ensureLock creates the lock if locking is configured and none exists.
func (c *Context) ensureLock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lock == nil && c.locking {
		c.lock = make(chan struct{}, 1)
	}
}

// acquire blocks until the lock is held or the context is freed.
func (c *Context) acquire() error {
	c.mu.Lock()
	lock, freed := c.lock, c.Freed()
	c.mu.Unlock()
	if freed {
		return ErrContextFreed
	}
	if lock == nil {
		return ErrLockingDisabled
	}
	return c.wait(lock)
}

// wait takes lock unless the context is freed first.
func (c *Context) wait(lock chan struct{}) error {
	select {
	case lock <- struct{}{}:
		// free may have closed done while both cases were ready.
		if c.Freed() {
			<-lock
			return ErrContextFreed
		}
		return nil
	case <-c.done:
		return ErrContextFreed
	}
}

// release drops the lock if it is held; an unmatched release is ignored.
func (c *Context) release() {
	c.mu.Lock()
	lock := c.lock
	c.mu.Unlock()
	if lock == nil {
		return
	}
	select {
	case <-lock:
	default:
	}
}

func (c *Context) free() {
	if !c.freed.CompareAndSwap(false, true) {
		return
	}
	c.setState(StateUninitialised)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lock = nil
	c.device = ""
	close(c.done)
}
