package common

import "sync/atomic"

var (
	ErrModulePaused = NewError(KindPrecondition, "module paused")
	// ErrReentrant is returned when a mutating call starts while another one
	// is still executing on the same engine.
	ErrReentrant = NewError(KindPrecondition, "operation already in progress")
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// EntryGuard is a single-entry flag held for the duration of a mutating call.
// The zero value is ready to use.
type EntryGuard struct {
	busy atomic.Bool
}

// Enter claims the guard. The returned release function must be called
// exactly once when the operation finishes.
func (g *EntryGuard) Enter() (func(), error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, ErrReentrant
	}
	return func() { g.busy.Store(false) }, nil
}

// Busy reports whether an operation currently holds the guard.
func (g *EntryGuard) Busy() bool {
	return g.busy.Load()
}
