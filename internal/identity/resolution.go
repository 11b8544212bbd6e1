package identity

import (
	"context"
	"sync"
)

// Resolution is an in-flight session resolution
type Resolution struct {
	done   chan struct{}
	cancel context.CancelFunc

	once sync.Once
	snap Snapshot
	err  error
}

func newResolution(cancel context.CancelFunc) *Resolution {
	return &Resolution{done: make(chan struct{}), cancel: cancel}
}

func (r *Resolution) finish(snap Snapshot, err error) {
	r.once.Do(func() {
		r.snap = snap
		r.err = err
		close(r.done)
	})
}

// Done is closed once the resolution has settled, been superseded or cancelled
func (r *Resolution) Done() <-chan struct{} {
	return r.done
}

// Cancel abandons the resolution; its result will not be applied
func (r *Resolution) Cancel() {
	r.cancel()
}

// Wait blocks until the resolution settles or ctx is done. The error is
// ErrSuperseded, a context error, or nil.
func (r *Resolution) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-r.done:
		return r.snap, r.err
	case <-ctx.Done():
		return Snapshot{State: StateLoading}, ctx.Err()
	}
}
