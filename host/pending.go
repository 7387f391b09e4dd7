package host

import "context"

// Pending is the result of a hook broadcast that has been queued. The worker
// resolves it exactly once.
type Pending[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newPending[T any]() *Pending[T] {
	return &Pending[T]{done: make(chan struct{})}
}

func (p *Pending[T]) resolve(value T, err error) {
	p.value, p.err = value, err
	close(p.done)
}

// Done is closed once the result is available.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the broadcast completes or ctx is done. Giving up on
// waiting does not cancel the broadcast.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	default:
	}
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Resolved returns a Pending that already holds value and err.
func Resolved[T any](value T, err error) *Pending[T] {
	p := newPending[T]()
	p.resolve(value, err)
	return p
}
