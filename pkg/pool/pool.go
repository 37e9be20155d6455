// Package pool bounds the pipeline's two concurrency domains: outbound
// fetches and calls against the inference backend. The two pools are sized
// independently because the backends they protect saturate differently: the
// extraction side is memory-bound and is typically far narrower than the
// fetch side.
package pool

import (
	"errors"

	"github.com/panjf2000/ants/v2"
)

// ErrReleased is returned when work is submitted after Release.
var ErrReleased = errors.New("pool: limiter already released")

// Limiter owns one bounded worker pool per concurrency domain. Widths are
// constructor parameters so concurrent sessions can run with different
// profiles without interfering with each other.
type Limiter struct {
	fetch        *ants.Pool
	extract      *ants.Pool
	fetchWidth   int
	extractWidth int
}

// New creates a limiter with the given pool widths. Widths below one are
// clamped to one. Submission blocks when a pool is saturated; nothing queues
// beyond the callers themselves.
func New(fetchWidth, extractWidth int) (*Limiter, error) {
	if fetchWidth < 1 {
		fetchWidth = 1
	}
	if extractWidth < 1 {
		extractWidth = 1
	}

	fetch, err := ants.NewPool(fetchWidth)
	if err != nil {
		return nil, err
	}
	extract, err := ants.NewPool(extractWidth)
	if err != nil {
		fetch.Release()
		return nil, err
	}

	return &Limiter{
		fetch:        fetch,
		extract:      extract,
		fetchWidth:   fetchWidth,
		extractWidth: extractWidth,
	}, nil
}

// RunFetch executes fn on the fetch pool and waits for it to finish. The
// caller suspends while the pool is saturated.
func (l *Limiter) RunFetch(fn func()) error {
	return run(l.fetch, fn)
}

// RunExtract executes fn on the extraction pool and waits for it to finish.
func (l *Limiter) RunExtract(fn func()) error {
	return run(l.extract, fn)
}

func run(p *ants.Pool, fn func()) error {
	if p.IsClosed() {
		return ErrReleased
	}
	done := make(chan struct{})
	if err := p.Submit(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	<-done
	return nil
}

// FetchWidth returns the configured fetch pool width.
func (l *Limiter) FetchWidth() int { return l.fetchWidth }

// ExtractWidth returns the configured extraction pool width.
func (l *Limiter) ExtractWidth() int { return l.extractWidth }

// Release tears down both pools. Outstanding work is allowed to finish.
func (l *Limiter) Release() {
	l.fetch.Release()
	l.extract.Release()
}
