package scribdlink

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one worker is available.
	MinPoolSize = 1

	// MaxPoolSize caps concurrent browser sessions; providers bill and
	// rate-limit per session.
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for locally launched Chrome processes.
	cpuDivisor = 2
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("resolver pool is closed")

// ResolverPool manages a bounded set of Resolver instances for parallel work.
// With the rod backends each resolver owns its own browser connection.
// Resolvers are created lazily on first acquire to avoid startup delay.
type ResolverPool struct {
	size      int
	opts      []Option
	resolvers []*Resolver
	sem       chan *Resolver
	mu        sync.Mutex
	created   int
	closed    bool
}

// NewResolverPool creates a pool with capacity for n resolvers built with opts.
func NewResolverPool(n int, opts ...Option) *ResolverPool {
	if n < 1 {
		n = 1
	}

	return &ResolverPool{
		size:      n,
		opts:      opts,
		resolvers: make([]*Resolver, 0, n),
		sem:       make(chan *Resolver, n),
	}
}

// Acquire gets a resolver from the pool, creating one if needed.
// Blocks until one is released or ctx is done.
func (p *ResolverPool) Acquire(ctx context.Context) (*Resolver, error) {
	// Try to get an existing resolver (non-blocking)
	select {
	case r, ok := <-p.sem:
		if !ok {
			return nil, ErrPoolClosed
		}
		return r, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		// Create new resolver outside the lock
		r, err := NewResolver(p.opts...)
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, err
		}

		p.mu.Lock()
		p.resolvers = append(p.resolvers, r)
		p.mu.Unlock()

		return r, nil
	}
	p.mu.Unlock()

	// All resolvers created, wait for one to be released
	select {
	case r, ok := <-p.sem:
		if !ok {
			return nil, ErrPoolClosed
		}
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a resolver to the pool.
// The lock is held while sending so Close cannot close the channel under us;
// the channel has room for every resolver, so the send never blocks.
func (p *ResolverPool) Release(r *Resolver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.sem <- r
}

// Resolve acquires a resolver, resolves rawURL and releases it.
func (p *ResolverPool) Resolve(ctx context.Context, rawURL string) (*Result, error) {
	r, err := p.Acquire(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Kind: KindUpstreamUnavailable, Message: msgUpstreamTimeout, Err: err}
		}
		return nil, &Error{Kind: KindInternal, Message: err.Error(), Err: err}
	}
	defer p.Release(r)
	return r.Resolve(ctx, rawURL)
}

// Close releases all backend resources.
// Returns an aggregated error if multiple resolvers fail to close.
func (p *ResolverPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sem)
	resolvers := p.resolvers
	p.mu.Unlock()

	var errs []error
	for _, r := range resolvers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *ResolverPool) Size() int {
	return p.size
}

// ResolvePoolSize determines the pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// Auto-calculate based on GOMAXPROCS (adjusted by automaxprocs for containers)
	n := runtime.GOMAXPROCS(0) / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
