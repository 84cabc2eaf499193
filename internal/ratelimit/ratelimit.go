package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Limiter interface {
	Wait(ctx context.Context) error
}

// Pacer spaces consecutive actions at least minDelay apart and adds a random
// extra wait below maxDelay-minDelay when the two differ. The first call
// never waits.
type Pacer struct {
	limiter *rate.Limiter

	mu     sync.Mutex
	spread time.Duration
}

func NewPacer(minDelay, maxDelay time.Duration) *Pacer {
	p := &Pacer{limiter: rate.NewLimiter(rate.Every(minDelay), 1)}
	p.setSpread(minDelay, maxDelay)
	return p
}

// NewFixedPacer waits exactly delay between actions.
func NewFixedPacer(delay time.Duration) *Pacer {
	return NewPacer(delay, delay)
}

func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	extra := p.jitter()
	if extra <= 0 {
		return nil
	}

	timer := time.NewTimer(extra)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pacer) setSpread(minDelay, maxDelay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.spread = 0
	if maxDelay > minDelay {
		p.spread = maxDelay - minDelay
	}
}

func (p *Pacer) jitter() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.spread <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(p.spread)))
}
