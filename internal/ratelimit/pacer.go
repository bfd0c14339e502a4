package ratelimit

import (
	"math/rand"
	"sync"
	"time"
)

// Pacer spaces out sequential upstream calls with a base delay plus jitter.
// Paged fetches within one sync scope go through the same pacer, which keeps
// the request pattern inside the provider's burst tolerance.
type Pacer struct {
	baseDelay time.Duration
	jitter    time.Duration

	lastRequest time.Time
	mu          sync.Mutex
}

// NewPacer creates a pacer. Jitter of zero disables randomization.
func NewPacer(baseDelay, jitter time.Duration) *Pacer {
	return &Pacer{
		baseDelay: baseDelay,
		jitter:    jitter,
	}
}

// Wait blocks until the pacing gap since the previous call has elapsed, then
// records the call. The first call never blocks.
func (p *Pacer) Wait() {
	if p.baseDelay == 0 && p.jitter == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	delay := p.baseDelay
	if p.jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.jitter)))
	}

	if !p.lastRequest.IsZero() {
		elapsed := time.Since(p.lastRequest)
		if elapsed < delay {
			time.Sleep(delay - elapsed)
		}
	}
	p.lastRequest = time.Now()
}
