package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrUnknownRequest = errors.New("unknown camera request")
	ErrFlyTimeout     = errors.New("camera move did not complete")
)

// Request is a queued fly-to for the renderer.
type Request struct {
	ID     uint64 `json:"id"`
	Target Target `json:"target"`
}

// RemotePort queues fly-to requests for an out-of-process renderer.
type RemotePort struct {
	timeout time.Duration

	mu      sync.Mutex
	nextID  uint64
	queue   []Request
	waiters map[uint64]chan struct{}
}

// NewRemotePort returns a port whose FlyTo gives up after timeout. Zero means no limit.
func NewRemotePort(timeout time.Duration) *RemotePort {
	return &RemotePort{timeout: timeout, waiters: map[uint64]chan struct{}{}}
}

// FlyTo queues target and waits for Complete with the request id.
func (p *RemotePort) FlyTo(ctx context.Context, target Target) error {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	done := make(chan struct{})
	p.queue = append(p.queue, Request{ID: id, Target: target})
	p.waiters[id] = done
	p.mu.Unlock()

	defer p.forget(id)

	var timeout <-chan time.Time
	if p.timeout > 0 {
		t := time.NewTimer(p.timeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return fmt.Errorf("request %d: %w", id, ErrFlyTimeout)
	}
}

// Pending returns queued requests the renderer has not completed yet.
func (p *RemotePort) Pending() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Request(nil), p.queue...)
}

// Complete marks request id as finished by the renderer.
func (p *RemotePort) Complete(id uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	done, ok := p.waiters[id]
	if !ok {
		return fmt.Errorf("complete %d: %w", id, ErrUnknownRequest)
	}
	close(done)
	delete(p.waiters, id)
	p.dequeueLocked(id)
	return nil
}

func (p *RemotePort) forget(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.waiters, id)
	p.dequeueLocked(id)
}

func (p *RemotePort) dequeueLocked(id uint64) {
	for i, r := range p.queue {
		if r.ID == id {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			return
		}
	}
}
