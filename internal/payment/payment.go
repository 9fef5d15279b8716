package payment

import (
	"context"
	"sync"

	"token-checkout-go/internal/models"
)

// Payment is the observable side of one attempt. Updates yields a snapshot
// after every transition and is closed once the attempt stops changing.
type Payment struct {
	mu       sync.Mutex
	attempt  *Attempt
	updates  chan models.PaymentAttempt
	done     chan struct{}
	finished bool
}

func newPayment(a *Attempt) *Payment {
	return &Payment{
		attempt: a,
		updates: make(chan models.PaymentAttempt, 16),
		done:    make(chan struct{}),
	}
}

func (p *Payment) Snapshot() models.PaymentAttempt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempt.Snapshot()
}

func (p *Payment) Updates() <-chan models.PaymentAttempt {
	return p.updates
}

func (p *Payment) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the attempt stops changing or ctx is done.
func (p *Payment) Wait(ctx context.Context) (models.PaymentAttempt, error) {
	select {
	case <-p.done:
		return p.Snapshot(), nil
	case <-ctx.Done():
		return p.Snapshot(), ctx.Err()
	}
}

func (p *Payment) apply(change func(a *Attempt) error) (models.PaymentAttempt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := change(p.attempt); err != nil {
		return p.attempt.Snapshot(), err
	}
	return p.attempt.Snapshot(), nil
}

// publish drops the update when nobody drains the channel.
func (p *Payment) publish(snapshot models.PaymentAttempt) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	select {
	case p.updates <- snapshot:
	default:
	}
}

func (p *Payment) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.finished = true
	close(p.updates)
	close(p.done)
}
