package watcher

import (
	"context"
	"time"

	"token-checkout-go/internal/dispatch"
	"token-checkout-go/internal/models"
	"token-checkout-go/internal/poller"

	"go.uber.org/zap"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

const ReasonTimeout = "confirmation timeout"

// Event is one observed change of a submitted transfer.
type Event struct {
	Status        Status
	Reason        string
	TxHash        string
	Confirmations uint64
}

// Watcher follows a submitted transfer. The channel yields changes only and
// is closed after a terminal event, on timeout, or when ctx is cancelled
// (in which case no terminal event is sent).
type Watcher interface {
	Watch(ctx context.Context, handle *dispatch.Handle) <-chan Event
}

type Config struct {
	PollInterval     time.Duration
	Timeout          time.Duration
	MinConfirmations int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.MinConfirmations <= 0 {
		c.MinConfirmations = 1
	}
	return c
}

type checkFunc func(ctx context.Context) (Event, error)

// follow polls check until it reports a terminal status or the timeout elapses.
func follow(parent context.Context, name string, cfg Config, check checkFunc) <-chan Event {
	events := make(chan Event, 8)

	var ctx context.Context
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	emit := func(ev Event) {
		select {
		case events <- ev:
		case <-parent.Done():
		}
	}

	var last Event
	finished := false
	task := poller.New(name, cfg.PollInterval, cfg.PollInterval, func(tickCtx context.Context) error {
		ev, err := check(tickCtx)
		if err != nil {
			return err
		}
		if ev != last {
			emit(ev)
			last = ev
		}
		if ev.Status.IsTerminal() {
			finished = true
			cancel()
		}
		return nil
	})

	if err := task.Start(ctx); err != nil {
		cancel()
		go func() {
			emit(Event{Status: StatusFailed, Reason: err.Error()})
			close(events)
		}()
		return events
	}

	go func() {
		<-task.Done()
		if !finished && parent.Err() == nil {
			zap.L().Warn("Transfer not confirmed in time",
				zap.String("watcher", name),
				zap.Duration("timeout", cfg.Timeout))
			emit(Event{Status: StatusFailed, Reason: ReasonTimeout, TxHash: last.TxHash})
		}
		cancel()
		close(events)
	}()
	return events
}

// Router hands a handle to the watcher of its dispatch path.
type Router struct {
	evm       Watcher
	custodial Watcher
}

// NewRouter accepts nil for paths that are not configured.
func NewRouter(evm, custodial Watcher) *Router {
	return &Router{evm: evm, custodial: custodial}
}

func (r *Router) Watch(ctx context.Context, handle *dispatch.Handle) <-chan Event {
	var w Watcher
	switch handle.Path {
	case models.PathEVMNative, models.PathEVMToken:
		w = r.evm
	case models.PathCustodial:
		w = r.custodial
	}
	if w == nil {
		events := make(chan Event, 1)
		events <- Event{Status: StatusFailed, Reason: "no watcher for " + string(handle.Path)}
		close(events)
		return events
	}
	return w.Watch(ctx, handle)
}
