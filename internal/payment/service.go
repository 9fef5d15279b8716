/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"token-checkout-go/internal/dispatch"
	"token-checkout-go/internal/metrics"
	"token-checkout-go/internal/models"
	"token-checkout-go/internal/quote"
	"token-checkout-go/internal/store"
	"token-checkout-go/internal/watcher"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher plans and performs transfers. *dispatch.Router satisfies it.
type Dispatcher interface {
	Path(session *models.WalletSession, asset models.Asset) (models.DispatchPath, error)
	Dispatch(ctx context.Context, t dispatch.Transfer) (*dispatch.Handle, error)
	Instructions(t dispatch.Transfer) (*models.ManualInstructions, error)
}

// Reverser undoes funds reserved for a transfer that later failed.
type Reverser interface {
	Reverse(ctx context.Context, t dispatch.Transfer) error
}

// Journal records confirmed payments.
type Journal interface {
	RecordSettlement(ctx context.Context, attempt *models.PaymentAttempt) error
}

var _ Dispatcher = (*dispatch.Router)(nil)

type ServiceConfig struct {
	Catalog    models.AssetCatalog
	Dispatcher Dispatcher
	Watcher    watcher.Watcher
	Store      store.PaymentStore // optional
	Journal    Journal            // optional
	Recorder   metrics.Recorder   // optional
}

// Service runs payment attempts from precondition checks to a terminal state.
type Service struct {
	catalog    models.AssetCatalog
	dispatcher Dispatcher
	watcher    watcher.Watcher
	store      store.PaymentStore
	journal    Journal
	recorder   metrics.Recorder
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(cfg ServiceConfig) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		catalog:    cfg.Catalog,
		dispatcher: cfg.Dispatcher,
		watcher:    cfg.Watcher,
		store:      cfg.Store,
		journal:    cfg.Journal,
		recorder:   cfg.Recorder,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
	if s.recorder == nil {
		s.recorder = metrics.NoopRecorder{}
	}
	return s
}

// Close stops every watcher and waits for their payments to settle their state.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// DispatchPayment validates and sends a payment for q from session.
//
// A violated precondition returns a *quote.ValidationError together with
// the idle attempt; nothing is dispatched. Assets without an automated path
// end in manual-payment-required. Otherwise the payment is dispatched and
// followed in the background; use the returned Payment to observe it.
func (s *Service) DispatchPayment(ctx context.Context, q models.Quote, session *models.WalletSession) (*Payment, error) {
	info, known := s.catalog.Get(q.Asset)
	attempt := NewAttempt(uuid.New().String(), q, info.Recipient, session, s.now())
	p := newPayment(attempt)

	if err := s.checkPreconditions(q, known, session); err != nil {
		p.finish()
		return p, err
	}

	transfer := dispatch.Transfer{
		AttemptId: attempt.Id(),
		Asset:     q.Asset,
		Recipient: info.Recipient,
		Amount:    q.TotalAssetAmount,
		Info:      info,
		Session:   session,
	}

	path, err := s.dispatcher.Path(session, q.Asset)
	if err != nil && !errors.Is(err, dispatch.ErrUnsupported) {
		p.finish()
		return p, err
	}
	if path == models.PathManual {
		// Nothing leaves the payer's wallet through us, so no balance is required.
		return p, s.requireManual(ctx, p, transfer)
	}

	// Dispatchers move the amount rounded up to the asset's precision.
	required := q.TotalAssetAmount.RoundCeil(info.Decimals)
	if check := quote.CheckSufficientBalance(required, q.Asset, session); !check.Sufficient {
		p.finish()
		return p, quote.NewValidationError(quote.CodeInsufficientBalance, "%s balance is %s", q.Asset, check.Reason)
	}

	s.transition(ctx, p, func(a *Attempt) error {
		return a.Transition(models.StatusAwaitingConfirmation, s.now())
	})

	start := s.now()
	handle, err := s.dispatcher.Dispatch(ctx, transfer)
	s.recorder.ObserveLatency(metrics.OpDispatch, s.now().Sub(start), map[string]string{"asset": q.Asset.String()})

	switch {
	case errors.Is(err, dispatch.ErrUnsupported):
		return p, s.requireManual(ctx, p, transfer)
	case err != nil:
		s.fail(ctx, p, failureReason(err))
		p.finish()
		return p, nil
	case handle.Path == models.PathManual:
		s.transition(ctx, p, func(a *Attempt) error {
			return a.RequireManualPayment(handle.Manual, s.now())
		})
		p.finish()
		return p, nil
	}

	s.transition(ctx, p, func(a *Attempt) error {
		return a.Submit(handle.Path, handle.Reference(), s.now())
	})

	s.wg.Add(1)
	go s.follow(p, handle, transfer)
	return p, nil
}

func (s *Service) checkPreconditions(q models.Quote, knownAsset bool, session *models.WalletSession) error {
	if session == nil || !session.Connected {
		return quote.NewValidationError(quote.CodeWalletNotConnected, "connect a wallet first")
	}
	if !q.FiatAmount.IsPositive() {
		return quote.NewValidationError(quote.CodeMissingAmount, "enter an amount greater than zero")
	}
	if q.Asset == "" || !knownAsset {
		return quote.NewValidationError(quote.CodeMissingAsset, "select an asset")
	}
	if !q.TotalAssetAmount.IsPositive() {
		return quote.NewValidationError(quote.CodeInvalidAmount, "no rate available for %s", q.Asset)
	}
	return nil
}

// requireManual ends the attempt in manual-payment-required. When no
// instructions can be built, an idle attempt stays idle and the error is
// returned; an attempt already awaiting the wallet fails instead.
func (s *Service) requireManual(ctx context.Context, p *Payment, transfer dispatch.Transfer) error {
	defer p.finish()

	instructions, err := s.dispatcher.Instructions(transfer)
	if err != nil {
		zap.L().Error("Unable to build manual payment instructions",
			zap.String("attempt_id", transfer.AttemptId),
			zap.Error(err))
		if p.Snapshot().Status == models.StatusIdle {
			return err
		}
		s.fail(ctx, p, err.Error())
		return nil
	}
	s.transition(ctx, p, func(a *Attempt) error {
		return a.RequireManualPayment(instructions, s.now())
	})
	return nil
}

func (s *Service) follow(p *Payment, handle *dispatch.Handle, transfer dispatch.Transfer) {
	defer s.wg.Done()
	defer p.finish()

	ctx := s.ctx
	for ev := range s.watcher.Watch(ctx, handle) {
		switch ev.Status {
		case watcher.StatusPending:
			if p.Snapshot().Status == models.StatusSubmitted {
				s.transition(ctx, p, func(a *Attempt) error {
					a.SetTransactionHash(ev.TxHash)
					return a.Transition(models.StatusConfirming, s.now())
				})
			}
		case watcher.StatusConfirmed:
			if p.Snapshot().Status == models.StatusSubmitted {
				s.transition(ctx, p, func(a *Attempt) error {
					return a.Transition(models.StatusConfirming, s.now())
				})
			}
			s.transition(ctx, p, func(a *Attempt) error {
				a.SetTransactionHash(ev.TxHash)
				return a.Transition(models.StatusConfirmed, s.now())
			})
			s.journalSettlement(ctx, p)
		case watcher.StatusFailed:
			if ev.Reason == watcher.ReasonTimeout {
				s.recorder.IncCounter(metrics.EventWatchTimeout, map[string]string{"asset": transfer.Asset.String()})
			} else if reverser, ok := s.dispatcher.(Reverser); ok {
				// A timed out withdrawal may still complete, so only a
				// reported failure releases the reserved funds.
				if err := reverser.Reverse(context.WithoutCancel(ctx), transfer); err != nil {
					zap.L().Error("Failed to release funds of failed payment",
						zap.String("attempt_id", transfer.AttemptId),
						zap.Error(err))
				}
			}
			s.fail(ctx, p, ev.Reason)
		}
	}
}

func (s *Service) journalSettlement(ctx context.Context, p *Payment) {
	if s.journal == nil {
		return
	}
	snapshot := p.Snapshot()
	if err := s.journal.RecordSettlement(context.WithoutCancel(ctx), &snapshot); err != nil {
		zap.L().Error("Failed to journal settlement",
			zap.String("attempt_id", snapshot.Id),
			zap.Error(err))
	}
}

func (s *Service) fail(ctx context.Context, p *Payment, reason string) {
	s.transition(ctx, p, func(a *Attempt) error {
		return a.Fail(reason, s.now())
	})
}

// transition applies change, then persists, counts and publishes the result.
// Illegal transitions are logged and leave the attempt untouched.
func (s *Service) transition(ctx context.Context, p *Payment, change func(a *Attempt) error) {
	snapshot, err := p.apply(change)
	if err != nil {
		zap.L().Warn("Payment transition rejected",
			zap.String("attempt_id", snapshot.Id),
			zap.Error(err))
		return
	}

	s.recorder.IncCounter(metrics.EventPaymentTransition, map[string]string{
		"asset":  snapshot.Asset.String(),
		"status": string(snapshot.Status),
	})

	zap.L().Info("Payment status changed",
		zap.String("attempt_id", snapshot.Id),
		zap.String("asset", snapshot.Asset.String()),
		zap.String("status", string(snapshot.Status)),
		zap.String("tx", snapshot.TransactionHash),
		zap.String("reason", snapshot.FailureReason))

	if s.store != nil {
		if err := s.store.SavePayment(context.WithoutCancel(ctx), &snapshot); err != nil {
			zap.L().Error("Failed to persist payment attempt",
				zap.String("attempt_id", snapshot.Id),
				zap.Error(err))
		}
	}

	p.publish(snapshot)
}

func failureReason(err error) string {
	var rejected *dispatch.WalletRejectionError
	if errors.As(err, &rejected) {
		return rejected.Reason
	}
	return err.Error()
}
