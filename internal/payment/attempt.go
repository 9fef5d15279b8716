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
	"errors"
	"fmt"
	"time"

	"token-checkout-go/internal/models"
)

var ErrIllegalTransition = errors.New("illegal payment transition")

type TransitionError struct {
	From models.PaymentStatus
	To   models.PaymentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal payment transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

var transitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.StatusIdle: {
		models.StatusAwaitingConfirmation,
		models.StatusManualPaymentRequired,
	},
	models.StatusAwaitingConfirmation: {
		models.StatusSubmitted,
		models.StatusManualPaymentRequired,
		models.StatusFailed,
	},
	models.StatusSubmitted: {
		models.StatusConfirming,
		models.StatusConfirmed,
		models.StatusFailed,
	},
	models.StatusConfirming: {
		models.StatusConfirmed,
		models.StatusFailed,
	},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to models.PaymentStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Attempt is a payment attempt and its lifecycle. It is not safe for
// concurrent use; observers receive snapshots.
type Attempt struct {
	state models.PaymentAttempt
}

func NewAttempt(id string, q models.Quote, recipient string, session *models.WalletSession, now time.Time) *Attempt {
	a := &Attempt{state: models.PaymentAttempt{
		Id:               id,
		Asset:            q.Asset,
		FiatAmount:       q.FiatAmount,
		TotalUSD:         q.TotalUSD,
		TotalAssetAmount: q.TotalAssetAmount,
		RecipientAddress: recipient,
		Status:           models.StatusIdle,
		CreatedAt:        now,
		UpdatedAt:        now,
	}}
	if session != nil {
		a.state.PayerId = session.PayerId
		a.state.PayerAddress = session.Address
	}
	return a
}

func (a *Attempt) Id() string { return a.state.Id }

func (a *Attempt) Status() models.PaymentStatus { return a.state.Status }

func (a *Attempt) Transition(to models.PaymentStatus, now time.Time) error {
	if !CanTransition(a.state.Status, to) {
		return &TransitionError{From: a.state.Status, To: to}
	}
	a.state.Status = to
	a.state.UpdatedAt = now
	return nil
}

// Fail moves the attempt to failed, keeping reason as given.
func (a *Attempt) Fail(reason string, now time.Time) error {
	if err := a.Transition(models.StatusFailed, now); err != nil {
		return err
	}
	a.state.FailureReason = reason
	return nil
}

// RequireManualPayment ends the attempt with instructions for the payer.
func (a *Attempt) RequireManualPayment(instructions *models.ManualInstructions, now time.Time) error {
	if err := a.Transition(models.StatusManualPaymentRequired, now); err != nil {
		return err
	}
	a.state.Path = models.PathManual
	a.state.Manual = instructions
	return nil
}

// Submit records the transaction handle of a transfer handed to the network.
func (a *Attempt) Submit(path models.DispatchPath, reference string, now time.Time) error {
	if err := a.Transition(models.StatusSubmitted, now); err != nil {
		return err
	}
	a.state.Path = path
	a.state.TransactionHash = reference
	return nil
}

func (a *Attempt) SetTransactionHash(hash string) {
	if hash != "" {
		a.state.TransactionHash = hash
	}
}

func (a *Attempt) Snapshot() models.PaymentAttempt {
	out := a.state
	if a.state.Manual != nil {
		manual := *a.state.Manual
		out.Manual = &manual
	}
	return out
}
