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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"token-checkout-go/internal/models"
	"token-checkout-go/internal/store"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.CheckoutStore.
var _ store.CheckoutStore = (*Service)(nil)

type Service struct {
	db        *sql.DB
	subledger *SubledgerService
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service, err := newServiceWithDB(db, cfg.CreateDemoPayers)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func newServiceWithDB(db *sql.DB, createDemoPayers bool) (*Service, error) {
	subledger := NewSubledgerService(db)
	service := &Service{db: db, subledger: subledger}
	if err := service.initSchema(createDemoPayers); err != nil {
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}
	if err := subledger.InitSchema(); err != nil {
		return nil, fmt.Errorf("unable to initialize subledger schema: %w", err)
	}
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema(createDemoPayers bool) error {
	schema := `
	CREATE TABLE IF NOT EXISTS payers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_payers_active ON payers(active);

	-- Payment attempts (audit trail, amounts kept as exact decimal text)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		payer_id TEXT NOT NULL DEFAULT '',
		payer_address TEXT NOT NULL DEFAULT '',
		asset TEXT NOT NULL,
		fiat_amount TEXT NOT NULL,
		total_usd TEXT NOT NULL,
		total_asset_amount TEXT NOT NULL,
		recipient_address TEXT NOT NULL,
		transaction_hash TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		failure_reason TEXT NOT NULL DEFAULT '',
		dispatch_path TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_payer ON payments(payer_id);
	CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);
	CREATE INDEX IF NOT EXISTS idx_payments_created_at ON payments(created_at);

	CREATE TABLE IF NOT EXISTS rate_snapshots (
		id TEXT PRIMARY KEY,
		asset TEXT NOT NULL,
		spot_rate TEXT NOT NULL,
		network_fee_usd TEXT NOT NULL,
		source TEXT NOT NULL,
		taken_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rate_snapshots_asset_time ON rate_snapshots(asset, taken_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if !createDemoPayers {
		zap.L().Info("Skipping demo payer creation (CREATE_DEMO_PAYERS=false)")
		return nil
	}

	payers := []struct {
		id    string
		name  string
		email string
	}{
		{uuid.New().String(), "Alice Johnson", "alice.johnson@example.com"},
		{uuid.New().String(), "Bob Smith", "bob.smith@example.com"},
	}

	for _, p := range payers {
		if _, err := s.db.Exec(queryInsertDemoPayer, p.id, p.name, p.email); err != nil {
			zap.L().Error("Failed to insert demo payer", zap.String("name", p.name), zap.Error(err))
			continue
		}
		zap.L().Info("Demo payer created", zap.String("id", p.id), zap.String("name", p.name))
	}

	return nil
}

// Subledger convenience methods

func (s *Service) GetUserBalance(ctx context.Context, userId string, asset models.Asset) (decimal.Decimal, error) {
	return s.subledger.GetBalance(ctx, userId, asset.String())
}

func (s *Service) GetAllUserBalances(ctx context.Context, userId string) ([]models.AccountBalance, error) {
	return s.subledger.GetAllBalances(ctx, userId)
}

func (s *Service) GetTransactionHistory(ctx context.Context, userId string, asset models.Asset, limit, offset int) ([]models.Transaction, error) {
	return s.subledger.GetTransactionHistory(ctx, userId, asset.String(), limit, offset)
}

func (s *Service) ReconcileUserBalance(ctx context.Context, userId string, asset models.Asset) error {
	return s.subledger.ReconcileBalance(ctx, userId, asset.String())
}

// Credit adds funds to a payer's custodial balance.
func (s *Service) Credit(ctx context.Context, params store.CreditParams) (*models.Transaction, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("credit amount must be positive, got %s", params.Amount)
	}
	if _, err := s.GetPayer(ctx, params.UserId); err != nil {
		return nil, err
	}

	tx, err := s.subledger.ProcessTransaction(ctx, ProcessTransactionParams{
		UserId:          params.UserId,
		Asset:           params.Asset.String(),
		TransactionType: txTypeDeposit,
		Amount:          params.Amount,
		ExternalTxId:    params.ExternalTxId,
		Reference:       params.Reference,
	})
	if err != nil {
		return nil, fmt.Errorf("error processing credit: %w", err)
	}
	return tx, nil
}

// Debit takes a payment amount from a payer's balance. It fails with
// store.ErrInsufficientFunds rather than overdrawing.
func (s *Service) Debit(ctx context.Context, params store.DebitParams) (*models.Transaction, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("debit amount must be positive, got %s", params.Amount)
	}
	if params.Reference == "" {
		return nil, fmt.Errorf("debit reference cannot be empty")
	}

	tx, err := s.subledger.ProcessTransaction(ctx, ProcessTransactionParams{
		UserId:          params.UserId,
		Asset:           params.Asset.String(),
		TransactionType: txTypePayment,
		Amount:          params.Amount.Neg(),
		ExternalTxId:    debitExternalId(params.Reference),
		Address:         params.Recipient,
		Reference:       params.Reference,
		RequireFunds:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("error processing debit: %w", err)
	}

	zap.L().Info("Payer debited",
		zap.String("user_id", params.UserId),
		zap.String("asset", params.Asset.String()),
		zap.String("amount", params.Amount.String()),
		zap.String("reference", params.Reference))
	return tx, nil
}

// ReverseDebit credits back a debit whose withdrawal never left custody.
// Reversing twice is a no-op.
func (s *Service) ReverseDebit(ctx context.Context, params store.DebitParams) error {
	_, err := s.subledger.ProcessTransaction(ctx, ProcessTransactionParams{
		UserId:          params.UserId,
		Asset:           params.Asset.String(),
		TransactionType: txTypePaymentReversal,
		Amount:          params.Amount,
		ExternalTxId:    debitExternalId(params.Reference) + "-reversal",
		Address:         params.Recipient,
		Reference:       "Reversal of failed payment " + params.Reference,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateTransaction) {
		return fmt.Errorf("error reversing debit: %w", err)
	}

	zap.L().Info("Payer debit reversed",
		zap.String("user_id", params.UserId),
		zap.String("asset", params.Asset.String()),
		zap.String("amount", params.Amount.String()),
		zap.String("reference", params.Reference))
	return nil
}

func debitExternalId(reference string) string {
	return "payment:" + reference
}
