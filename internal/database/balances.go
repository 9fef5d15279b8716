package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalance returns the custodial balance of one payer asset. A payer that
// never held the asset has a zero balance.
func (s *SubledgerService) GetBalance(ctx context.Context, userId, asset string) (decimal.Decimal, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, queryGetBalance, userId, asset).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		zap.L().Error("Failed to read payer balance",
			zap.String("user_id", userId),
			zap.String("asset", asset),
			zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	return parseStoredAmount("balance", raw)
}

// GetAllBalances lists every non-zero asset balance a payer holds, ordered by asset.
func (s *SubledgerService) GetAllBalances(ctx context.Context, userId string) ([]models.AccountBalance, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAllUserBalances, userId)
	if err != nil {
		zap.L().Error("Failed to list payer balances", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get all balances: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var balances []models.AccountBalance
	for rows.Next() {
		var (
			balance models.AccountBalance
			raw     string
		)
		if err := rows.Scan(&balance.Id, &balance.UserId, &balance.Asset, &raw,
			&balance.LastTransactionId, &balance.Version, &balance.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		if balance.Balance, err = parseStoredAmount("balance", raw); err != nil {
			return nil, err
		}
		balances = append(balances, balance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	zap.L().Debug("Payer balances loaded", zap.String("user_id", userId), zap.Int("assets", len(balances)))
	return balances, nil
}

// ReconcileBalance checks the running balance against the sum of confirmed
// subledger rows for the same payer asset.
func (s *SubledgerService) ReconcileBalance(ctx context.Context, userId, asset string) error {
	current, err := s.GetBalance(ctx, userId, asset)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	calculated, err := s.sumConfirmedAmounts(ctx, userId, asset)
	if err != nil {
		return err
	}

	if !current.Equal(calculated) {
		zap.L().Error("Payer balance out of sync with subledger",
			zap.String("user_id", userId),
			zap.String("asset", asset),
			zap.String("current", current.String()),
			zap.String("calculated", calculated.String()),
			zap.String("difference", current.Sub(calculated).String()))
		return fmt.Errorf("balance mismatch: current=%s, calculated=%s", current, calculated)
	}

	zap.L().Info("Payer balance reconciled",
		zap.String("user_id", userId),
		zap.String("asset", asset),
		zap.String("balance", current.String()))
	return nil
}

// Amounts are summed as decimals; SQLite would round them through float64.
func (s *SubledgerService) sumConfirmedAmounts(ctx context.Context, userId, asset string) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, queryReconcileAmounts, userId, asset)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read subledger rows: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	sum := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan subledger amount: %w", err)
		}
		amount, err := parseStoredAmount("amount", raw)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating subledger rows: %w", err)
	}
	return sum, nil
}

func parseStoredAmount(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s '%s': %w", field, raw, err)
	}
	return d, nil
}
