package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"token-checkout-go/internal/models"
	"token-checkout-go/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var validate = validator.New()

func scanPayer(row rowScanner) (*models.Payer, error) {
	var payer models.Payer
	if err := row.Scan(&payer.Id, &payer.Name, &payer.Email, &payer.CreatedAt, &payer.UpdatedAt); err != nil {
		return nil, err
	}
	return &payer, nil
}

// ListPayers returns active payers, oldest first.
func (s *Service) ListPayers(ctx context.Context) ([]models.Payer, error) {
	rows, err := s.db.QueryContext(ctx, queryListPayers)
	if err != nil {
		return nil, fmt.Errorf("unable to query payers: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var payers []models.Payer
	for rows.Next() {
		payer, err := scanPayer(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan payer row: %w", err)
		}
		payers = append(payers, *payer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payer rows: %w", err)
	}

	zap.L().Debug("Listed payers", zap.Int("count", len(payers)))
	return payers, nil
}

func (s *Service) GetPayer(ctx context.Context, payerId string) (*models.Payer, error) {
	return s.getPayer(ctx, queryGetPayer, payerId)
}

// GetPayerByEmail matches email case-insensitively.
func (s *Service) GetPayerByEmail(ctx context.Context, email string) (*models.Payer, error) {
	return s.getPayer(ctx, queryGetPayerByEmail, normalizeEmail(email))
}

func (s *Service) getPayer(ctx context.Context, query, key string) (*models.Payer, error) {
	payer, err := scanPayer(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrPayerNotFound, key)
		}
		zap.L().Error("Failed to query payer", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("unable to query payer: %w", err)
	}
	return payer, nil
}

// CreatePayer registers a custodial payer. An email already on file
// returns store.ErrPayerExists.
func (s *Service) CreatePayer(ctx context.Context, params store.PayerParams) (*models.Payer, error) {
	params.Email = normalizeEmail(params.Email)
	params.Name = strings.TrimSpace(params.Name)
	if err := validate.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid payer: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, queryInsertPayer, params.Id, params.Name, params.Email); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("%w: %s", store.ErrPayerExists, params.Email)
		}
		zap.L().Error("Failed to insert payer", zap.String("email", params.Email), zap.Error(err))
		return nil, fmt.Errorf("unable to insert payer: %w", err)
	}

	zap.L().Info("Payer created", zap.String("id", params.Id), zap.String("email", params.Email))
	return s.GetPayer(ctx, params.Id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
