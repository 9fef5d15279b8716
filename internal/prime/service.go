package prime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"token-checkout-go/internal/models"

	core "github.com/coinbase-samples/core-go"
	"github.com/coinbase-samples/prime-sdk-go/client"
	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/coinbase-samples/prime-sdk-go/model"
	"github.com/coinbase-samples/prime-sdk-go/portfolios"
	"github.com/coinbase-samples/prime-sdk-go/transactions"
	"github.com/coinbase-samples/prime-sdk-go/wallets"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// Withdrawal statuses that end a custodial payment.
const (
	StatusDone      = "TRANSACTION_DONE"
	StatusCancelled = "TRANSACTION_CANCELLED"
	StatusRejected  = "TRANSACTION_REJECTED"
	StatusFailed    = "TRANSACTION_FAILED"
	StatusExpired   = "TRANSACTION_EXPIRED"

	walletTypeTrading = "TRADING"
)

var (
	ErrWalletNotFound = errors.New("custody wallet not found")

	// ErrWithdrawalRejected means Prime answered and refused the withdrawal,
	// so nothing was created under its idempotency key.
	ErrWithdrawalRejected = errors.New("withdrawal rejected")
)

type Service struct {
	client          client.RestClient
	portfoliosSvc   portfolios.PortfoliosService
	walletsSvc      wallets.WalletsService
	transactionsSvc transactions.TransactionsService
}

func NewService(creds *credentials.Credentials) (*Service, error) {
	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	restClient := client.NewRestClient(creds, httpClient)

	return &Service{
		client:          restClient,
		portfoliosSvc:   portfolios.NewPortfoliosService(restClient),
		walletsSvc:      wallets.NewWalletsService(restClient),
		transactionsSvc: transactions.NewTransactionsService(restClient),
	}, nil
}

func createCustomHttpClient() (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   60 * time.Second,
	}, nil
}

// FindPortfolio resolves the portfolio the checkout pays from, by id when
// given, otherwise by name.
func (s *Service) FindPortfolio(ctx context.Context, id, name string) (*models.Portfolio, error) {
	response, err := s.portfoliosSvc.ListPortfolios(ctx, &portfolios.ListPortfoliosRequest{})
	if err != nil {
		return nil, fmt.Errorf("unable to list portfolios: %w", err)
	}

	for _, p := range response.Portfolios {
		if (id != "" && p.Id == id) || (id == "" && p.Name == name) {
			return &models.Portfolio{Id: p.Id, Name: p.Name}, nil
		}
	}

	return nil, fmt.Errorf("portfolio not found (id=%q, name=%q)", id, name)
}

// FindTradingWallet returns the trading wallet holding symbol in the portfolio.
func (s *Service) FindTradingWallet(ctx context.Context, portfolioId, symbol string) (*models.Wallet, error) {
	response, err := s.walletsSvc.ListWallets(ctx, &wallets.ListWalletsRequest{
		PortfolioId: portfolioId,
		Type:        walletTypeTrading,
		Symbols:     []string{symbol},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list wallets: %w", err)
	}

	for _, w := range response.Wallets {
		if w.Symbol == symbol {
			return &models.Wallet{Id: w.Id, Name: w.Name, Symbol: w.Symbol, Type: w.Type}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s trading wallet in portfolio %s", ErrWalletNotFound, symbol, portfolioId)
}

type CreateWithdrawalParams struct {
	PortfolioId        string
	WalletId           string
	DestinationAddress string
	Amount             string
	Symbol             string
	Network            models.Network
	IdempotencyKey     string
}

// CreateWithdrawal sends funds from a custody wallet to a blockchain address.
func (s *Service) CreateWithdrawal(ctx context.Context, params CreateWithdrawalParams) (*models.Withdrawal, error) {
	zap.L().Info("Creating withdrawal via Prime API",
		zap.String("portfolio_id", params.PortfolioId),
		zap.String("wallet_id", params.WalletId),
		zap.String("symbol", params.Symbol),
		zap.String("amount", params.Amount),
		zap.String("destination", params.DestinationAddress),
		zap.String("idempotency_key", params.IdempotencyKey))

	destination := &model.BlockchainAddress{Address: params.DestinationAddress}
	if networkId, networkType := params.Network.PrimeIds(); networkType != "" {
		destination.Network = &model.NetworkDetails{Id: networkId, Type: networkType}
	}

	response, err := s.transactionsSvc.CreateWalletWithdrawal(ctx, &transactions.CreateWalletWithdrawalRequest{
		PortfolioId:       params.PortfolioId,
		SourceWalletId:    params.WalletId,
		Amount:            params.Amount,
		IdempotencyKey:    params.IdempotencyKey,
		Symbol:            params.Symbol,
		DestinationType:   "DESTINATION_BLOCKCHAIN",
		BlockchainAddress: destination,
	})
	if err != nil {
		zap.L().Error("Failed to create withdrawal",
			zap.String("wallet_id", params.WalletId),
			zap.String("amount", params.Amount),
			zap.String("symbol", params.Symbol),
			zap.Error(err))
		return nil, withdrawalError(err)
	}

	zap.L().Info("Withdrawal created",
		zap.String("activity_id", response.ActivityId),
		zap.String("idempotency_key", params.IdempotencyKey))

	return &models.Withdrawal{
		ActivityId:     response.ActivityId,
		Asset:          params.Symbol,
		Amount:         params.Amount,
		Destination:    params.DestinationAddress,
		IdempotencyKey: params.IdempotencyKey,
	}, nil
}

// withdrawalError marks a client error answer as ErrWithdrawalRejected.
// Transport failures, timeouts, conflicts and server errors stay ambiguous:
// Prime may still have accepted the request.
func withdrawalError(err error) error {
	var apiErr *core.ApiError
	if errors.As(err, &apiErr) && apiErr.CodeReceived >= 400 && apiErr.CodeReceived < 500 {
		switch apiErr.CodeReceived {
		case http.StatusRequestTimeout, http.StatusConflict:
		default:
			return fmt.Errorf("%w: %s", ErrWithdrawalRejected, apiErr.Message)
		}
	}
	return fmt.Errorf("unable to create withdrawal: %w", err)
}

// FindWithdrawal looks up the withdrawal created with idempotencyKey among
// the wallet's withdrawals since the given time. It returns nil when Prime
// has not listed it yet.
func (s *Service) FindWithdrawal(ctx context.Context, portfolioId, walletId, idempotencyKey string, since time.Time) (*models.PrimeTransaction, error) {
	response, err := s.transactionsSvc.ListWalletTransactions(ctx, &transactions.ListWalletTransactionsRequest{
		PortfolioId: portfolioId,
		WalletId:    walletId,
		Start:       since,
		Types:       []string{"WITHDRAWAL"},
		Pagination:  &model.PaginationParams{Limit: 500},
	})
	if err != nil {
		zap.L().Error("Failed to list wallet transactions", zap.String("wallet_id", walletId), zap.Error(err))
		return nil, fmt.Errorf("unable to list wallet transactions: %w", err)
	}

	for _, tx := range response.Transactions {
		if tx.IdempotencyKey != idempotencyKey {
			continue
		}
		return &models.PrimeTransaction{
			Id:             tx.Id,
			WalletId:       tx.WalletId,
			Type:           tx.Type,
			Status:         tx.Status,
			Symbol:         tx.Symbol,
			Amount:         tx.Amount,
			IdempotencyKey: tx.IdempotencyKey,
			TransactionId:  tx.TransactionId,
			Network:        tx.Network,
			CreatedAt:      tx.Created,
			CompletedAt:    tx.Completed,
		}, nil
	}

	zap.L().Debug("Withdrawal not listed yet",
		zap.String("wallet_id", walletId),
		zap.String("idempotency_key", idempotencyKey),
		zap.Int("scanned", len(response.Transactions)))
	return nil, nil
}

// IsTerminalStatus reports whether a withdrawal status will not change again.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusDone, StatusCancelled, StatusRejected, StatusFailed, StatusExpired:
		return true
	}
	return false
}
