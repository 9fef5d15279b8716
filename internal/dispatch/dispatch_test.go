package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"token-checkout-go/internal/chain"
	"token-checkout-go/internal/models"
	"token-checkout-go/internal/prime"
	"token-checkout-go/internal/quote"
	"token-checkout-go/internal/store"
	"token-checkout-go/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKeyHex   = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	merchantEVM  = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	merchantBTC  = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"
	merchantSOL  = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	usdcContract = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

func testCatalog() models.AssetCatalog {
	return models.AssetCatalog{
		models.AssetETH:  {Symbol: models.AssetETH, Network: models.NetworkEthereum, Decimals: 18, Dispatch: models.DispatchNative, Recipient: merchantEVM},
		models.AssetUSDC: {Symbol: models.AssetUSDC, Network: models.NetworkEthereum, Decimals: 6, Dispatch: models.DispatchToken, Contract: usdcContract, Recipient: merchantEVM},
		models.AssetBTC:  {Symbol: models.AssetBTC, Network: models.NetworkBitcoin, Decimals: 8, Dispatch: models.DispatchManual, Recipient: merchantBTC},
		models.AssetSOL:  {Symbol: models.AssetSOL, Network: models.NetworkSolana, Decimals: 9, Dispatch: models.DispatchManual, Recipient: merchantSOL},
	}
}

func newTransfer(asset models.Asset, amount string, session *models.WalletSession) Transfer {
	info := testCatalog()[asset]
	return Transfer{
		AttemptId: uuid.New().String(),
		Asset:     asset,
		Recipient: info.Recipient,
		Amount:    decimal.RequireFromString(amount),
		Info:      info,
		Session:   session,
	}
}

func keystoreSession() *models.WalletSession {
	return &models.WalletSession{Adapter: wallet.KeystoreAdapterName, Address: "0xpayer", Connected: true}
}

func custodialSession() *models.WalletSession {
	return &models.WalletSession{Adapter: wallet.CustodialAdapterName, Address: "ada@example.com", PayerId: "payer-1", Connected: true}
}

type fakeBackend struct {
	chain.Backend
	sent    []*types.Transaction
	sendErr error
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100), BaseFee: big.NewInt(10_000_000_000)}, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func newEVMDispatcher(t *testing.T, backend chain.Backend) *EVMDispatcher {
	t.Helper()
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	return NewEVMDispatcher(backend, key, 1, 21000, 65000)
}

func TestEVMDispatcherSendNative(t *testing.T) {
	backend := &fakeBackend{}
	d := newEVMDispatcher(t, backend)

	handle, err := d.Dispatch(context.Background(), newTransfer(models.AssetETH, "0.06", keystoreSession()))
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, tx.Hash().Hex(), handle.TxHash)
	assert.Equal(t, models.PathEVMNative, handle.Path)
	assert.Equal(t, models.AssetETH, handle.Asset)
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, "60000000000000000", tx.Value().String())
	assert.Equal(t, common.HexToAddress(merchantEVM), *tx.To())
	assert.Equal(t, "21000000000", tx.GasFeeCap().String())

	sender, err := types.Sender(types.NewLondonSigner(big.NewInt(1)), tx)
	require.NoError(t, err)
	assert.Equal(t, d.from, sender)
}

func TestEVMDispatcherSendToken(t *testing.T) {
	backend := &fakeBackend{}
	d := newEVMDispatcher(t, backend)

	handle, err := d.Dispatch(context.Background(), newTransfer(models.AssetUSDC, "12.5", keystoreSession()))
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, models.PathEVMToken, handle.Path)
	assert.Equal(t, common.HexToAddress(usdcContract), *tx.To())
	assert.Equal(t, int64(0), tx.Value().Int64())
	assert.Equal(t, uint64(65000), tx.Gas())

	expected, err := chain.PackTransfer(common.HexToAddress(merchantEVM), big.NewInt(12_500_000))
	require.NoError(t, err)
	assert.Equal(t, expected, tx.Data())
}

func TestEVMDispatcherRejectsMalformedInput(t *testing.T) {
	backend := &fakeBackend{}
	d := newEVMDispatcher(t, backend)

	bad := newTransfer(models.AssetETH, "0.06", keystoreSession())
	bad.Recipient = "0x1234"
	_, err := d.Dispatch(context.Background(), bad)
	var vErr *quote.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, quote.CodeInvalidRecipient, vErr.Code)

	_, err = d.Dispatch(context.Background(), newTransfer(models.AssetETH, "-1", keystoreSession()))
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, quote.CodeInvalidAmount, vErr.Code)

	assert.Empty(t, backend.sent)
}

func TestEVMDispatcherNodeRejection(t *testing.T) {
	backend := &fakeBackend{sendErr: errors.New("insufficient funds for gas * price + value")}
	d := newEVMDispatcher(t, backend)

	_, err := d.Dispatch(context.Background(), newTransfer(models.AssetETH, "0.06", keystoreSession()))
	var rejected *WalletRejectionError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "insufficient funds for gas * price + value", rejected.Reason)
}

type fakeCustody struct {
	walletErr   error
	withdrawErr error
	requests    []prime.CreateWithdrawalParams
	listed      *models.PrimeTransaction
	findErr     error
	lookups     []string
}

func (f *fakeCustody) FindTradingWallet(_ context.Context, _, symbol string) (*models.Wallet, error) {
	if f.walletErr != nil {
		return nil, f.walletErr
	}
	return &models.Wallet{Id: "wallet-" + strings.ToLower(symbol), Symbol: symbol}, nil
}

func (f *fakeCustody) CreateWithdrawal(_ context.Context, params prime.CreateWithdrawalParams) (*models.Withdrawal, error) {
	f.requests = append(f.requests, params)
	if f.withdrawErr != nil {
		return nil, f.withdrawErr
	}
	return &models.Withdrawal{ActivityId: "activity-1", IdempotencyKey: params.IdempotencyKey}, nil
}

func (f *fakeCustody) FindWithdrawal(_ context.Context, _, _, idempotencyKey string, _ time.Time) (*models.PrimeTransaction, error) {
	f.lookups = append(f.lookups, idempotencyKey)
	return f.listed, f.findErr
}

type fakeBalances struct {
	store.BalanceStore
	balance  decimal.Decimal
	debits   []store.DebitParams
	reversed []store.DebitParams
}

func (f *fakeBalances) Debit(_ context.Context, params store.DebitParams) (*models.Transaction, error) {
	if f.balance.LessThan(params.Amount) {
		return nil, store.ErrInsufficientFunds
	}
	f.balance = f.balance.Sub(params.Amount)
	f.debits = append(f.debits, params)
	return &models.Transaction{}, nil
}

func (f *fakeBalances) ReverseDebit(_ context.Context, params store.DebitParams) error {
	f.balance = f.balance.Add(params.Amount)
	f.reversed = append(f.reversed, params)
	return nil
}

func TestCustodialDispatcher(t *testing.T) {
	custody := &fakeCustody{}
	balances := &fakeBalances{balance: decimal.NewFromInt(1)}
	d := NewCustodialDispatcher(custody, balances, "portfolio-1")

	transfer := newTransfer(models.AssetBTC, "0.0027", custodialSession())
	handle, err := d.Dispatch(context.Background(), transfer)
	require.NoError(t, err)

	assert.Equal(t, models.PathCustodial, handle.Path)
	assert.Equal(t, "activity-1", handle.Reference())
	assert.Equal(t, "wallet-btc", handle.WalletId)
	assert.Equal(t, transfer.AttemptId, handle.IdempotencyKey)

	require.Len(t, custody.requests, 1)
	req := custody.requests[0]
	assert.Equal(t, "0.0027", req.Amount)
	assert.Equal(t, merchantBTC, req.DestinationAddress)
	assert.Equal(t, models.NetworkBitcoin, req.Network)
	assert.True(t, balances.balance.Equal(decimal.RequireFromString("0.9973")))
}

func TestCustodialDispatcherReversesOnRejection(t *testing.T) {
	custody := &fakeCustody{withdrawErr: fmt.Errorf("%w: destination address not allowlisted", prime.ErrWithdrawalRejected)}
	balances := &fakeBalances{balance: decimal.NewFromInt(1)}
	d := NewCustodialDispatcher(custody, balances, "portfolio-1")

	_, err := d.Dispatch(context.Background(), newTransfer(models.AssetBTC, "0.5", custodialSession()))
	var rejected *WalletRejectionError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Reason, "destination address not allowlisted")

	require.Len(t, balances.debits, 1)
	require.Len(t, balances.reversed, 1)
	assert.Equal(t, balances.debits[0].Reference, balances.reversed[0].Reference)
	assert.True(t, balances.balance.Equal(decimal.NewFromInt(1)))
	assert.Empty(t, custody.lookups)
}

func TestCustodialDispatcherAmbiguousFailure(t *testing.T) {
	timeout := errors.New("unable to create withdrawal: context deadline exceeded")
	tests := []struct {
		name         string
		custody      *fakeCustody
		wantHandle   bool
		wantRejected bool
		wantReversed bool
	}{
		{
			name:       "listed after timeout",
			custody:    &fakeCustody{withdrawErr: timeout, listed: &models.PrimeTransaction{Id: "tx-9", Status: "TRANSACTION_CREATED"}},
			wantHandle: true,
		},
		{
			name:    "not listed",
			custody: &fakeCustody{withdrawErr: timeout},
		},
		{
			name:    "lookup fails",
			custody: &fakeCustody{withdrawErr: timeout, findErr: errors.New("unable to list wallet transactions")},
		},
		{
			name:         "listed as rejected",
			custody:      &fakeCustody{withdrawErr: timeout, listed: &models.PrimeTransaction{Id: "tx-9", Status: prime.StatusRejected}},
			wantRejected: true,
			wantReversed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balances := &fakeBalances{balance: decimal.NewFromInt(1)}
			d := NewCustodialDispatcher(tt.custody, balances, "portfolio-1")
			transfer := newTransfer(models.AssetBTC, "0.5", custodialSession())

			handle, err := d.Dispatch(context.Background(), transfer)
			require.Equal(t, []string{transfer.AttemptId}, tt.custody.lookups)
			require.Len(t, balances.debits, 1)

			if tt.wantHandle {
				require.NoError(t, err)
				assert.Equal(t, "tx-9", handle.ActivityId)
				assert.Equal(t, transfer.AttemptId, handle.IdempotencyKey)
				assert.Empty(t, balances.reversed)
				return
			}

			require.Error(t, err)
			var rejected *WalletRejectionError
			assert.Equal(t, tt.wantRejected, errors.As(err, &rejected))
			if tt.wantReversed {
				assert.Len(t, balances.reversed, 1)
				assert.True(t, balances.balance.Equal(decimal.NewFromInt(1)))
			} else {
				assert.Empty(t, balances.reversed)
				assert.True(t, balances.balance.Equal(decimal.RequireFromString("0.5")))
			}
		})
	}
}

func TestCustodialDispatcherInsufficientFunds(t *testing.T) {
	custody := &fakeCustody{}
	d := NewCustodialDispatcher(custody, &fakeBalances{balance: decimal.RequireFromString("0.01")}, "portfolio-1")

	_, err := d.Dispatch(context.Background(), newTransfer(models.AssetBTC, "0.5", custodialSession()))
	var rejected *WalletRejectionError
	require.ErrorAs(t, err, &rejected)
	assert.ErrorIs(t, err, store.ErrInsufficientFunds)
	assert.Empty(t, custody.requests)
}

func TestCustodialDispatcherNoWallet(t *testing.T) {
	custody := &fakeCustody{walletErr: prime.ErrWalletNotFound}
	d := NewCustodialDispatcher(custody, &fakeBalances{balance: decimal.NewFromInt(1)}, "portfolio-1")
	_, err := d.Dispatch(context.Background(), newTransfer(models.AssetSOL, "1", custodialSession()))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestManualInstructions(t *testing.T) {
	tests := []struct {
		name   string
		asset  models.Asset
		amount string
		uri    string
	}{
		{"bitcoin", models.AssetBTC, "0.00266667", "bitcoin:" + merchantBTC + "?amount=0.00266667"},
		{"bitcoin rounds up to satoshi", models.AssetBTC, "0.000000011", "bitcoin:" + merchantBTC + "?amount=0.00000002"},
		{"solana", models.AssetSOL, "1.2", "solana:" + merchantSOL + "?amount=1.2"},
		{"ethereum", models.AssetETH, "0.06", "ethereum:" + merchantEVM},
	}
	m := NewManualDispatcher(false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instr, err := m.Instructions(newTransfer(tt.asset, tt.amount, keystoreSession()))
			require.NoError(t, err)
			assert.Equal(t, tt.uri, instr.PaymentURI)
			assert.Empty(t, instr.QRCode)
		})
	}
}

func TestPaymentURIWithoutAmount(t *testing.T) {
	assert.Equal(t, "bitcoin:"+merchantBTC, PaymentURI(models.NetworkBitcoin, merchantBTC, decimal.Zero))
	assert.Equal(t, "solana:"+merchantSOL, PaymentURI(models.NetworkSolana, merchantSOL, decimal.Zero))
}

func TestManualInstructionsWithQRCode(t *testing.T) {
	handle, err := NewManualDispatcher(true).Dispatch(context.Background(), newTransfer(models.AssetBTC, "0.01", keystoreSession()))
	require.NoError(t, err)
	assert.Equal(t, models.PathManual, handle.Path)
	require.NotNil(t, handle.Manual)
	assert.True(t, strings.HasPrefix(handle.Manual.QRCode, "data:image/png;base64,"))
}

func TestManualInstructionsRejectMalformedAddress(t *testing.T) {
	transfer := newTransfer(models.AssetBTC, "0.01", keystoreSession())
	transfer.Recipient = "not-an-address"
	_, err := NewManualDispatcher(false).Instructions(transfer)
	var vErr *quote.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, quote.CodeInvalidRecipient, vErr.Code)
}

func TestValidateRecipient(t *testing.T) {
	tests := []struct {
		name    string
		network models.Network
		address string
		valid   bool
	}{
		{"evm", models.NetworkEthereum, merchantEVM, true},
		{"evm short", models.NetworkEthereum, "0x1234", false},
		{"bech32", models.NetworkBitcoin, merchantBTC, true},
		{"btc garbage", models.NetworkBitcoin, "not-a-btc-address", false},
		{"solana", models.NetworkSolana, merchantSOL, true},
		{"solana with zero", models.NetworkSolana, "0WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", false},
		{"solana with capital O", models.NetworkSolana, "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWO", false},
		{"solana with capital I", models.NetworkSolana, "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWIM", false},
		{"solana with lowercase l", models.NetworkSolana, "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAlWM", false},
		{"solana too short", models.NetworkSolana, "9WzDXwBbmkg8ZTbN", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecipient(tt.network, tt.address)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var vErr *quote.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, quote.CodeInvalidRecipient, vErr.Code)
		})
	}
}

func TestRouter(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	evm := NewEVMDispatcher(&fakeBackend{}, key, 1, 21000, 65000)
	custodial := NewCustodialDispatcher(&fakeCustody{}, &fakeBalances{}, "p")
	manual := NewManualDispatcher(false)

	full := NewRouter(testCatalog(), evm, custodial, manual)
	noEVM := NewRouter(testCatalog(), nil, nil, manual)

	tests := []struct {
		name    string
		router  *Router
		session *models.WalletSession
		asset   models.Asset
		want    Dispatcher
		wantErr error
	}{
		{"keystore eth", full, keystoreSession(), models.AssetETH, evm, nil},
		{"keystore usdc", full, keystoreSession(), models.AssetUSDC, evm, nil},
		{"keystore btc is manual", full, keystoreSession(), models.AssetBTC, manual, nil},
		{"custodial btc", full, custodialSession(), models.AssetBTC, custodial, nil},
		{"custodial eth", full, custodialSession(), models.AssetETH, custodial, nil},
		{"keystore without evm", noEVM, keystoreSession(), models.AssetETH, nil, ErrUnsupported},
		{"custodial without custody", noEVM, custodialSession(), models.AssetBTC, manual, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.router.Route(tt.session, tt.asset)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.want, got)
		})
	}

	_, err = full.Route(&models.WalletSession{}, models.AssetETH)
	var vErr *quote.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, quote.CodeWalletNotConnected, vErr.Code)

	_, err = full.Route(keystoreSession(), models.AssetUSDT)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, quote.CodeMissingAsset, vErr.Code)
}

func TestRouterPath(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	router := NewRouter(testCatalog(), NewEVMDispatcher(&fakeBackend{}, key, 1, 21000, 65000), nil, nil)

	path, err := router.Path(keystoreSession(), models.AssetUSDC)
	require.NoError(t, err)
	assert.Equal(t, models.PathEVMToken, path)

	path, err = router.Path(keystoreSession(), models.AssetBTC)
	require.NoError(t, err)
	assert.Equal(t, models.PathManual, path)

	path, err = NewRouter(testCatalog(), nil, nil, nil).Path(keystoreSession(), models.AssetETH)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, models.PathManual, path)
}
