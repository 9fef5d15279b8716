package dispatch

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"token-checkout-go/internal/chain"
	"token-checkout-go/internal/models"
	"token-checkout-go/internal/quote"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const nativeDecimals = 18

// EVMDispatcher signs and broadcasts transfers from a keystore wallet.
type EVMDispatcher struct {
	backend        chain.Backend
	key            *ecdsa.PrivateKey
	from           common.Address
	chainID        *big.Int
	gasLimitNative uint64
	gasLimitToken  uint64
	now            func() time.Time

	// serializes nonce reservation
	mu sync.Mutex
}

func NewEVMDispatcher(backend chain.Backend, key *ecdsa.PrivateKey, chainID int64, gasLimitNative, gasLimitToken uint64) *EVMDispatcher {
	return &EVMDispatcher{
		backend:        backend,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		chainID:        big.NewInt(chainID),
		gasLimitNative: gasLimitNative,
		gasLimitToken:  gasLimitToken,
		now:            time.Now,
	}
}

// Serves reports whether the asset lives on this dispatcher's chain.
func (d *EVMDispatcher) Serves(info models.AssetInfo) bool {
	if !info.Network.IsEVM() || info.Network.ChainID() != d.chainID.Int64() {
		return false
	}
	return info.Dispatch == models.DispatchNative || info.Dispatch == models.DispatchToken
}

func (d *EVMDispatcher) Dispatch(ctx context.Context, t Transfer) (*Handle, error) {
	if err := ValidateTransfer(t); err != nil {
		return nil, err
	}
	if !d.Serves(t.Info) {
		return nil, ErrUnsupported
	}

	var handle *Handle
	var err error
	if t.Info.Dispatch == models.DispatchToken {
		handle, err = d.SendToken(ctx, t.Info.Contract, t.Recipient, t.Amount, t.Info.Decimals)
	} else {
		handle, err = d.SendNative(ctx, t.Recipient, t.Amount)
	}
	if err != nil {
		return nil, err
	}
	handle.Asset = t.Asset
	return handle, nil
}

// SendNative transfers amount of the chain's native coin to the recipient.
func (d *EVMDispatcher) SendNative(ctx context.Context, to string, amount decimal.Decimal) (*Handle, error) {
	if err := ValidateRecipient(models.NetworkEthereum, to); err != nil {
		return nil, err
	}
	value, err := chain.ToBaseUnits(amount, nativeDecimals)
	if err != nil {
		return nil, quote.NewValidationError(quote.CodeInvalidAmount, "%v", err)
	}

	hash, err := d.signAndSend(ctx, common.HexToAddress(to), value, nil, d.gasLimitNative)
	if err != nil {
		return nil, err
	}
	return &Handle{Path: models.PathEVMNative, TxHash: hash.Hex(), SubmittedAt: d.now()}, nil
}

// SendToken calls transfer(to, amount) on an ERC20 contract.
func (d *EVMDispatcher) SendToken(ctx context.Context, contract, to string, amount decimal.Decimal, decimals int32) (*Handle, error) {
	if err := ValidateRecipient(models.NetworkEthereum, to); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("invalid token contract %q", contract)
	}
	units, err := chain.ToBaseUnits(amount, decimals)
	if err != nil {
		return nil, quote.NewValidationError(quote.CodeInvalidAmount, "%v", err)
	}

	data, err := chain.PackTransfer(common.HexToAddress(to), units)
	if err != nil {
		return nil, fmt.Errorf("pack call data failed: %w", err)
	}

	hash, err := d.signAndSend(ctx, common.HexToAddress(contract), big.NewInt(0), data, d.gasLimitToken)
	if err != nil {
		return nil, err
	}
	return &Handle{Path: models.PathEVMToken, TxHash: hash.Hex(), SubmittedAt: d.now()}, nil
}

func (d *EVMDispatcher) signAndSend(ctx context.Context, to common.Address, value *big.Int, data []byte, gasLimit uint64) (common.Hash, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	nonce, err := d.backend.PendingNonceAt(ctx, d.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce failed: %w", err)
	}
	head, err := d.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header failed: %w", err)
	}

	var txData types.TxData
	if head.BaseFee != nil {
		tip, err := d.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("suggest gas tip failed: %w", err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		txData = &types.DynamicFeeTx{
			ChainID:   d.chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gasLimit,
			To:        &to,
			Value:     value,
			Data:      data,
		}
	} else {
		gasPrice, err := d.backend.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("suggest gas price failed: %w", err)
		}
		txData = &types.LegacyTx{Nonce: nonce, GasPrice: gasPrice, Gas: gasLimit, To: &to, Value: value, Data: data}
	}

	signed, err := types.SignNewTx(d.key, types.NewLondonSigner(d.chainID), txData)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx failed: %w", err)
	}

	if err := d.backend.SendTransaction(ctx, signed); err != nil {
		zap.L().Warn("Transaction rejected by node",
			zap.String("to", to.Hex()),
			zap.Uint64("nonce", nonce),
			zap.Error(err))
		return common.Hash{}, rejection(err)
	}

	zap.L().Info("Transaction broadcast",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.String("value", value.String()),
		zap.Uint64("nonce", nonce))
	return signed.Hash(), nil
}
