package watcher

import (
	"context"
	"errors"
	"fmt"

	"token-checkout-go/internal/chain"
	"token-checkout-go/internal/dispatch"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EVMWatcher polls the node for the transaction receipt.
type EVMWatcher struct {
	backend chain.Backend
	cfg     Config
}

func NewEVMWatcher(backend chain.Backend, cfg Config) *EVMWatcher {
	return &EVMWatcher{backend: backend, cfg: cfg.withDefaults()}
}

func (w *EVMWatcher) Watch(ctx context.Context, handle *dispatch.Handle) <-chan Event {
	hash := common.HexToHash(handle.TxHash)
	return follow(ctx, "receipt:"+handle.TxHash, w.cfg, func(ctx context.Context) (Event, error) {
		return w.check(ctx, hash)
	})
}

func (w *EVMWatcher) check(ctx context.Context, hash common.Hash) (Event, error) {
	receipt, err := w.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return Event{Status: StatusPending, TxHash: hash.Hex()}, nil
	}
	if err != nil {
		return Event{}, fmt.Errorf("receipt lookup failed: %w", err)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return Event{Status: StatusFailed, Reason: "transaction reverted", TxHash: hash.Hex()}, nil
	}

	head, err := w.backend.BlockNumber(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("block number failed: %w", err)
	}

	var confirmations uint64
	if receipt.BlockNumber != nil && head >= receipt.BlockNumber.Uint64() {
		confirmations = head - receipt.BlockNumber.Uint64() + 1
	}
	if confirmations >= uint64(w.cfg.MinConfirmations) {
		return Event{Status: StatusConfirmed, TxHash: hash.Hex(), Confirmations: confirmations}, nil
	}
	return Event{Status: StatusPending, TxHash: hash.Hex(), Confirmations: confirmations}, nil
}
