package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"token-checkout-go/internal/chain"
	"token-checkout-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const KeystoreAdapterName = "keystore"

// KeystoreAdapter is a self-custody EVM wallet backed by a private key.
// It resolves balances for catalog assets on the chain the backend serves;
// other assets stay unresolved.
type KeystoreAdapter struct {
	backend chain.Backend
	chainID int64
	key     *ecdsa.PrivateKey
	address common.Address
	catalog models.AssetCatalog
}

func NewKeystoreAdapter(backend chain.Backend, chainID int64, privateKeyHex string, catalog models.AssetCatalog) (*KeystoreAdapter, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if keyHex == "" {
		return nil, fmt.Errorf("private key is empty")
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid signer key: %w", err)
	}

	return &KeystoreAdapter{
		backend: backend,
		chainID: chainID,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		catalog: catalog,
	}, nil
}

func (k *KeystoreAdapter) Name() string { return KeystoreAdapterName }

func (k *KeystoreAdapter) Address() common.Address { return k.address }

func (k *KeystoreAdapter) PrivateKey() *ecdsa.PrivateKey { return k.key }

func (k *KeystoreAdapter) ChainID() int64 { return k.chainID }

// IsAvailable checks that the node answers.
func (k *KeystoreAdapter) IsAvailable(ctx context.Context) bool {
	if k.backend == nil {
		return false
	}
	if _, err := k.backend.BlockNumber(ctx); err != nil {
		zap.L().Warn("Keystore wallet node unreachable", zap.Error(err))
		return false
	}
	return true
}

func (k *KeystoreAdapter) Connect(ctx context.Context) (*models.WalletSession, error) {
	session := &models.WalletSession{Address: k.address.Hex()}
	balances, err := k.Balances(ctx, session)
	if err != nil {
		return nil, err
	}
	session.Balances = balances
	return session, nil
}

// Serves reports whether this wallet can sign for the asset.
func (k *KeystoreAdapter) Serves(info models.AssetInfo) bool {
	return info.Network.IsEVM() && info.Network.ChainID() == k.chainID && info.Dispatch != models.DispatchManual
}

// Balances reads every servable asset. A failed read leaves that asset
// unresolved rather than failing the whole refresh.
func (k *KeystoreAdapter) Balances(ctx context.Context, _ *models.WalletSession) (map[models.Asset]decimal.Decimal, error) {
	balances := make(map[models.Asset]decimal.Decimal)
	for _, asset := range k.catalog.Assets() {
		info, _ := k.catalog.Get(asset)
		if !k.Serves(info) {
			continue
		}

		balance, err := k.readBalance(ctx, info)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("Failed to read wallet balance",
				zap.String("asset", asset.String()),
				zap.Error(err))
			continue
		}
		balances[asset] = balance
	}
	return balances, nil
}

func (k *KeystoreAdapter) readBalance(ctx context.Context, info models.AssetInfo) (decimal.Decimal, error) {
	switch info.Dispatch {
	case models.DispatchNative:
		wei, err := k.backend.BalanceAt(ctx, k.address, nil)
		if err != nil {
			return decimal.Zero, err
		}
		return chain.FromBaseUnits(wei, info.Decimals), nil
	case models.DispatchToken:
		units, err := chain.TokenBalance(ctx, k.backend, common.HexToAddress(info.Contract), k.address)
		if err != nil {
			return decimal.Zero, err
		}
		return chain.FromBaseUnits(units, info.Decimals), nil
	}
	return decimal.Zero, fmt.Errorf("unsupported dispatch kind %q", info.Dispatch)
}
