package dispatch

import (
	"context"
	"errors"

	"token-checkout-go/internal/models"
	"token-checkout-go/internal/quote"
	"token-checkout-go/internal/wallet"
)

// Router chooses the transfer path from the session's adapter and the
// asset's dispatch kind. Custodial sessions pay every asset custody holds;
// keystore sessions pay EVM assets on their chain; manual assets always get
// instructions.
type Router struct {
	catalog   models.AssetCatalog
	evm       *EVMDispatcher
	custodial *CustodialDispatcher
	manual    *ManualDispatcher
}

// NewRouter accepts nil for paths that are not configured.
func NewRouter(catalog models.AssetCatalog, evm *EVMDispatcher, custodial *CustodialDispatcher, manual *ManualDispatcher) *Router {
	if manual == nil {
		manual = NewManualDispatcher(false)
	}
	return &Router{catalog: catalog, evm: evm, custodial: custodial, manual: manual}
}

func (r *Router) Route(session *models.WalletSession, asset models.Asset) (Dispatcher, error) {
	info, ok := r.catalog.Get(asset)
	if !ok {
		return nil, quote.NewValidationError(quote.CodeMissingAsset, "asset %q is not offered", asset)
	}
	if session == nil || !session.Connected {
		return nil, quote.NewValidationError(quote.CodeWalletNotConnected, "connect a wallet first")
	}

	switch {
	case session.Adapter == wallet.CustodialAdapterName && r.custodial != nil:
		return r.custodial, nil
	case info.Dispatch == models.DispatchManual:
		return r.manual, nil
	case session.Adapter == wallet.KeystoreAdapterName && r.evm != nil && r.evm.Serves(info):
		return r.evm, nil
	}
	return nil, ErrUnsupported
}

// Path names the transfer path Route would take. Unsupported combinations
// report PathManual together with ErrUnsupported.
func (r *Router) Path(session *models.WalletSession, asset models.Asset) (models.DispatchPath, error) {
	d, err := r.Route(session, asset)
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			return models.PathManual, err
		}
		return "", err
	}

	switch d {
	case Dispatcher(r.manual):
		return models.PathManual, nil
	case Dispatcher(r.custodial):
		return models.PathCustodial, nil
	}
	info, _ := r.catalog.Get(asset)
	if info.Dispatch == models.DispatchToken {
		return models.PathEVMToken, nil
	}
	return models.PathEVMNative, nil
}

func (r *Router) Dispatch(ctx context.Context, t Transfer) (*Handle, error) {
	d, err := r.Route(t.Session, t.Asset)
	if err != nil {
		return nil, err
	}
	return d.Dispatch(ctx, t)
}

// Instructions renders manual payment instructions for any transfer.
func (r *Router) Instructions(t Transfer) (*models.ManualInstructions, error) {
	return r.manual.Instructions(t)
}

// Reverse undoes the custodial debit of a transfer that failed after submission.
func (r *Router) Reverse(ctx context.Context, t Transfer) error {
	if r.custodial == nil || t.Session == nil || t.Session.Adapter != wallet.CustodialAdapterName {
		return nil
	}
	return r.custodial.Reverse(ctx, t)
}
