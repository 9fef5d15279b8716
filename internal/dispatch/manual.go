package dispatch

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

const defaultQRSize = 256

// ManualDispatcher moves nothing: it produces the address, amount and
// payment URI the payer needs to send funds from their own wallet.
type ManualDispatcher struct {
	qrCodes bool
	qrSize  int
	now     func() time.Time
}

func NewManualDispatcher(qrCodes bool) *ManualDispatcher {
	return &ManualDispatcher{qrCodes: qrCodes, qrSize: defaultQRSize, now: time.Now}
}

func (m *ManualDispatcher) Dispatch(_ context.Context, t Transfer) (*Handle, error) {
	instructions, err := m.Instructions(t)
	if err != nil {
		return nil, err
	}
	return &Handle{Path: models.PathManual, Asset: t.Asset, Manual: instructions, SubmittedAt: m.now()}, nil
}

func (m *ManualDispatcher) Instructions(t Transfer) (*models.ManualInstructions, error) {
	if err := ValidateRecipient(t.Info.Network, t.Recipient); err != nil {
		return nil, err
	}

	amount := t.Amount
	if t.Info.Decimals > 0 {
		amount = amount.RoundCeil(t.Info.Decimals)
	}

	instructions := &models.ManualInstructions{
		Asset:      t.Asset,
		Network:    t.Info.Network,
		Address:    t.Recipient,
		Amount:     amount,
		PaymentURI: PaymentURI(t.Info.Network, t.Recipient, amount),
	}

	if m.qrCodes {
		qr, err := qrDataURL(instructions.PaymentURI, m.qrSize)
		if err != nil {
			return nil, err
		}
		instructions.QRCode = qr
	}
	return instructions, nil
}

// PaymentURI builds the wallet deep link for a network. A non-positive
// amount leaves the amount for the payer to fill in.
func PaymentURI(network models.Network, address string, amount decimal.Decimal) string {
	var scheme string
	switch {
	case network == models.NetworkBitcoin:
		scheme = "bitcoin"
	case network == models.NetworkSolana:
		scheme = "solana"
	case network.IsEVM():
		return "ethereum:" + address
	default:
		return address
	}
	if !amount.IsPositive() {
		return scheme + ":" + address
	}
	return fmt.Sprintf("%s:%s?amount=%s", scheme, address, amount.String())
}

func qrDataURL(content string, size int) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("unable to render QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
