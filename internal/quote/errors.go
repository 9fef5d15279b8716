package quote

import "fmt"

// Validation error codes reported before any wallet is contacted.
const (
	CodeMissingAmount       = "missing_amount"
	CodeMissingAsset        = "missing_asset"
	CodeWalletNotConnected  = "wallet_not_connected"
	CodeInsufficientBalance = "insufficient_balance"
	CodeInvalidRecipient    = "invalid_recipient"
	CodeInvalidAmount       = "invalid_amount"
)

// ValidationError is a user input problem. It is reported as is and never retried.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewValidationError(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}
