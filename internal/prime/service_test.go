package prime

import (
	"errors"
	"testing"

	core "github.com/coinbase-samples/core-go"
)

func TestIsTerminalStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusDone, true},
		{StatusRejected, true},
		{StatusExpired, true},
		{"TRANSACTION_CREATED", false},
		{"TRANSACTION_BROADCASTING", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsTerminalStatus(tt.status); got != tt.want {
			t.Errorf("IsTerminalStatus(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestWithdrawalError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantRejected bool
	}{
		{"bad request", &core.ApiError{Message: "destination not allowlisted", CodeReceived: 400}, true},
		{"forbidden", &core.ApiError{Message: "insufficient permissions", CodeReceived: 403}, true},
		{"rate limited", &core.ApiError{CodeReceived: 429}, true},
		{"request timeout", &core.ApiError{CodeReceived: 408}, false},
		{"conflict", &core.ApiError{CodeReceived: 409}, false},
		{"server error", &core.ApiError{CodeReceived: 502}, false},
		{"no response", &core.ApiError{Message: "context deadline exceeded"}, false},
		{"transport", errors.New("connection reset by peer"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := withdrawalError(tt.err)
			if got := errors.Is(err, ErrWithdrawalRejected); got != tt.wantRejected {
				t.Errorf("withdrawalError(%v) rejected = %v, want %v", tt.err, got, tt.wantRejected)
			}
		})
	}
}
