package metrics

import "time"

// Recorder receives checkout events. Labels that a backend does not know are ignored.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Event names used across the checkout.
const (
	EventPaymentTransition = "payment_transition"
	EventFeedFailure       = "feed_failure"
	EventFallbackUsed      = "fallback_used"
	EventWatchTimeout      = "watch_timeout"

	OpSpotRefresh = "spot_refresh"
	OpFeeRefresh  = "fee_refresh"
	OpDispatch    = "dispatch"
)
