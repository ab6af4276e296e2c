package settings

// DB config keys and defaults for runtime-tunable inventory behavior.
const (
	// BookingHoldMinutesKey controls how long a checkout hold stays exclusive.
	BookingHoldMinutesKey = "BOOKING_HOLD_MINUTES"
	// ReconcileIntervalSecondsKey controls the reconciliation sweep interval.
	ReconcileIntervalSecondsKey = "RECONCILE_INTERVAL_SECONDS"
	// StockCacheTTLSecondsKey controls how long cached stock values stay warm.
	StockCacheTTLSecondsKey = "STOCK_CACHE_TTL_SECONDS"

	// DefaultBookingHoldMinutes is the fallback checkout hold window.
	DefaultBookingHoldMinutes = 15
	// DefaultReconcileIntervalSeconds is the fallback sweep interval (seconds).
	DefaultReconcileIntervalSeconds = 60
	// DefaultStockCacheTTLSeconds is the fallback stock cache TTL (seconds).
	DefaultStockCacheTTLSeconds = 30
)
