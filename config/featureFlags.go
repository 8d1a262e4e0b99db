package config

import (
	"os"
	"strings"
	"time"
)

// LedgerLockTimeout bounds a single ledger transaction, lock waits included.
//
// Set via env:
// - LEDGER_LOCK_TIMEOUT_SECONDS (default 10)
func LedgerLockTimeout() time.Duration {
	n := intFromEnv("LEDGER_LOCK_TIMEOUT_SECONDS", 10)
	if n <= 0 {
		n = 10
	}
	return time.Duration(n) * time.Second
}

// LedgerRetryAttempts is how many times RetryOnConflict runs an operation.
//
// Set via env:
// - LEDGER_RETRY_ATTEMPTS (default 3)
func LedgerRetryAttempts() int {
	n := intFromEnv("LEDGER_RETRY_ATTEMPTS", 3)
	if n <= 0 {
		return 1
	}
	return n
}

// LedgerRetryBackoff is the base delay between conflict retries; it doubles per attempt.
//
// Set via env:
// - LEDGER_RETRY_BACKOFF_MS (default 50)
func LedgerRetryBackoff() time.Duration {
	n := intFromEnv("LEDGER_RETRY_BACKOFF_MS", 50)
	if n < 0 {
		n = 0
	}
	return time.Duration(n) * time.Millisecond
}

// RequireOrderLock makes order operations fail when the redis order lock
// cannot be used, instead of proceeding on row locks alone.
//
// Set via env:
// - REQUIRE_ORDER_LOCK=true
func RequireOrderLock() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("REQUIRE_ORDER_LOCK")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
