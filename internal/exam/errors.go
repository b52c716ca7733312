package exam

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound covers missing exams, attempts and payments. Callers map it to
// a 404.
var ErrNotFound = errors.New("not found")

// ErrConflict signals that a conditional write lost a race (duplicate attempt
// number, double-consumed payment). The ledger retries the read-then-write
// sequence a bounded number of times before giving up.
var ErrConflict = errors.New("concurrency conflict")

// ConfigError marks a broken exam configuration (zero questions, essay exam
// without a pre-score, module without an exam). Never retried.
type ConfigError struct{ Msg string }

func (e *ConfigError) Error() string { return "invalid configuration: " + e.Msg }

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// Denial reasons reported by the retry gate.
const (
	DenyExhausted = "exhausted" // free attempts used up, no usable payment
	DenyCooldown  = "cooldown"  // payment made (or fee waived), wait not over
)

// GateDenied is the expected, structured outcome of a denied attempt. It is
// an error so it propagates out of RecordAttempt untouched, but it is not a
// system fault and is never logged as one.
type GateDenied struct {
	Reason           string     `json:"reason"`
	UnlockAt         *time.Time `json:"unlock_at,omitempty"`
	FeeRequiredCents int64      `json:"fee_required_cents,omitempty"`
}

func (d *GateDenied) Error() string {
	if d.UnlockAt != nil {
		return fmt.Sprintf("attempt denied: %s (unlocks %s)", d.Reason, d.UnlockAt.UTC().Format(time.RFC3339))
	}
	return "attempt denied: " + d.Reason
}
