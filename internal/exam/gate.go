package exam

import "time"

// Gate states per (student, exam) pair. The state is derived from the attempt
// ledger and payment records at check time; nothing is stored, and cooldown
// expiry is evaluated lazily against the supplied clock.
type GateState string

const (
	GateEligible        GateState = "eligible"
	GateExhaustedUnpaid GateState = "exhausted_unpaid"
	GatePaidWaiting     GateState = "paid_waiting"
	GatePaidReady       GateState = "paid_ready"
)

// GateDecision is the retry gate's answer to "may this student attempt the
// exam right now". When Allowed is false, Denial carries the structured
// guidance for the caller.
type GateDecision struct {
	State       GateState   `json:"state"`
	Allowed     bool        `json:"allowed"`
	IsPaidRetry bool        `json:"is_paid_retry"`
	PaymentID   string      `json:"payment_id,omitempty"` // payment consumed if the attempt proceeds
	NextAttempt int         `json:"next_attempt"`
	Denial      *GateDenied `json:"denial,omitempty"`
}

// DecideGate is the single gating decision function. attempts must be the
// full ledger for the (student, exam) pair, payments all retry payments for
// the pair, in creation order.
func DecideGate(e Exam, attempts []AttemptRecord, payments []RetryPayment, now time.Time) GateDecision {
	next := len(attempts) + 1

	if len(attempts) < e.MaxAttempts {
		return GateDecision{State: GateEligible, Allowed: true, NextAttempt: next}
	}

	// Oldest usable payment wins; a payment funds exactly one attempt.
	for _, p := range payments {
		if p.Consumable(now) {
			return GateDecision{
				State:       GatePaidReady,
				Allowed:     true,
				IsPaidRetry: true,
				PaymentID:   p.ID,
				NextAttempt: next,
			}
		}
	}

	// Paid but still cooling down.
	for _, p := range payments {
		if p.Status == PaymentPaid && p.ConsumedBy == "" && p.RetryAvailableAt != nil && p.RetryAvailableAt.After(now) {
			unlock := *p.RetryAvailableAt
			return GateDecision{
				State:       GatePaidWaiting,
				NextAttempt: next,
				Denial:      &GateDenied{Reason: DenyCooldown, UnlockAt: &unlock},
			}
		}
	}

	var unlockAt *time.Time
	if len(attempts) > 0 {
		t := attempts[len(attempts)-1].SubmittedAt.Add(time.Duration(e.RetryWaitDays) * 24 * time.Hour)
		unlockAt = &t
	}

	if e.RetryFeeCents == 0 {
		// No fee configured: the cooldown since the last attempt is the only
		// barrier, and elapsed cooldown re-opens a free attempt.
		if unlockAt == nil || !unlockAt.After(now) {
			return GateDecision{State: GateEligible, Allowed: true, NextAttempt: next}
		}
		return GateDecision{
			State:       GateExhaustedUnpaid,
			NextAttempt: next,
			Denial:      &GateDenied{Reason: DenyCooldown, UnlockAt: unlockAt},
		}
	}

	return GateDecision{
		State:       GateExhaustedUnpaid,
		NextAttempt: next,
		Denial: &GateDenied{
			Reason:           DenyExhausted,
			UnlockAt:         unlockAt,
			FeeRequiredCents: e.RetryFeeCents,
		},
	}
}
