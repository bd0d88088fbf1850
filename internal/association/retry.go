package association

// MaxConnectRetryAttempts is the default number of automatic reconnect
// attempts allowed after a Join.
const MaxConnectRetryAttempts = 5

// RetryBudget is a bounded counter of reconnect attempts. It is not safe for
// concurrent use; the Supervisor guards it.
type RetryBudget struct {
	max  int
	used int
}

// NewRetryBudget returns a budget allowing max attempts. A non-positive max
// allows none.
func NewRetryBudget(max int) *RetryBudget {
	if max < 0 {
		max = 0
	}
	return &RetryBudget{max: max}
}

// Allow consumes one attempt and reports whether it was available. The
// counter never exceeds the bound.
func (b *RetryBudget) Allow() bool {
	if b.used >= b.max {
		return false
	}
	b.used++
	return true
}

// Reset restores the full budget.
func (b *RetryBudget) Reset() {
	b.used = 0
}

// Used returns the attempts consumed since the last Reset.
func (b *RetryBudget) Used() int {
	return b.used
}

// Max returns the bound.
func (b *RetryBudget) Max() int {
	return b.max
}

// Exhausted reports whether no attempt is left.
func (b *RetryBudget) Exhausted() bool {
	return b.used >= b.max
}
