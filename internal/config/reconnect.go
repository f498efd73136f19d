package config

import "time"

// ReconnectPolicy bounds how a streaming execution recovers from lost connections.
type ReconnectPolicy struct {
	// MaxAttempts is the number of consecutive connection losses tolerated.
	// The counter resets whenever output arrives.
	MaxAttempts int

	// BaseDelay is the backoff before the first reconnect attempt.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
}

// DefaultReconnectPolicy allows 5 consecutive losses with backoff
// 500ms, 1s, 2s, 4s, 8s.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

// IsZero reports whether the policy is unset.
func (p ReconnectPolicy) IsZero() bool {
	return p == ReconnectPolicy{}
}

// Delay returns the backoff before reconnect attempt n (1-based):
// BaseDelay doubled n-1 times, capped at MaxDelay.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}

		delay *= 2
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	return delay
}
