package transcribe

import "time"

// Poller computes the wait schedule for a transcription job: capped-linear
// backoff under a hard wait budget. It replaces blind fixed-interval polling
// so callers can observe elapsed and remaining budget.
type Poller struct {
	Base   time.Duration
	Step   time.Duration
	Cap    time.Duration
	Budget time.Duration
}

// DefaultPoller matches the reference behavior: ~3s between polls growing to
// a 10s cap, giving up after 12 minutes.
func DefaultPoller() Poller {
	return Poller{
		Base:   3 * time.Second,
		Step:   time.Second,
		Cap:    10 * time.Second,
		Budget: 12 * time.Minute,
	}
}

// Delay returns the wait before poll attempt n (0-based).
func (p Poller) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Base + time.Duration(attempt)*p.Step
	if d > p.Cap {
		d = p.Cap
	}
	return d
}

// Remaining returns the budget left given the elapsed wait time. A zero or
// negative result means the budget is spent.
func (p Poller) Remaining(elapsed time.Duration) time.Duration {
	return p.Budget - elapsed
}
