package transcribe

import (
	"testing"
	"time"
)

func TestPollerDelayCappedLinear(t *testing.T) {
	p := DefaultPoller()
	if got := p.Delay(0); got != 3*time.Second {
		t.Fatalf("first delay = %s, want 3s", got)
	}
	if got := p.Delay(2); got != 5*time.Second {
		t.Fatalf("third delay = %s, want 5s", got)
	}
	if got := p.Delay(100); got != 10*time.Second {
		t.Fatalf("late delay = %s, want cap 10s", got)
	}
	if got := p.Delay(-1); got != 3*time.Second {
		t.Fatalf("negative attempt delay = %s, want base 3s", got)
	}
}

func TestPollerRemainingBudget(t *testing.T) {
	p := DefaultPoller()
	if got := p.Remaining(0); got != 12*time.Minute {
		t.Fatalf("remaining at start = %s, want 12m", got)
	}
	if got := p.Remaining(12 * time.Minute); got > 0 {
		t.Fatalf("remaining at budget = %s, want <= 0", got)
	}
}
