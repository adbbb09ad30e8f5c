package session

import (
	"testing"
	"time"
)

func TestAttemptTracker(t *testing.T) {
	a := newAttemptTracker(time.Minute)
	for want := 1; want <= 3; want++ {
		if got := a.reject("10.0.0.1"); got != want {
			t.Errorf("reject() #%d want = %d, got = %d", want, want, got)
		}
	}
	if got := a.reject("10.0.0.2"); got != 1 {
		t.Errorf("reject() for a new host want = 1, got = %d", got)
	}
}

func TestAttemptTracker_Expiry(t *testing.T) {
	a := newAttemptTracker(10 * time.Millisecond)
	a.reject("10.0.0.1")
	a.reject("10.0.0.1")
	time.Sleep(20 * time.Millisecond)

	if got := a.reject("10.0.0.1"); got != 1 {
		t.Errorf("reject() after the window want = 1, got = %d", got)
	}
}
