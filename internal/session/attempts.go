package session

import (
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	rejectionWindow = time.Minute
	// Rejections from one address within the window before it's logged as suspicious.
	rejectionWarnThreshold = 3
)

// attemptTracker counts rejected logins per remote host.
type attemptTracker struct {
	rejections *cache.Cache
}

func newAttemptTracker(window time.Duration) *attemptTracker {
	return &attemptTracker{rejections: cache.New(window, 2*window)}
}

// reject records a rejection from host and returns how many there have been
// within the window.
func (a *attemptTracker) reject(host string) int {
	if err := a.rejections.Add(host, 1, cache.DefaultExpiration); err == nil {
		return 1
	}
	n, err := a.rejections.IncrementInt(host, 1)
	if err != nil {
		// Expired between Add and IncrementInt.
		a.rejections.SetDefault(host, 1)
		return 1
	}
	return n
}
