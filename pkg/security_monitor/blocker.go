package security_monitor

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

var errSourceAlerted = errors.New("source exceeded alert threshold")

// sourceBlocker wraps one circuit breaker per alerted source. An alert
// trips the breaker open; after the block duration it goes half-open and
// successful probes close it again.
type sourceBlocker struct {
	breaker *gobreaker.CircuitBreaker
}

func newSourceBlocker(source string, blockDuration time.Duration) *sourceBlocker {
	settings := gobreaker.Settings{
		Name:        source,
		MaxRequests: 5,
		Timeout:     blockDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	}
	return &sourceBlocker{
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *sourceBlocker) trip() {
	_, _ = b.breaker.Execute(func() (interface{}, error) {
		return nil, errSourceAlerted
	})
}

func (b *sourceBlocker) allow() bool {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, nil
	})
	return err == nil
}
