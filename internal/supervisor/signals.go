package supervisor

import (
	"context"
	"os/signal"
	"syscall"
)

// NotifyContext returns a context cancelled on SIGINT or SIGTERM. The signal
// handler only cancels; the supervisor's poll loop observes the cancellation
// and runs the one cleanup path, so a signal can never race a second cleanup
// into existence.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
