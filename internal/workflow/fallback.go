package workflow

import (
	"context"
	"time"

	"github.com/archon-io/archon/internal/logging"
)

// DefaultAdvisorTimeout bounds one advisory call. The deterministic path
// must stay responsive no matter how the advisor behaves.
const DefaultAdvisorTimeout = 10 * time.Second

// advise runs one advisory call under a timeout. It returns ok=false on
// any failure, and the caller proceeds with its deterministic result.
func advise[T any](ctx context.Context, timeout time.Duration, step string, call func(context.Context) (T, error)) (T, bool) {
	if timeout <= 0 {
		timeout = DefaultAdvisorTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := call(ctx)
	if err != nil {
		logging.Warn("advisor failed, using deterministic result", "step", step, "error", err)
		var zero T
		return zero, false
	}
	return out, true
}
