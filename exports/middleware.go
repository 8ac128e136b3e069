package exports

import (
	"log/slog"
	"time"
)

// Handler runs one exported call.
type Handler func(call *Call) error

// Middleware wraps a Handler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
// Panics are recovered outside the whole chain, so middleware does not
// need to handle them.
type Middleware func(next Handler) Handler

// terminal runs the body of the call.
func terminal(call *Call) error {
	return call.body()
}

// chain applies middleware in reverse order so the first wraps outermost.
func chain(mw []Middleware) Handler {
	h := Handler(terminal)
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// LoggingMiddleware logs every exported call and its outcome at debug level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(call *Call) error {
			start := time.Now()
			err := next(call)
			if err != nil {
				logger.Debug("exported call failed",
					"operation", call.Operation, "duration", time.Since(start), "error", err)
			} else {
				logger.Debug("exported call completed",
					"operation", call.Operation, "duration", time.Since(start))
			}
			return err
		}
	}
}
