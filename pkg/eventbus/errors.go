package eventbus

import "errors"

// ErrShutdownTimeout is returned if calling eventbus.Shutdown(ctx) causes the context to timeout
// before all subscribers have exited
var ErrShutdownTimeout = errors.New("eventbus: context timeout or cancelled before all subscribers exited")
