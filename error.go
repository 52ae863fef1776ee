package spc

import (
	"log/slog"
	"sync"

	"github.com/stvp/rollbar"
)

// ErrorReporter receives unexpected errors that should not stop processing, such as a failure
// to persist a result or to deliver a notification
type ErrorReporter interface {
	ReportError(err error)
}

type errorService struct {
	suppress bool
	logger   *slog.Logger
}

var rollbarOnce sync.Once

// NewErrorReporter sends errors to Rollbar.  Errors are only logged when reporting is suppressed
// or no token is configured.
func NewErrorReporter(cfg *Config, logger *slog.Logger) ErrorReporter {
	if logger == nil {
		logger = slog.Default()
	}
	suppress := cfg.NoErrorReports || cfg.RollbarToken == ""
	if !suppress {
		rollbarOnce.Do(func() {
			rollbar.Token = cfg.RollbarToken
			rollbar.Environment = cfg.Environment
		})
	}
	return errorService{suppress: suppress, logger: logger}
}

// ReportError logs the error and, unless suppressed, sends it to Rollbar
func (e errorService) ReportError(err error) {
	if err == nil {
		return
	}
	e.logger.Error("unexpected error", slog.Any("error", err))
	if !e.suppress {
		rollbar.Error(rollbar.ERR, err)
	}
}

// FlushErrors blocks until queued error reports have been sent
func FlushErrors() {
	rollbar.Wait()
}
