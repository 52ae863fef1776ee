// Package notify delivers alert notifications to external collaborators
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BTBurke/spc/pkg/alert"
	"github.com/BTBurke/spc/pkg/stat"
)

// ErrRejected is returned by a Sender when the receiver refused the notification.  Retrying a
// rejected notification does not help.
var ErrRejected = errors.New("notify: receiver rejected notification")

// Sender delivers a notification to an external collaborator.  Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, n alert.Notification) error
}

// LogSender writes notifications to a structured log.  It is the sender used when no transport is
// configured.
type LogSender struct {
	Logger *slog.Logger
}

// Send logs the notification at warn level for warning and critical alerts and at info level
// otherwise
func (l LogSender) Send(ctx context.Context, n alert.Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.AlertType == stat.AlertWarning || n.AlertType == stat.AlertCritical {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "cpk alert",
		slog.String("alert", string(n.AlertType)),
		slog.String("previous", string(n.Previous)),
		slog.Any("cpk", n.Cpk),
		slog.String("classification", string(n.Classification)),
		slog.String("product", n.ProductCode),
		slog.String("station", n.StationName),
		slog.String("characteristic", n.Characteristic),
	)
	return nil
}
