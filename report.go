package spc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTBurke/spc/pkg/alert"
	"github.com/BTBurke/spc/pkg/eventbus"
	"github.com/BTBurke/spc/pkg/notify"
	"github.com/cenkalti/backoff"
)

// Reporter delivers alert notifications published on the event bus to a notify.Sender.  Each
// notification is sent in the background and retried with exponential backoff until it succeeds
// or the notify timeout expires.
type Reporter struct {
	sender     notify.Sender
	timeout    time.Duration
	logger     *slog.Logger
	errors     ErrorReporter
	metrics    *Metrics
	newBackOff func() backoff.BackOff

	wg   sync.WaitGroup
	done chan struct{}
}

// ReporterOption configures a Reporter
type ReporterOption func(r *Reporter)

// WithReporterLogger sets the logger, slog.Default() otherwise
func WithReporterLogger(l *slog.Logger) ReporterOption {
	return func(r *Reporter) {
		r.logger = l
	}
}

// WithReporterErrors sets where failed deliveries are reported
func WithReporterErrors(e ErrorReporter) ReporterOption {
	return func(r *Reporter) {
		r.errors = e
	}
}

// WithReporterMetrics counts delivery results
func WithReporterMetrics(m *Metrics) ReporterOption {
	return func(r *Reporter) {
		r.metrics = m
	}
}

// WithBackOff replaces the default exponential backoff policy
func WithBackOff(f func() backoff.BackOff) ReporterOption {
	return func(r *Reporter) {
		r.newBackOff = f
	}
}

// NewReporter returns a reporter that gives up on a notification after timeout.  A zero timeout
// defaults to one minute.
func NewReporter(sender notify.Sender, timeout time.Duration, opts ...ReporterOption) *Reporter {
	if timeout <= 0 {
		timeout = time.Minute
	}
	r := &Reporter{
		sender:  sender,
		timeout: timeout,
		logger:  slog.Default(),
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.errors == nil {
		r.errors = errorService{suppress: true, logger: r.logger}
	}
	return r
}

// Start subscribes to the alert topic and delivers notifications until the bus shuts down.
// Notifications for one characteristic are delivered one at a time in the order they were
// raised, so a receiver always ends on the latest alert state.  Different characteristics are
// delivered concurrently.
func (r *Reporter) Start(bus *eventbus.EventBus) {
	c, shutdown := bus.Subscribe(alert.Topic)
	go func() {
		defer close(r.done)
		defer shutdown()
		queues := make(map[string]chan alert.Notification)
		for ev := range c {
			n, ok := ev.Data.(alert.Notification)
			if ev.EventType != alert.Changed || !ok {
				continue
			}
			q, ok := queues[n.Key()]
			if !ok {
				q = make(chan alert.Notification, 64)
				queues[n.Key()] = q
				r.wg.Add(1)
				go r.deliver(q)
			}
			q <- n
		}
		for _, q := range queues {
			close(q)
		}
		r.wg.Wait()
	}()
}

func (r *Reporter) deliver(q <-chan alert.Notification) {
	defer r.wg.Done()
	for n := range q {
		if err := r.Send(n); err != nil {
			r.errors.ReportError(err)
		}
	}
}

// Send delivers one notification, retrying until it succeeds or the timeout expires.  A
// notification the receiver rejects is not retried.
func (r *Reporter) Send(n alert.Notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	attempts := 0
	send := func() error {
		attempts++
		err := r.sender.Send(ctx, n)
		if err != nil {
			r.logger.Debug("notification attempt failed", slog.Int("attempt", attempts), slog.Any("error", err))
		}
		if errors.Is(err, notify.ErrRejected) {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.Retry(send, backoff.WithContext(r.newBackOff(), ctx))
	r.metrics.ObserveNotification(err)
	if err != nil {
		return fmt.Errorf("spc: notification %s not delivered after %d attempts: %w", n, attempts, err)
	}
	r.logger.Info("notification sent", slog.String("alert", string(n.AlertType)), slog.String("station", n.StationName), slog.Int("attempts", attempts))
	return nil
}

// Wait blocks until the reporter has stopped and every background delivery has finished.  The
// reporter stops when the event bus it was started on shuts down.
func (r *Reporter) Wait() error {
	<-r.done
	return nil
}
