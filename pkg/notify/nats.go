package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BTBurke/spc/pkg/alert"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject notifications are published on when none is configured
const DefaultSubject = "spc.alerts"

// NATSSender publishes notifications as JSON on a NATS subject
type NATSSender struct {
	conn    *nats.Conn
	subject string
	owned   bool
}

// NewNATSSender publishes on an existing connection.  The caller keeps ownership of conn.
func NewNATSSender(conn *nats.Conn, subject string) *NATSSender {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSender{conn: conn, subject: subject}
}

// ConnectNATS dials url and returns a sender that owns the connection
func ConnectNATS(url string, subject string) (*NATSSender, error) {
	conn, err := nats.Connect(url, nats.Name("spc-notify"))
	if err != nil {
		return nil, fmt.Errorf("notify: connect to NATS: %w", err)
	}
	s := NewNATSSender(conn, subject)
	s.owned = true
	return s, nil
}

// Send publishes the notification and waits for the server to acknowledge the flush.  Without a
// context deadline the connection's default flush timeout applies.
func (s *NATSSender) Send(ctx context.Context, n alert.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		return fmt.Errorf("notify: publish to %s: %w", s.subject, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		return s.conn.Flush()
	}
	return s.conn.FlushWithContext(ctx)
}

// Close drains the connection if the sender owns it
func (s *NATSSender) Close() error {
	if !s.owned {
		return nil
	}
	return s.conn.Drain()
}
