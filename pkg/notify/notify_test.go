package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/BTBurke/spc/pkg/alert"
	"github.com/BTBurke/spc/pkg/stat"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func testNotification() alert.Notification {
	return alert.Notification{
		AlertType:      stat.AlertCritical,
		Previous:       stat.AlertWarning,
		Cpk:            stat.Index(0.8),
		Classification: stat.NeedsImprovement,
		ProductCode:    "P-100",
		StationName:    "S1",
		Characteristic: "bore",
		Time:           time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

type receiver struct {
	mu     sync.Mutex
	got    []alert.Notification
	reject bool
}

func (r *receiver) Create(ctx context.Context, n *alert.Notification) (*Ack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reject {
		return &Ack{Success: false}, nil
	}
	r.got = append(r.got, *n)
	return &Ack{Success: true, ID: "1"}, nil
}

func startAlertServer(t *testing.T, srv AlertServer) *GRPCSender {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterAlertServer(s, srv)
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}
	sender, err := NewGRPCSender("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { sender.Close() })
	return sender
}

func TestGRPCSender(t *testing.T) {
	tt := []struct {
		Name      string
		Reject    bool
		ExpectErr bool
	}{
		{Name: "acknowledged", Reject: false, ExpectErr: false},
		{Name: "rejected", Reject: true, ExpectErr: true},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			r := &receiver{reject: tc.Reject}
			sender := startAlertServer(t, r)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := sender.Send(ctx, testNotification())
			if tc.ExpectErr {
				assert.ErrorIs(t, err, ErrRejected)
				assert.Empty(t, r.got)
				return
			}
			require.NoError(t, err)
			require.Len(t, r.got, 1)
			assert.Equal(t, testNotification(), r.got[0])
		})
	}
}

func TestGRPCSenderInfiniteCpk(t *testing.T) {
	r := &receiver{}
	sender := startAlertServer(t, r)

	n := testNotification()
	n.AlertType = stat.AlertExcellent
	n.Cpk = stat.Index(math.Inf(1))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sender.Send(ctx, n))
	require.Len(t, r.got, 1)
	assert.True(t, r.got[0].Cpk.IsInf())
}

func TestGRPCSenderUnavailable(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	lis.Close()
	sender, err := NewGRPCSender("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer sender.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.Error(t, sender.Send(ctx, testNotification()))
}

func runNATS(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("embedded NATS server failed to start")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestNATSSender(t *testing.T) {
	ns := runNATS(t)

	sub, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer sub.Close()
	msgs, err := sub.SubscribeSync("plant.alerts")
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	sender, err := ConnectNATS(ns.ClientURL(), "plant.alerts")
	require.NoError(t, err)
	defer sender.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sender.Send(ctx, testNotification()))

	msg, err := msgs.NextMsg(5 * time.Second)
	require.NoError(t, err)
	var got alert.Notification
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, testNotification(), got)
}

func TestNATSSenderDefaultSubject(t *testing.T) {
	ns := runNATS(t)
	conn, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer conn.Close()

	msgs, err := conn.SubscribeSync(DefaultSubject)
	require.NoError(t, err)

	sender := NewNATSSender(conn, "")
	require.NoError(t, sender.Send(context.Background(), testNotification()))
	_, err = msgs.NextMsg(5 * time.Second)
	assert.NoError(t, err)

	// the caller's connection stays open
	require.NoError(t, sender.Close())
	assert.False(t, conn.IsClosed())
}

func TestNATSSenderClosed(t *testing.T) {
	ns := runNATS(t)
	conn, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	conn.Close()

	err = NewNATSSender(conn, "x").Send(context.Background(), testNotification())
	assert.True(t, errors.Is(err, nats.ErrConnectionClosed))
}

func TestLogSender(t *testing.T) {
	tt := []struct {
		Name  string
		Alert stat.AlertType
		Level string
	}{
		{Name: "critical", Alert: stat.AlertCritical, Level: "WARN"},
		{Name: "warning", Alert: stat.AlertWarning, Level: "WARN"},
		{Name: "recovered", Alert: stat.AlertNone, Level: "INFO"},
		{Name: "excellent", Alert: stat.AlertExcellent, Level: "INFO"},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			var buf bytes.Buffer
			l := LogSender{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
			n := testNotification()
			n.AlertType = tc.Alert
			require.NoError(t, l.Send(context.Background(), n))

			var rec map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
			assert.Equal(t, tc.Level, rec["level"])
			assert.Equal(t, string(tc.Alert), rec["alert"])
			assert.Equal(t, "P-100", rec["product"])
			assert.Equal(t, 0.8, rec["cpk"])
		})
	}
}
