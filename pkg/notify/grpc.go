package notify

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/BTBurke/spc/pkg/alert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	serviceName  = "spc.Alerts"
	createMethod = "/spc.Alerts/Create"
)

// Ack is the receiver's response to a delivered notification
type Ack struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
}

// AlertServer is implemented by receivers of alert notifications
type AlertServer interface {
	Create(ctx context.Context, n *alert.Notification) (*Ack, error)
}

func createHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(alert.Notification)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AlertServer).Create(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: createMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AlertServer).Create(ctx, req.(*alert.Notification))
	}
	return interceptor(ctx, in, info, handler)
}

var alertServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AlertServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Create",
			Handler:    createHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "spc/alerts",
}

// RegisterAlertServer registers a receiver on a gRPC server
func RegisterAlertServer(s *grpc.Server, srv AlertServer) {
	s.RegisterService(&alertServiceDesc, srv)
}

// GRPCSender delivers notifications to a remote AlertServer
type GRPCSender struct {
	conn *grpc.ClientConn
}

// DialOptions returns the transport credentials for target, TLS unless insecure is set
func DialOptions(useInsecure bool) []grpc.DialOption {
	if useInsecure {
		return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return []grpc.DialOption{grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{}))}
}

// NewGRPCSender creates a client for the alert service at target.  The connection is established
// lazily on the first Send.
func NewGRPCSender(target string, opts ...grpc.DialOption) (*GRPCSender, error) {
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: dial %s: %w", target, err)
	}
	return &GRPCSender{conn: conn}, nil
}

// Send delivers the notification and fails if the receiver does not acknowledge it
func (g *GRPCSender) Send(ctx context.Context, n alert.Notification) error {
	ack := new(Ack)
	if err := g.conn.Invoke(ctx, createMethod, &n, ack, grpc.CallContentSubtype(codecName)); err != nil {
		return err
	}
	if !ack.Success {
		return fmt.Errorf("%w: %s", ErrRejected, n)
	}
	return nil
}

// Close tears down the client connection
func (g *GRPCSender) Close() error {
	return g.conn.Close()
}
