package actor

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/torosent/inferfire/internal/model"
	"github.com/torosent/inferfire/internal/tracing"
)

// Client is one actor's host-side handle.
type Client struct {
	conn     *grpc.ClientConn
	shutdown func() error // kills a locally-spawned actor; nil for remote
}

// Dial connects to a running actor.
func Dial(_ context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial actor %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Predict dispatches one query to the actor and blocks for its reply. A
// model failure inside the actor comes back as *model.RemoteError.
func (c *Client) Predict(ctx context.Context, id int64, in model.Input) (model.Output, error) {
	md := metadata.New(nil)
	tracing.InjectGRPCMetadata(ctx, md)
	if len(md) > 0 {
		ctx = metadata.NewOutgoingContext(ctx, md)
	}

	req := &PredictRequest{ID: id, Input: in}
	reply := new(PredictReply)
	if err := c.conn.Invoke(ctx, predictFullMethod, req, reply); err != nil {
		return nil, fmt.Errorf("actor predict: %w", err)
	}
	if reply.ID != id {
		return nil, fmt.Errorf("actor answered query %d, want %d", reply.ID, id)
	}
	if reply.Error != "" {
		return nil, &model.RemoteError{Msg: reply.Error}
	}
	return model.Output(reply.Result), nil
}

// Close releases the connection and tears down a locally-spawned actor.
func (c *Client) Close() error {
	err := c.conn.Close()
	if c.shutdown != nil {
		if serr := c.shutdown(); err == nil {
			err = serr
		}
	}
	return err
}
