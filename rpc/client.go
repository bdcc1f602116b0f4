package rpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Client calls the candle service.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial connects to addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", addr, err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection. Close is then the caller's job.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) Snapshot(ctx context.Context, key FeedKey) (*SnapshotResponse, error) {
	out := new(SnapshotResponse)
	if err := c.cc.Invoke(ctx, snapshotMethod, &SnapshotRequest{FeedKey: key}, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	out := new(timestamppb.Timestamp)
	if err := c.cc.Invoke(ctx, serverTimeMethod, &emptypb.Empty{}, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return time.Time{}, err
	}
	return out.AsTime(), nil
}

// Subscribe opens an update stream. Cancel ctx to end it.
func (c *Client) Subscribe(ctx context.Context, req *SubscribeRequest) (grpc.ServerStreamingClient[CandleUpdate], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], subscribeMethod, grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[SubscribeRequest, CandleUpdate]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
