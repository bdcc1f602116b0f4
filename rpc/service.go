// Package rpc exposes feeds to downstream readers over gRPC: a unary
// snapshot of the current window and a server stream of applied updates.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/yitech/candlefeed/model/candle"
)

const (
	serviceName      = "candlefeed.CandleService"
	snapshotMethod   = "/" + serviceName + "/Snapshot"
	serverTimeMethod = "/" + serviceName + "/ServerTime"
	subscribeMethod  = "/" + serviceName + "/Subscribe"
)

// FeedKey selects one feed.
type FeedKey struct {
	Exchange string `json:"exchange"`
	Pair     string `json:"pair"`
	Interval string `json:"interval"`
}

// Name matches feed.Feed.Name.
func (k FeedKey) Name() string { return k.Exchange + ":" + k.Pair + ":" + k.Interval }

type SnapshotRequest struct {
	FeedKey
}

type SnapshotResponse struct {
	FeedKey
	Ready   bool            `json:"ready"`
	Columns []string        `json:"columns"`
	Candles []candle.Candle `json:"candles"`
}

type SubscribeRequest struct {
	FeedKey
	// WithSnapshot replays the current window before live updates.
	WithSnapshot bool `json:"with_snapshot"`
}

type CandleUpdate struct {
	FeedKey
	Candle candle.Candle `json:"candle"`
}

// CandleServiceServer is the server API for the candle service.
type CandleServiceServer interface {
	Snapshot(context.Context, *SnapshotRequest) (*SnapshotResponse, error)
	ServerTime(context.Context, *emptypb.Empty) (*timestamppb.Timestamp, error)
	Subscribe(*SubscribeRequest, grpc.ServerStreamingServer[CandleUpdate]) error
}

// ServiceDesc describes the candle service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CandleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Snapshot",
			Handler:    snapshotHandler,
		},
		{
			MethodName: "ServerTime",
			Handler:    serverTimeHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "candlefeed/rpc",
}

func snapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SnapshotRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CandleServiceServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: snapshotMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CandleServiceServer).Snapshot(ctx, req.(*SnapshotRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func serverTimeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CandleServiceServer).ServerTime(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serverTimeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CandleServiceServer).ServerTime(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	m := new(SubscribeRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(CandleServiceServer).Subscribe(m, &grpc.GenericServerStream[SubscribeRequest, CandleUpdate]{ServerStream: stream})
}
