package rpc

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/yitech/candlefeed/feed"
	"github.com/yitech/candlefeed/model/candle"
)

// DefaultStreamBuffer is how many updates a subscriber may fall behind before
// its stream is closed.
const DefaultStreamBuffer = 256

// Feed is the read side of a feed.Feed.
type Feed interface {
	Name() string
	Snapshot() []candle.Candle
	Ready() bool
	Subscribe(handler feed.CandleHandler) feed.Token
}

// Server serves registered feeds.
type Server struct {
	logger logrus.FieldLogger
	buffer int

	mu    sync.RWMutex
	feeds map[string]Feed
}

// NewServer creates a server with no feeds.
func NewServer(logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		logger: logger,
		buffer: DefaultStreamBuffer,
		feeds:  make(map[string]Feed),
	}
}

// Add makes f reachable under f.Name().
func (s *Server) Add(f Feed) {
	s.mu.Lock()
	s.feeds[f.Name()] = f
	s.mu.Unlock()
}

// Register attaches the candle service to g.
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&ServiceDesc, s)
}

func (s *Server) lookup(k FeedKey) (Feed, error) {
	s.mu.RLock()
	f, ok := s.feeds[k.Name()]
	s.mu.RUnlock()
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no feed for %s", k.Name())
	}
	return f, nil
}

func (s *Server) Snapshot(ctx context.Context, req *SnapshotRequest) (*SnapshotResponse, error) {
	f, err := s.lookup(req.FeedKey)
	if err != nil {
		return nil, err
	}
	return &SnapshotResponse{
		FeedKey: req.FeedKey,
		Ready:   f.Ready(),
		Columns: candle.Columns[:],
		Candles: f.Snapshot(),
	}, nil
}

func (s *Server) ServerTime(ctx context.Context, _ *emptypb.Empty) (*timestamppb.Timestamp, error) {
	return timestamppb.Now(), nil
}

// Subscribe streams every candle the feed applies. A subscriber that falls
// more than the stream buffer behind is disconnected with ResourceExhausted.
func (s *Server) Subscribe(req *SubscribeRequest, stream grpc.ServerStreamingServer[CandleUpdate]) error {
	f, err := s.lookup(req.FeedKey)
	if err != nil {
		return err
	}
	logger := s.logger.WithFields(logrus.Fields{
		"exchange": req.Exchange,
		"pair":     req.Pair,
		"interval": req.Interval,
	})

	updates := make(chan candle.Candle, s.buffer)
	overflow := make(chan struct{})
	var once sync.Once
	tok := f.Subscribe(func(c candle.Candle) {
		select {
		case updates <- c:
		default:
			once.Do(func() { close(overflow) })
		}
	})
	defer tok.Unsubscribe()
	logger.Info("New subscription")

	if req.WithSnapshot {
		for _, c := range f.Snapshot() {
			if err := stream.Send(&CandleUpdate{FeedKey: req.FeedKey, Candle: c}); err != nil {
				return err
			}
		}
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Client disconnected")
			return ctx.Err()
		case <-overflow:
			logger.Warn("Subscriber too slow, closing stream")
			return status.Error(codes.ResourceExhausted, "subscriber fell behind")
		case c := <-updates:
			if err := stream.Send(&CandleUpdate{FeedKey: req.FeedKey, Candle: c}); err != nil {
				return err
			}
		}
	}
}
