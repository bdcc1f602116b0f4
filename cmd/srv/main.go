package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/yitech/candlefeed/config"
	"github.com/yitech/candlefeed/feed"
	"github.com/yitech/candlefeed/rpc"
	"github.com/yitech/candlefeed/transport"
)

var rootCmd = &cobra.Command{
	Use:          "candlefeed-srv --config candlefeed.yaml",
	Short:        "Maintain live candle windows and serve them over gRPC",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		envFile, _ := cmd.Flags().GetString("env-file")
		level, _ := cmd.Flags().GetString("log-level")

		cfg, err := config.Load(path, envFile)
		if err != nil {
			return err
		}
		if level != "" {
			cfg.LogLevel = level
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		return run(cmd.Context(), cfg)
	},
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := log.StandardLogger()
	logger.SetLevel(cfg.Level())
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	dialer := transport.NewWebsocketDialer(nil)
	feeds := make([]*feed.Feed, 0, len(cfg.Feeds))
	for _, fc := range cfg.Feeds {
		venue, err := newVenue(fc.Exchange)
		if err != nil {
			return err
		}
		f, err := feed.New(feed.Config{
			Pair:           fc.Pair,
			Interval:       fc.Interval,
			MaxRecords:     fc.MaxRecords,
			InitialWindow:  fc.InitialWindow,
			ReconnectDelay: cfg.ReconnectDelay,
		}, feed.Options{
			Venue:  venue,
			Dialer: dialer,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		feeds = append(feeds, f)
	}
	defer func() {
		for _, f := range feeds {
			if err := f.Stop(); err != nil {
				logger.WithError(err).Errorf("feed %s stopped with error", f.Name())
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	candles := rpc.NewServer(logger)
	for _, f := range feeds {
		if err := f.CheckNetwork(gctx); err != nil {
			logger.WithError(err).Warnf("%s: venue health check failed", f.Name())
		}
		if err := f.Start(gctx); err != nil {
			return fmt.Errorf("start %s: %w", f.Name(), err)
		}
		candles.Add(f)

		f := f
		g.Go(func() error {
			<-f.Done()
			if err := f.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", f.Name(), err)
			}
			return nil
		})
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	gs := grpc.NewServer()
	candles.Register(gs)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	g.Go(func() error {
		logger.Infof("gRPC server listening on %s", cfg.GRPCAddr)
		return gs.Serve(lis)
	})
	g.Go(func() error {
		reportReadiness(gctx, hs, feeds)
		hs.Shutdown()
		gs.GracefulStop()
		return nil
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	ms := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		logger.Infof("metrics listening on %s", cfg.MetricsAddr)
		if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ms.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// reportReadiness publishes each feed's Ready state as a health service
// named after the feed, until ctx is done.
func reportReadiness(ctx context.Context, hs *health.Server, feeds []*feed.Feed) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		serving := true
		for _, f := range feeds {
			st := healthpb.HealthCheckResponse_NOT_SERVING
			if f.Ready() && f.State() == feed.Streaming {
				st = healthpb.HealthCheckResponse_SERVING
			} else {
				serving = false
			}
			hs.SetServingStatus(f.Name(), st)
		}
		overall := healthpb.HealthCheckResponse_NOT_SERVING
		if serving {
			overall = healthpb.HealthCheckResponse_SERVING
		}
		hs.SetServingStatus("", overall)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func main() {
	rootCmd.Flags().StringP("config", "c", "", "path to the YAML config file")
	rootCmd.Flags().String("env-file", ".env", "optional dotenv file loaded before the environment")
	rootCmd.Flags().String("log-level", "", "override log_level (debug, info, warn, error)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("candlefeed-srv: %v", err)
	}
}
