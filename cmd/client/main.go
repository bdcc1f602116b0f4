package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"github.com/yitech/candlefeed/model/candle"
	"github.com/yitech/candlefeed/rpc"
)

func main() {
	addr := getEnv("SERVER_ADDR", "localhost:50051")
	key := rpc.FeedKey{
		Exchange: getEnv("EXCHANGE", "gate_io"),
		Pair:     getEnv("SYMBOL", "BTC-USDT"),
		Interval: getEnv("INTERVAL", "1m"),
	}
	nKline := getEnvInt("N_KLINE", 48)

	// The alt screen owns stdout, so logs go to LOG_FILE or nowhere.
	logger := log.New()
	logger.SetOutput(io.Discard)
	if path := os.Getenv("LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer f.Close()
		logger.SetOutput(f)
	}

	client, err := rpc.Dial(addr)
	if err != nil {
		log.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan candle.Candle, 128)
	go func() {
		for ctx.Err() == nil {
			if err := streamCandles(ctx, client, key, ch); err != nil && ctx.Err() == nil {
				logger.WithError(err).Warn("stream error, retrying in 3s")
			}
			select {
			case <-ctx.Done():
			case <-time.After(3 * time.Second):
			}
		}
	}()

	p := tea.NewProgram(
		newModel(key, nKline, ch),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		log.Fatalf("tui error: %v", err)
	}
}

// streamCandles replays the server's current window and then forwards live
// updates until the stream breaks.
func streamCandles(ctx context.Context, client *rpc.Client, key rpc.FeedKey, ch chan<- candle.Candle) error {
	stream, err := client.Subscribe(ctx, &rpc.SubscribeRequest{FeedKey: key, WithSnapshot: true})
	if err != nil {
		return err
	}
	for {
		u, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case ch <- u.Candle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
