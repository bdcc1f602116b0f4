package gateio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/yitech/candlefeed/model/candle"
)

const (
	restURL     = "https://api.gateio.ws/api/v4"
	candlesPath = "/spot/candlesticks"
	healthPath  = "/spot/time"
	maxLimit    = 500
)

// venueSeconds is the width of each Gate.io interval.
var venueSeconds = map[string]int64{
	"1s":  1,
	"10s": 10,
	"1m":  60,
	"5m":  5 * 60,
	"15m": 15 * 60,
	"30m": 30 * 60,
	"1h":  60 * 60,
	"4h":  4 * 60 * 60,
	"8h":  8 * 60 * 60,
	"1d":  24 * 60 * 60,
	"7d":  7 * 24 * 60 * 60,
	"30d": 30 * 24 * 60 * 60,
}

// Client is the Gate.io candlestick REST client.
type Client struct {
	http  *resty.Client
	limit int
}

// NewClient wraps a resty client whose base URL points at the v4 API.
func NewClient(rc *resty.Client) *Client {
	return &Client{http: rc, limit: maxLimit}
}

// FetchRange requests candles for [start, end] (unix seconds), splitting the
// range into pages of at most limit buckets. Gate.io returns each page
// oldest-first, so pages are concatenated in request order.
func (c *Client) FetchRange(ctx context.Context, pair, interval string, start, end int64) ([]candle.Candle, error) {
	step, ok := venueSeconds[interval]
	if !ok {
		return nil, fmt.Errorf("gateio: unknown interval %q", interval)
	}
	if end < start {
		return nil, nil
	}

	var all []candle.Candle
	for from := start; from <= end; {
		to := from + step*int64(c.limit-1)
		if to > end {
			to = end
		}

		batch, err := c.fetchBatch(ctx, pair, interval, from, to)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)

		from = to + step
	}
	return all, nil
}

// fetchBatch fetches a single page from the candlesticks endpoint.
func (c *Client) fetchBatch(ctx context.Context, pair, interval string, from, to int64) ([]candle.Candle, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"currency_pair": pair,
			"interval":      interval,
			"from":          strconv.FormatInt(from, 10),
			"to":            strconv.FormatInt(to, 10),
			"limit":         strconv.Itoa(c.limit),
		}).
		Get(candlesPath)
	if err != nil {
		return nil, fmt.Errorf("gateio: http get: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		var apiErr struct {
			Label   string `json:"label"`
			Message string `json:"message"`
		}
		if json.Unmarshal(resp.Body(), &apiErr) == nil && apiErr.Label != "" {
			return nil, fmt.Errorf("gateio: api error %s: %s", apiErr.Label, apiErr.Message)
		}
		return nil, fmt.Errorf("gateio: unexpected status %s", resp.Status())
	}

	var rows [][]string
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("gateio: decode response: %w", err)
	}
	return parseRows(rows)
}

// parseRows converts the Gate.io wire format into candles.
//
// Gate.io candlestick row layout:
//
//	[0] t            (open time, s)
//	[1] quote volume
//	[2] close
//	[3] high
//	[4] low
//	[5] open
//	[6] base volume
//	[7] window closed ("true"/"false") (unused)
func parseRows(rows [][]string) ([]candle.Candle, error) {
	out := make([]candle.Candle, 0, len(rows))

	for i, r := range rows {
		if len(r) < 7 {
			return nil, fmt.Errorf("gateio: row[%d] has %d fields, want ≥7", i, len(r))
		}

		openTime, err := strconv.ParseInt(r[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("gateio: row[%d] open_time: %w", i, err)
		}

		c, err := candle.Parse(openTime, candle.OHLCV{
			Open:        r[5],
			High:        r[3],
			Low:         r[4],
			Close:       r[2],
			Volume:      r[6],
			QuoteVolume: r[1],
		})
		if err != nil {
			return nil, fmt.Errorf("gateio: row[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}
