package bybit

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
	restURL   = "https://api.bybit.com"
	klinePath = "/v5/market/kline"
	maxLimit  = 1000
)

// Client is the Bybit V5 kline REST client.
type Client struct {
	http     *resty.Client
	category string
	limit    int
}

func NewClient(rc *resty.Client, category string) *Client {
	return &Client{http: rc, category: category, limit: maxLimit}
}

// FetchRange requests klines for [start, end] (unix seconds), paginating
// backwards until the full range is covered.
//
// Bybit returns candles newest-first; the result is reversed to
// chronological order before returning.
func (c *Client) FetchRange(ctx context.Context, symbol, interval string, start, end int64) ([]candle.Candle, error) {
	var all []candle.Candle
	startMs, endMs := start*1000, end*1000

	for {
		batch, err := c.fetchBatch(ctx, symbol, interval, startMs, endMs)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)

		if len(batch) < c.limit {
			break
		}

		// batch is newest-first, so the oldest openTime is at the end.
		endMs = all[len(all)-1].OpenTime*1000 - 1
		if endMs < startMs {
			break
		}
	}

	// Reverse to chronological order.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// fetchBatch fetches a single page from the Bybit kline endpoint.
func (c *Client) fetchBatch(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]candle.Candle, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"category": c.category,
			"symbol":   symbol,
			"interval": interval,
			"start":    strconv.FormatInt(startMs, 10),
			"end":      strconv.FormatInt(endMs, 10),
			"limit":    strconv.Itoa(c.limit),
		}).
		Get(klinePath)
	if err != nil {
		return nil, fmt.Errorf("bybit: http get: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("bybit: unexpected status %s", resp.Status())
	}

	// Bybit V5 envelope
	var envelope struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("bybit: decode response: %w", err)
	}
	if envelope.RetCode != 0 {
		return nil, fmt.Errorf("bybit: api error %d: %s", envelope.RetCode, envelope.RetMsg)
	}

	return parseKlines(envelope.Result.List)
}

// parseKlines converts the Bybit wire format into candles.
//
// Bybit kline array layout:
//
//	[0] startTime  (ms)
//	[1] openPrice
//	[2] highPrice
//	[3] lowPrice
//	[4] closePrice
//	[5] volume     (base coin)
//	[6] turnover   (quote coin)
func parseKlines(rows [][]string) ([]candle.Candle, error) {
	out := make([]candle.Candle, 0, len(rows))

	for i, r := range rows {
		if len(r) < 7 {
			return nil, fmt.Errorf("bybit: kline[%d] has %d fields, want ≥7", i, len(r))
		}

		openMs, err := strconv.ParseInt(r[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bybit: kline[%d] open_time: %w", i, err)
		}

		c, err := candle.Parse(openMs/1000, candle.OHLCV{
			Open: r[1], High: r[2], Low: r[3], Close: r[4], Volume: r[5], QuoteVolume: r[6],
		})
		if err != nil {
			return nil, fmt.Errorf("bybit: kline[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}
