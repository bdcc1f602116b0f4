package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/yitech/candlefeed/model/candle"
	"github.com/yitech/candlefeed/model/interval"
)

const (
	restURL   = "https://api.binance.com"
	klinePath = "/api/v3/klines"
	maxLimit  = 1000
)

// Client is the Binance kline REST client.
type Client struct {
	http  *resty.Client
	limit int
}

func NewClient(rc *resty.Client) *Client {
	return &Client{http: rc, limit: maxLimit}
}

// FetchRange requests klines for [start, end] (unix seconds), paginating
// forward until the range is covered. Binance returns candles oldest-first.
func (c *Client) FetchRange(ctx context.Context, symbol, iv string, start, end int64) ([]candle.Candle, error) {
	if _, err := interval.Seconds(iv); err != nil {
		return nil, fmt.Errorf("binance: %w", err)
	}

	var all []candle.Candle
	startMs, endMs := start*1000, end*1000

	for startMs <= endMs {
		batch, err := c.fetchBatch(ctx, symbol, iv, startMs, endMs)
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
		startMs = (all[len(all)-1].OpenTime + 1) * 1000
	}
	return all, nil
}

// fetchBatch fetches a single page from the Binance klines endpoint.
func (c *Client) fetchBatch(ctx context.Context, symbol, iv string, startMs, endMs int64) ([]candle.Candle, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":    symbol,
			"interval":  iv,
			"startTime": strconv.FormatInt(startMs, 10),
			"endTime":   strconv.FormatInt(endMs, 10),
			"limit":     strconv.Itoa(c.limit),
		}).
		Get(klinePath)
	if err != nil {
		return nil, fmt.Errorf("binance: http get: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(resp.Body(), &apiErr) == nil && apiErr.Msg != "" {
			return nil, fmt.Errorf("binance: api error %d: %s", apiErr.Code, apiErr.Msg)
		}
		return nil, fmt.Errorf("binance: unexpected status %s", resp.Status())
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("binance: decode response: %w", err)
	}
	return parseKlines(rows)
}

// parseKlines converts the Binance wire format into candles.
//
// Binance kline array layout:
//
//	[0]  open time (ms, number)
//	[1]  open
//	[2]  high
//	[3]  low
//	[4]  close
//	[5]  volume (base)
//	[6]  close time (ms)      (unused)
//	[7]  quote asset volume
//	[8]  number of trades (number)
//	[9]  taker buy base volume
//	[10] taker buy quote volume
func parseKlines(rows [][]json.RawMessage) ([]candle.Candle, error) {
	out := make([]candle.Candle, 0, len(rows))

	for i, r := range rows {
		if len(r) < 11 {
			return nil, fmt.Errorf("binance: kline[%d] has %d fields, want ≥11", i, len(r))
		}

		var openMs, trades int64
		var s [11]string
		if err := json.Unmarshal(r[0], &openMs); err != nil {
			return nil, fmt.Errorf("binance: kline[%d] open_time: %w", i, err)
		}
		if err := json.Unmarshal(r[8], &trades); err != nil {
			return nil, fmt.Errorf("binance: kline[%d] trades: %w", i, err)
		}
		for _, j := range []int{1, 2, 3, 4, 5, 7, 9, 10} {
			if err := json.Unmarshal(r[j], &s[j]); err != nil {
				return nil, fmt.Errorf("binance: kline[%d] field %d: %w", i, j, err)
			}
		}

		c, err := fromStrings(openMs, trades, s[1], s[2], s[3], s[4], s[5], s[7], s[9], s[10])
		if err != nil {
			return nil, fmt.Errorf("binance: kline[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// fromStrings builds a fully populated candle; Binance supplies every column.
func fromStrings(openMs, trades int64, o, h, l, cl, v, q, tbb, tbq string) (candle.Candle, error) {
	c, err := candle.Parse(openMs/1000, candle.OHLCV{Open: o, High: h, Low: l, Close: cl, Volume: v, QuoteVolume: q})
	if err != nil {
		return candle.Candle{}, err
	}
	c.Trades = trades
	if c.TakerBuyBaseVolume, err = parseOptional(tbb); err != nil {
		return candle.Candle{}, err
	}
	if c.TakerBuyQuoteVolume, err = parseOptional(tbq); err != nil {
		return candle.Candle{}, err
	}
	return c, nil
}
