package okx

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
	baseURL   = "https://www.okx.com"
	klinePath = "/api/v5/market/history-candles"
	maxLimit  = 100
)

// Client is the OKX history-candles REST client.
type Client struct {
	http  *resty.Client
	limit int
}

func NewClient(rc *resty.Client) *Client {
	return &Client{http: rc, limit: maxLimit}
}

// FetchRange requests candles for [start, end] (unix seconds), paginating
// until the full range is covered.
//
// OKX returns candles newest-first using cursor-based pagination via the
// `after` parameter; the result is reversed to chronological order.
func (c *Client) FetchRange(ctx context.Context, instID, bar string, start, end int64) ([]candle.Candle, error) {
	var all []candle.Candle
	startMs := start * 1000

	// after=T returns candles with ts < T, so seed with end+1ms to include end.
	after := strconv.FormatInt(end*1000+1, 10)

	for {
		batch, err := c.fetchBatch(ctx, instID, bar, after)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		// Collect candles that fall within the range; stop when we go older.
		done := false
		for _, b := range batch {
			if b.OpenTime*1000 < startMs {
				done = true
				break
			}
			all = append(all, b)
		}

		if done || len(batch) < c.limit || len(all) == 0 {
			break
		}

		// batch is newest-first; oldest openTime is at the end of all collected.
		after = strconv.FormatInt(all[len(all)-1].OpenTime*1000, 10)
	}

	// Reverse to chronological order.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// fetchBatch fetches a single page from the OKX history-candles endpoint.
func (c *Client) fetchBatch(ctx context.Context, instID, bar, after string) ([]candle.Candle, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"instId": instID,
			"bar":    bar,
			"after":  after,
			"limit":  strconv.Itoa(c.limit),
		}).
		Get(klinePath)
	if err != nil {
		return nil, fmt.Errorf("okx: http get: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("okx: unexpected status %s", resp.Status())
	}

	// OKX envelope
	var envelope struct {
		Code string     `json:"code"`
		Msg  string     `json:"msg"`
		Data [][]string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("okx: decode response: %w", err)
	}
	if envelope.Code != "0" {
		return nil, fmt.Errorf("okx: api error %s: %s", envelope.Code, envelope.Msg)
	}

	return parseKlines(envelope.Data)
}

// parseKlines converts the OKX wire format into candles. REST and WebSocket
// share the layout:
//
//	[0] ts          (open time, ms)
//	[1] o
//	[2] h
//	[3] l
//	[4] c
//	[5] vol         (base currency volume)
//	[6] volCcy      (unused)
//	[7] volCcyQuote (quote currency volume)
//	[8] confirm     (unused)
func parseKlines(rows [][]string) ([]candle.Candle, error) {
	out := make([]candle.Candle, 0, len(rows))

	for i, r := range rows {
		if len(r) < 6 {
			return nil, fmt.Errorf("okx: kline[%d] has %d fields, want ≥6", i, len(r))
		}

		openMs, err := strconv.ParseInt(r[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("okx: kline[%d] open_time: %w", i, err)
		}

		v := candle.OHLCV{Open: r[1], High: r[2], Low: r[3], Close: r[4], Volume: r[5]}
		if len(r) > 7 {
			v.QuoteVolume = r[7]
		}
		c, err := candle.Parse(openMs/1000, v)
		if err != nil {
			return nil, fmt.Errorf("okx: kline[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}
