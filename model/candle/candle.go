package candle

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// FieldCount is the number of columns every Candle carries, regardless of
// whether it came from a historical request or the live stream.
const FieldCount = 10

// Columns names the Candle fields in Row order.
var Columns = [FieldCount]string{
	"timestamp",
	"open",
	"high",
	"low",
	"close",
	"volume",
	"quote_asset_volume",
	"n_trades",
	"taker_buy_base_volume",
	"taker_buy_quote_volume",
}

// Candle is one OHLCV bucket keyed by OpenTime (unix seconds, interval start).
// Venues that do not report trade counts or taker volumes leave those fields
// at zero.
type Candle struct {
	OpenTime            int64           `json:"open_time"`
	Open                decimal.Decimal `json:"open"`
	High                decimal.Decimal `json:"high"`
	Low                 decimal.Decimal `json:"low"`
	Close               decimal.Decimal `json:"close"`
	Volume              decimal.Decimal `json:"volume"`
	QuoteVolume         decimal.Decimal `json:"quote_asset_volume"`
	Trades              int64           `json:"n_trades"`
	TakerBuyBaseVolume  decimal.Decimal `json:"taker_buy_base_volume"`
	TakerBuyQuoteVolume decimal.Decimal `json:"taker_buy_quote_volume"`
}

// Row returns the candle as strings in Columns order.
func (c Candle) Row() [FieldCount]string {
	return [FieldCount]string{
		strconv.FormatInt(c.OpenTime, 10),
		c.Open.String(),
		c.High.String(),
		c.Low.String(),
		c.Close.String(),
		c.Volume.String(),
		c.QuoteVolume.String(),
		strconv.FormatInt(c.Trades, 10),
		c.TakerBuyBaseVolume.String(),
		c.TakerBuyQuoteVolume.String(),
	}
}

// Equal reports whether every field of c and o matches. Decimals are compared
// by value, so "1.50" equals "1.5".
func (c Candle) Equal(o Candle) bool {
	return c.OpenTime == o.OpenTime &&
		c.Trades == o.Trades &&
		c.Open.Equal(o.Open) &&
		c.High.Equal(o.High) &&
		c.Low.Equal(o.Low) &&
		c.Close.Equal(o.Close) &&
		c.Volume.Equal(o.Volume) &&
		c.QuoteVolume.Equal(o.QuoteVolume) &&
		c.TakerBuyBaseVolume.Equal(o.TakerBuyBaseVolume) &&
		c.TakerBuyQuoteVolume.Equal(o.TakerBuyQuoteVolume)
}

// OHLCV holds the decimal strings a venue delivers for one bucket.
type OHLCV struct {
	Open, High, Low, Close string
	Volume, QuoteVolume    string
}

// Parse builds a Candle from venue strings. Auxiliary fields stay zero.
// An empty QuoteVolume is treated as zero; every other field is required.
func Parse(openTime int64, v OHLCV) (Candle, error) {
	c := Candle{OpenTime: openTime}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", v.Open, &c.Open},
		{"high", v.High, &c.High},
		{"low", v.Low, &c.Low},
		{"close", v.Close, &c.Close},
		{"volume", v.Volume, &c.Volume},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return Candle{}, &ParseError{Field: f.name, Value: f.raw, Err: err}
		}
		*f.dst = d
	}
	if v.QuoteVolume != "" {
		d, err := decimal.NewFromString(v.QuoteVolume)
		if err != nil {
			return Candle{}, &ParseError{Field: "quote_asset_volume", Value: v.QuoteVolume, Err: err}
		}
		c.QuoteVolume = d
	}
	return c, nil
}

// ParseError reports a field that could not be read as a decimal.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return "candle: parse " + e.Field + " " + strconv.Quote(e.Value) + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }
