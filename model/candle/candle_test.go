package candle

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ZeroFillsAuxiliaryFields(t *testing.T) {
	c, err := Parse(1685167200, OHLCV{
		Open: "26728.1", High: "26736.1", Low: "26718.4", Close: "26718.4",
		Volume: "4.856410775", QuoteVolume: "129807.73747903012",
	})
	require.NoError(t, err)

	row := c.Row()
	assert.Len(t, row, FieldCount)
	assert.Len(t, Columns, FieldCount)
	assert.Equal(t, "1685167200", row[0])
	assert.Equal(t, "26728.1", row[1])
	assert.Equal(t, "129807.73747903012", row[6])
	assert.Equal(t, "0", row[7])
	assert.Equal(t, "0", row[8])
	assert.Equal(t, "0", row[9])
}

func TestParse_MissingQuoteVolume(t *testing.T) {
	c, err := Parse(60, OHLCV{Open: "1", High: "2", Low: "0.5", Close: "1.5", Volume: "10"})
	require.NoError(t, err)
	assert.True(t, c.QuoteVolume.IsZero())
}

func TestParse_BadField(t *testing.T) {
	_, err := Parse(60, OHLCV{Open: "1", High: "x", Low: "0.5", Close: "1.5", Volume: "10"})
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "high", pe.Field)
	assert.Equal(t, "x", pe.Value)
}

func TestEqual(t *testing.T) {
	a := Candle{OpenTime: 60, Open: decimal.RequireFromString("1.50"), Close: decimal.NewFromInt(2)}
	b := Candle{OpenTime: 60, Open: decimal.RequireFromString("1.5"), Close: decimal.RequireFromString("2.0")}
	assert.True(t, a.Equal(b))

	b.Trades = 3
	assert.False(t, a.Equal(b))
}
