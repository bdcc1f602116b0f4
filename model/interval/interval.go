// Package interval maps canonical candle interval strings ("1m", "1h", ...)
// to their width in seconds.
package interval

import (
	"fmt"
	"sort"
)

// table lists every interval a feed may be configured with.
var table = map[string]int64{
	"1s":  1,
	"1m":  60,
	"3m":  3 * 60,
	"5m":  5 * 60,
	"15m": 15 * 60,
	"30m": 30 * 60,
	"1h":  60 * 60,
	"2h":  2 * 60 * 60,
	"4h":  4 * 60 * 60,
	"6h":  6 * 60 * 60,
	"8h":  8 * 60 * 60,
	"12h": 12 * 60 * 60,
	"1d":  24 * 60 * 60,
	"3d":  3 * 24 * 60 * 60,
	"1w":  7 * 24 * 60 * 60,
	"1M":  30 * 24 * 60 * 60, // approximate
}

// Seconds returns the width of interval in seconds.
func Seconds(interval string) (int64, error) {
	s, ok := table[interval]
	if !ok {
		return 0, fmt.Errorf("interval: unknown interval %q", interval)
	}
	return s, nil
}

// Valid reports whether interval is a known canonical interval.
func Valid(interval string) bool {
	_, ok := table[interval]
	return ok
}

// Floor truncates ts (unix seconds) to the start of its interval bucket.
func Floor(ts, seconds int64) int64 {
	if seconds <= 0 {
		return ts
	}
	return ts - ts%seconds
}

// All returns the canonical intervals ordered by width.
func All() []string {
	out := make([]string, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return table[out[i]] < table[out[j]] })
	return out
}
