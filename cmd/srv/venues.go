package main

import (
	"fmt"
	"sort"

	"github.com/yitech/candlefeed/adapter"
	"github.com/yitech/candlefeed/adapter/binance"
	"github.com/yitech/candlefeed/adapter/bybit"
	"github.com/yitech/candlefeed/adapter/gateio"
	"github.com/yitech/candlefeed/adapter/okx"
)

var venues = map[string]func() adapter.Venue{
	gateio.Name:  func() adapter.Venue { return gateio.New() },
	binance.Name: func() adapter.Venue { return binance.New() },
	bybit.Name:   func() adapter.Venue { return bybit.New() },
	okx.Name:     func() adapter.Venue { return okx.New() },
}

// newVenue returns the adapter registered under exchange.
func newVenue(exchange string) (adapter.Venue, error) {
	mk, ok := venues[exchange]
	if !ok {
		return nil, fmt.Errorf("unknown exchange %q (known: %v)", exchange, venueNames())
	}
	return mk(), nil
}

func venueNames() []string {
	names := make([]string, 0, len(venues))
	for n := range venues {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
