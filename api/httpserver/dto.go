package httpserver

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"odin/domain/engine"
	"odin/domain/orderbook"
)

// The wire format carries prices and quantities as decimal strings.
// Internally everything is fixed point in the pair's own decimals, so
// the boundary converts exactly or not at all.

var (
	maxUnits = decimal.NewFromInt(1<<63 - 1)
	minUnits = decimal.NewFromInt(-1 << 63)
)

func toUnits(s string, decimals int) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal %q", s)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%q has more than %d decimal places", s, decimals)
	}
	if scaled.Cmp(maxUnits) > 0 || scaled.Cmp(minUnits) < 0 {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return scaled.IntPart(), nil
}

func fromUnits(v int64, decimals int) string {
	return decimal.New(v, int32(-decimals)).String()
}

func parseSide(s string) (orderbook.Side, error) {
	switch strings.ToUpper(s) {
	case "BUY":
		return orderbook.Buy, nil
	case "SELL":
		return orderbook.Sell, nil
	}
	return 0, fmt.Errorf("side must be BUY or SELL")
}

func parseType(s string) (orderbook.OrderType, error) {
	switch strings.ToUpper(s) {
	case "", "LIMIT":
		return orderbook.Limit, nil
	case "MARKET":
		return orderbook.Market, nil
	}
	return 0, fmt.Errorf("type must be LIMIT or MARKET")
}

func parseTIF(s string) (orderbook.TimeInForce, error) {
	switch strings.ToUpper(s) {
	case "", "GTC":
		return orderbook.GTC, nil
	case "FOK":
		return orderbook.FOK, nil
	case "PO", "POST_ONLY":
		return orderbook.PostOnly, nil
	}
	return 0, fmt.Errorf("tif must be GTC, FOK, or PO")
}

func parseAuctionMode(s string) (engine.AuctionMode, error) {
	switch strings.ToUpper(s) {
	case "OFF":
		return engine.AuctionOff, nil
	case "LIVE_TRADING":
		return engine.AuctionLiveTrading, nil
	case "OPEN":
		return engine.AuctionOpen, nil
	case "CLOSING":
		return engine.AuctionClosing, nil
	case "PAUSED":
		return engine.AuctionPaused, nil
	case "MATCHING":
		return engine.AuctionMatching, nil
	case "RESTRICTED":
		return engine.AuctionRestricted, nil
	}
	return 0, fmt.Errorf("unknown auction mode %q", s)
}

type submitRequest struct {
	Pair   string `json:"pair"`
	ID     string `json:"id,omitempty"`
	Trader string `json:"trader"`
	Side   string `json:"side"`
	Type   string `json:"type,omitempty"`
	TIF    string `json:"tif,omitempty"`
	Price  string `json:"price,omitempty"`
	Qty    string `json:"qty"`
}

type replaceRequest struct {
	NewID string `json:"new_id,omitempty"`
	Price string `json:"price"`
	Qty   string `json:"qty"`
}

type cancelBatchRequest struct {
	IDs []string `json:"ids"`
}

type orderView struct {
	ID     string `json:"id"`
	Trader string `json:"trader"`
	Pair   string `json:"pair"`
	Side   string `json:"side"`
	Type   string `json:"type"`
	TIF    string `json:"tif"`
	Price  string `json:"price"`
	Qty    string `json:"qty"`
	Filled string `json:"filled"`
	Fee    string `json:"fee"`
	Status string `json:"status"`
	Seq    uint64 `json:"seq"`
}

func viewOrder(o *orderbook.Order, cfg engine.Config) orderView {
	return orderView{
		ID:     o.ID,
		Trader: o.Trader,
		Pair:   o.Pair,
		Side:   o.Side.String(),
		Type:   o.Type.String(),
		TIF:    o.TIF.String(),
		Price:  fromUnits(o.Price, cfg.QuoteDecimals),
		Qty:    fromUnits(o.Qty, cfg.BaseDecimals),
		Filled: fromUnits(o.Filled, cfg.BaseDecimals),
		Fee:    fromUnits(o.Fee, cfg.QuoteDecimals),
		Status: o.Status.String(),
		Seq:    o.SeqID,
	}
}

type levelView struct {
	Price string `json:"price"`
	Qty   string `json:"qty"`
}

type bookView struct {
	Pair      string      `json:"pair"`
	Side      string      `json:"side"`
	Levels    []levelView `json:"levels"`
	NextPrice string      `json:"next_price,omitempty"`
	NextOrder string      `json:"next_order,omitempty"`
}

type pairView struct {
	ID             string `json:"id"`
	Base           string `json:"base"`
	Quote          string `json:"quote"`
	BaseDecimals   int    `json:"base_decimals"`
	QuoteDecimals  int    `json:"quote_decimals"`
	TickSize       string `json:"tick_size"`
	MinTradeAmount string `json:"min_trade_amount"`
	MaxTradeAmount string `json:"max_trade_amount"`
	MakerFeeBps    int64  `json:"maker_fee_bps"`
	TakerFeeBps    int64  `json:"taker_fee_bps"`
}

func viewPair(cfg engine.Config) pairView {
	return pairView{
		ID:             cfg.ID,
		Base:           cfg.Base,
		Quote:          cfg.Quote,
		BaseDecimals:   cfg.BaseDecimals,
		QuoteDecimals:  cfg.QuoteDecimals,
		TickSize:       fromUnits(cfg.TickSize, cfg.QuoteDecimals),
		MinTradeAmount: fromUnits(cfg.MinTradeAmount, cfg.QuoteDecimals),
		MaxTradeAmount: fromUnits(cfg.MaxTradeAmount, cfg.QuoteDecimals),
		MakerFeeBps:    cfg.MakerFeeBps,
		TakerFeeBps:    cfg.TakerFeeBps,
	}
}
