package service

// WAL command payloads. Only accepted commands are logged, after they
// executed, so replaying them in order with funds checks bypassed
// rebuilds the exact same books.

type submitCmd struct {
	Pair   string `json:"pair"`
	ID     string `json:"id"`
	Trader string `json:"trader"`
	Side   uint8  `json:"side"`
	Type   uint8  `json:"type"`
	TIF    uint8  `json:"tif"`
	Price  int64  `json:"price"`
	Qty    int64  `json:"qty"`
}

type cancelCmd struct {
	Pair string `json:"pair"`
	ID   string `json:"id"`
}

type cancelBatchCmd struct {
	Pair string   `json:"pair"`
	IDs  []string `json:"ids"`
}

type replaceCmd struct {
	Pair  string `json:"pair"`
	ID    string `json:"id"`
	NewID string `json:"new_id"`
	Price int64  `json:"price"`
	Qty   int64  `json:"qty"`
}

type auctionModeCmd struct {
	Pair string `json:"pair"`
	Mode int    `json:"mode"`
}

type auctionPriceCmd struct {
	Pair  string `json:"pair"`
	Price int64  `json:"price"`
}

type auctionMatchCmd struct {
	Pair     string `json:"pair"`
	MaxFills int    `json:"max_fills"`
}

type feeRatesCmd struct {
	Pair     string `json:"pair"`
	MakerBps int64  `json:"maker_bps"`
	TakerBps int64  `json:"taker_bps"`
}
