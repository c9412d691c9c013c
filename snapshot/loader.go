package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"odin/domain/engine"
	"odin/domain/orderbook"
)

// Load restores pair state from the snapshot in dir and returns its
// sequence. A missing snapshot is not an error; recovery then replays
// the WAL from the beginning. Pairs absent from the map are skipped so
// an operator can retire a pair between restarts.
func Load(dir string, pairs map[string]*engine.TradePair) (uint64, error) {
	f, err := os.Open(filepath.Join(dir, "snapshot.bin"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return 0, err
	}

	for _, ps := range s.Pairs {
		tp, ok := pairs[ps.Pair]
		if !ok {
			continue
		}
		tp.RestoreAuction(engine.AuctionMode(ps.Mode), ps.AuctionPrice, ps.AuctionDone)
		_ = tp.SetFeeRates(ps.MakerFeeBps, ps.TakerFeeBps)

		for _, e := range ps.Orders {
			status := orderbook.New
			if e.Filled > 0 {
				status = orderbook.Partial
			}
			tp.Restore(&orderbook.Order{
				ID:     e.ID,
				Trader: e.Trader,
				Side:   orderbook.Side(e.Side),
				Type:   orderbook.OrderType(e.Type),
				TIF:    orderbook.TimeInForce(e.TIF),
				Price:  e.Price,
				Qty:    e.Qty,
				Filled: e.Filled,
				Fee:    e.Fee,
				Hold:   e.Hold,
				Status: status,
				SeqID:  e.SeqID,
			})
		}
	}
	return s.Seq, nil
}
