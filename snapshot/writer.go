package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"odin/domain/engine"
	"odin/domain/orderbook"
)

type Writer struct {
	Dir string
}

// Write dumps every pair's state at seq. The file is written to a temp
// name and renamed so a crash mid-write never corrupts the last good
// snapshot. Callers must hold each pair's serialization lock.
func (w *Writer) Write(seq uint64, pairs []*engine.TradePair) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}

	s := Snapshot{
		Seq:     seq,
		Created: time.Now(),
		Pairs:   make([]PairState, 0, len(pairs)),
	}
	for _, tp := range pairs {
		s.Pairs = append(s.Pairs, capturePair(tp))
	}

	path := filepath.Join(w.Dir, "snapshot.bin")
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(&s); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func capturePair(tp *engine.TradePair) PairState {
	cfg := tp.Config()
	ps := PairState{
		Pair:         cfg.ID,
		Mode:         int(tp.Mode()),
		AuctionPrice: tp.AuctionPrice(),
		AuctionDone:  tp.AuctionDone(),
		MakerFeeBps:  cfg.MakerFeeBps,
		TakerFeeBps:  cfg.TakerFeeBps,
	}

	capture := func(lvl *orderbook.PriceLevel) bool {
		for o := lvl.Head(); o != nil; o = o.Next() {
			ps.Orders = append(ps.Orders, OrderEntry{
				ID:     o.ID,
				Trader: o.Trader,
				Side:   uint8(o.Side),
				Type:   uint8(o.Type),
				TIF:    uint8(o.TIF),
				Price:  o.Price,
				Qty:    o.Qty,
				Filled: o.Filled,
				Fee:    o.Fee,
				Hold:   o.Hold,
				SeqID:  o.SeqID,
			})
		}
		return true
	}
	tp.Book(orderbook.Buy).Walk(capture)
	tp.Book(orderbook.Sell).Walk(capture)
	return ps
}
