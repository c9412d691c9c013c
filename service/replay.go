package service

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"odin/domain/engine"
	"odin/domain/orderbook"
	"odin/infra/wal"
	"odin/snapshot"
)

// Recover rebuilds in-memory state before the server accepts traffic:
// load the last snapshot, replay the WAL tail past it, then resume the
// sequencer above everything ever issued. Funds checks and event
// emission are suppressed for the duration; every replayed command was
// already checked and broadcast when first accepted.
func (s *OrderService) Recover(snapDir, walDir string) error {
	s.muted.Store(true)
	s.gate.bypass.Store(true)
	defer func() {
		s.muted.Store(false)
		s.gate.bypass.Store(false)
	}()

	pairMap := make(map[string]*engine.TradePair, len(s.pairs))
	for id, pr := range s.pairs {
		pairMap[id] = pr.tp
	}

	snapSeq, err := snapshot.Load(snapDir, pairMap)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	replayed := 0
	lastSeq, err := wal.Replay(walDir, func(rec *wal.Record) error {
		if rec.Seq <= snapSeq {
			return nil
		}
		if err := s.applyRecord(rec); err != nil {
			// Replay of an accepted command should never fail; state may
			// now diverge from the live run and needs operator review.
			s.log.Warn("replay command failed",
				zap.Uint64("seq", rec.Seq),
				zap.Uint8("type", uint8(rec.Type)),
				zap.Error(err))
		}
		replayed++
		return nil
	})
	if err != nil {
		return fmt.Errorf("replaying wal: %w", err)
	}

	resume := lastSeq
	if snapSeq > resume {
		resume = snapSeq
	}
	if outboxMax, err := s.outbox.MaxSeq(); err == nil && outboxMax > resume {
		resume = outboxMax
	}
	s.seq.Reset(resume)

	s.log.Info("recovery complete",
		zap.Uint64("snapshot_seq", snapSeq),
		zap.Uint64("wal_seq", lastSeq),
		zap.Uint64("resume_seq", resume),
		zap.Int("replayed", replayed))
	return nil
}

func (s *OrderService) applyRecord(rec *wal.Record) error {
	switch rec.Type {
	case wal.RecordSubmit:
		var cmd submitCmd
		if err := json.Unmarshal(rec.Data, &cmd); err != nil {
			return err
		}
		pr, err := s.pair(cmd.Pair)
		if err != nil {
			return err
		}
		_, err = pr.tp.Submit(engine.SubmitReq{
			ID:     cmd.ID,
			Trader: cmd.Trader,
			Side:   orderbook.Side(cmd.Side),
			Type:   orderbook.OrderType(cmd.Type),
			TIF:    orderbook.TimeInForce(cmd.TIF),
			Price:  cmd.Price,
			Qty:    cmd.Qty,
			SeqID:  rec.Seq,
		})
		return err

	case wal.RecordCancel:
		var cmd cancelCmd
		if err := json.Unmarshal(rec.Data, &cmd); err != nil {
			return err
		}
		pr, err := s.pair(cmd.Pair)
		if err != nil {
			return err
		}
		return pr.tp.Cancel(cmd.ID)

	case wal.RecordCancelAll:
		var cmd cancelBatchCmd
		if err := json.Unmarshal(rec.Data, &cmd); err != nil {
			return err
		}
		pr, err := s.pair(cmd.Pair)
		if err != nil {
			return err
		}
		_, err = pr.tp.CancelAll(cmd.IDs)
		return err

	case wal.RecordCancelReplace:
		var cmd replaceCmd
		if err := json.Unmarshal(rec.Data, &cmd); err != nil {
			return err
		}
		pr, err := s.pair(cmd.Pair)
		if err != nil {
			return err
		}
		_, err = pr.tp.CancelReplace(cmd.ID, cmd.NewID, cmd.Price, cmd.Qty, rec.Seq)
		return err

	case wal.RecordAuctionMode:
		var cmd auctionModeCmd
		if err := json.Unmarshal(rec.Data, &cmd); err != nil {
			return err
		}
		pr, err := s.pair(cmd.Pair)
		if err != nil {
			return err
		}
		return pr.tp.SetAuctionMode(engine.AuctionMode(cmd.Mode))

	case wal.RecordAuctionPrice:
		var cmd auctionPriceCmd
		if err := json.Unmarshal(rec.Data, &cmd); err != nil {
			return err
		}
		pr, err := s.pair(cmd.Pair)
		if err != nil {
			return err
		}
		return pr.tp.SetAuctionPrice(cmd.Price)

	case wal.RecordAuctionMatch:
		var cmd auctionMatchCmd
		if err := json.Unmarshal(rec.Data, &cmd); err != nil {
			return err
		}
		pr, err := s.pair(cmd.Pair)
		if err != nil {
			return err
		}
		_, err = pr.tp.MatchAuctionOrders(cmd.MaxFills)
		return err

	case wal.RecordFeeRates:
		var cmd feeRatesCmd
		if err := json.Unmarshal(rec.Data, &cmd); err != nil {
			return err
		}
		pr, err := s.pair(cmd.Pair)
		if err != nil {
			return err
		}
		return pr.tp.SetFeeRates(cmd.MakerBps, cmd.TakerBps)

	default:
		return fmt.Errorf("unknown record type %d", rec.Type)
	}
}
