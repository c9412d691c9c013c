package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"odin/domain/engine"
	"odin/snapshot"
)

// StartSnapshotJob periodically snapshots all pairs and prunes the WAL
// and outbox behind the snapshot point.
func (s *OrderService) StartSnapshotJob(ctx context.Context, dir string, interval time.Duration) {
	w := &snapshot.Writer{Dir: dir}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.snapshotOnce(w)
			}
		}
	}()
}

func (s *OrderService) snapshotOnce(w *snapshot.Writer) {
	// Hold every pair lock while capturing, so the snapshot is a
	// consistent cut: commands sequenced before it are inside, commands
	// sequenced after it will replay on top.
	ids := make([]string, 0, len(s.pairs))
	for id := range s.pairs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pairs := make([]*engine.TradePair, 0, len(ids))
	for _, id := range ids {
		pr := s.pairs[id]
		pr.mu.Lock()
		defer pr.mu.Unlock()
		pairs = append(pairs, pr.tp)
	}

	seq := s.seq.Current()
	if err := w.Write(seq, pairs); err != nil {
		s.log.Error("snapshot write failed", zap.Error(err), zap.Uint64("seq", seq))
		return
	}

	if err := s.wal.TruncateBefore(seq); err != nil {
		s.log.Warn("wal truncate failed", zap.Error(err))
	}
	if err := s.outbox.TruncateAckedUpTo(seq); err != nil {
		s.log.Warn("outbox prune failed", zap.Error(err))
	}
	if n, err := s.outbox.PendingCount(); err == nil {
		s.metrics.OutboxPending.Set(float64(n))
	}

	s.log.Info("snapshot written", zap.Uint64("seq", seq))
}
