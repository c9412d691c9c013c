// Package sequence issues the strictly monotonic sequence ids that order
// every accepted command.
package sequence

import "sync/atomic"

type Sequencer struct {
	next atomic.Uint64
}

// New starts issuing above start. A fresh system starts at 0; recovery
// passes the last sequence seen in the snapshot or WAL.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset is only valid after recovery, before traffic is accepted.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}
