package wal

import "time"

type RecordType uint8

const (
	RecordSubmit RecordType = iota
	RecordCancel
	RecordCancelAll
	RecordCancelReplace
	RecordAuctionMode
	RecordAuctionPrice
	RecordAuctionMatch
	RecordFeeRates
)

// Record is one accepted command. The payload encoding belongs to the
// caller; the WAL only frames and checksums it.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
