// Package engine implements the matching core of one trading pair:
// continuous price-time matching, auction accumulation and uncrossing,
// order lifecycle (submit, cancel, cancel-replace), and fee computation.
//
// A TradePair is not safe for concurrent use. Callers serialize all
// access per pair; the service layer does this with one goroutine-safe
// lock per pair so that distinct pairs still run in parallel.
package engine
