// Package orderbook holds the pure book data structures: orders, FIFO
// price levels, and the red-black price tree. Everything here is
// single-writer and deterministic; serialization, fees, and auction
// policy live one layer up in domain/engine.
package orderbook
