package funds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger() *Ledger {
	l := NewLedger()
	l.RegisterPair("ALOT/USDC", "ALOT", "USDC")
	l.Deposit("alice", "USDC", 1000)
	l.Deposit("bob", "ALOT", 500)
	return l
}

func TestReserveAndRelease(t *testing.T) {
	l := newTestLedger()

	require.NoError(t, l.Reserve("alice", "USDC", 600))
	free, held := l.Balance("alice", "USDC")
	assert.Equal(t, int64(400), free)
	assert.Equal(t, int64(600), held)

	assert.ErrorIs(t, l.Reserve("alice", "USDC", 500), ErrInsufficient)

	l.Release("alice", "USDC", 600)
	free, held = l.Balance("alice", "USDC")
	assert.Equal(t, int64(1000), free)
	assert.Zero(t, held)
}

func TestReleaseClampsToHeld(t *testing.T) {
	l := newTestLedger()

	require.NoError(t, l.Reserve("alice", "USDC", 100))
	l.Release("alice", "USDC", 250)

	free, held := l.Balance("alice", "USDC")
	assert.Equal(t, int64(1000), free)
	assert.Zero(t, held)
}

func TestSettleMovesHeldFundsAndFees(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Reserve("alice", "USDC", 500))
	require.NoError(t, l.Reserve("bob", "ALOT", 100))

	err := l.Settle(Fill{
		Pair:      "ALOT/USDC",
		Maker:     "bob",
		Taker:     "alice",
		TakerBuys: true,
		Price:     500,
		Qty:       100,
		QuoteAmt:  500,
		MakerFee:  2,
		TakerFee:  4,
	})
	require.NoError(t, err)

	free, held := l.Balance("alice", "USDC")
	assert.Equal(t, int64(500), free)
	assert.Zero(t, held)
	free, _ = l.Balance("alice", "ALOT")
	assert.Equal(t, int64(100), free)

	free, held = l.Balance("bob", "ALOT")
	assert.Equal(t, int64(400), free)
	assert.Zero(t, held)
	// Seller receives the quote amount net of both fee legs.
	free, _ = l.Balance("bob", "USDC")
	assert.Equal(t, int64(494), free)
}

func TestSettleDebitsHeldFirstThenFree(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Reserve("bob", "ALOT", 60))

	// Settlement for more than the held amount dips into free balance.
	err := l.Settle(Fill{
		Pair: "ALOT/USDC", Maker: "bob", Taker: "alice",
		TakerBuys: true, Price: 500, Qty: 80, QuoteAmt: 400,
	})
	require.NoError(t, err)

	free, held := l.Balance("bob", "ALOT")
	assert.Equal(t, int64(420), free)
	assert.Zero(t, held)
}

func TestSettleRefusals(t *testing.T) {
	l := newTestLedger()

	err := l.Settle(Fill{Pair: "NOPE/USDC", Maker: "bob", Taker: "alice", TakerBuys: true, Qty: 1, QuoteAmt: 1})
	assert.ErrorIs(t, err, ErrSettlement)

	err = l.Settle(Fill{Pair: "ALOT/USDC", Maker: "bob", Taker: "alice", TakerBuys: true, Qty: 501, QuoteAmt: 1})
	assert.ErrorIs(t, err, ErrSettlement)

	err = l.Settle(Fill{Pair: "ALOT/USDC", Maker: "bob", Taker: "alice", TakerBuys: true, Qty: 1, QuoteAmt: 1001})
	assert.ErrorIs(t, err, ErrSettlement)
}
