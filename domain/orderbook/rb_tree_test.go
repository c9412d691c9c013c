package orderbook

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertAndFind(t *testing.T) {
	tr := NewRBTree()
	lvl := tr.UpsertLevel(100)
	require.NotNil(t, lvl)
	assert.Equal(t, int64(100), lvl.Price)

	// Upsert of an existing key returns the same level.
	assert.Same(t, lvl, tr.UpsertLevel(100))
	assert.Equal(t, 1, tr.Size())

	assert.Same(t, lvl, tr.FindLevel(100))
	assert.Nil(t, tr.FindLevel(99))
}

func TestMinMax(t *testing.T) {
	tr := NewRBTree()
	assert.Nil(t, tr.MinLevel())
	assert.Nil(t, tr.MaxLevel())

	for _, p := range []int64{50, 10, 90, 30, 70} {
		tr.UpsertLevel(p)
	}
	assert.Equal(t, int64(10), tr.MinLevel().Price)
	assert.Equal(t, int64(90), tr.MaxLevel().Price)
}

func TestSuccessorPredecessor(t *testing.T) {
	tr := NewRBTree()
	for _, p := range []int64{10, 20, 30} {
		tr.UpsertLevel(p)
	}
	assert.Equal(t, int64(20), tr.Successor(10).Price)
	assert.Equal(t, int64(30), tr.Successor(20).Price)
	assert.Nil(t, tr.Successor(30))

	assert.Equal(t, int64(20), tr.Predecessor(30).Price)
	assert.Nil(t, tr.Predecessor(10))

	// Keys between stored prices resolve to the nearest neighbor.
	assert.Equal(t, int64(20), tr.Successor(15).Price)
	assert.Equal(t, int64(10), tr.Predecessor(15).Price)
}

func TestDeleteLevel(t *testing.T) {
	tr := NewRBTree()
	for _, p := range []int64{5, 3, 8, 1, 4} {
		tr.UpsertLevel(p)
	}
	require.True(t, tr.DeleteLevel(3))
	assert.False(t, tr.DeleteLevel(3))
	assert.Equal(t, 4, tr.Size())
	assert.Nil(t, tr.FindLevel(3))
	assert.Equal(t, int64(4), tr.Successor(1).Price)
}

func TestRandomInsertDeleteKeepsOrder(t *testing.T) {
	tr := NewRBTree()
	rng := rand.New(rand.NewSource(42))

	keys := map[int64]bool{}
	for i := 0; i < 2000; i++ {
		k := int64(rng.Intn(500) + 1)
		if keys[k] {
			tr.DeleteLevel(k)
			delete(keys, k)
		} else {
			tr.UpsertLevel(k)
			keys[k] = true
		}
	}
	require.Equal(t, len(keys), tr.Size())

	want := make([]int64, 0, len(keys))
	for k := range keys {
		want = append(want, k)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	var got []int64
	tr.ForEachAscending(func(lvl *PriceLevel) bool {
		got = append(got, lvl.Price)
		return true
	})
	assert.Equal(t, want, got)

	var desc []int64
	tr.ForEachDescending(func(lvl *PriceLevel) bool {
		desc = append(desc, lvl.Price)
		return true
	})
	for i, j := 0, len(want)-1; i < len(want); i, j = i+1, j-1 {
		assert.Equal(t, want[j], desc[i])
	}
}

// checkRBInvariants walks the tree and fails the test on a red node with
// a red child or on uneven black heights. Returns the black height.
func checkRBInvariants(t *testing.T, tr *RBTree, n *node) int {
	t.Helper()
	if n == tr.nil {
		return 1
	}
	if n.color == red {
		require.Equal(t, black, n.left.color, "red node %d has red left child", n.key)
		require.Equal(t, black, n.right.color, "red node %d has red right child", n.key)
	}
	lh := checkRBInvariants(t, tr, n.left)
	rh := checkRBInvariants(t, tr, n.right)
	require.Equal(t, lh, rh, "black height mismatch under %d", n.key)
	if n.color == black {
		lh++
	}
	return lh
}

func TestDeleteRebalancesBothDirections(t *testing.T) {
	tr := NewRBTree()
	rng := rand.New(rand.NewSource(7))

	// Ascending and descending bulk inserts force deletions to walk both
	// fixup arms, including the inner-child double rotations.
	var keys []int64
	for k := int64(1); k <= 64; k++ {
		tr.UpsertLevel(k)
		keys = append(keys, k)
	}
	for k := int64(200); k > 128; k-- {
		tr.UpsertLevel(k)
		keys = append(keys, k)
	}
	require.Equal(t, black, tr.root.color)
	checkRBInvariants(t, tr, tr.root)

	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	for i, k := range keys {
		require.True(t, tr.DeleteLevel(k))
		require.Equal(t, black, tr.root.color)
		checkRBInvariants(t, tr, tr.root)
		require.Equal(t, len(keys)-i-1, tr.Size())
	}
	assert.Nil(t, tr.MinLevel())
}

func TestClear(t *testing.T) {
	tr := NewRBTree()
	tr.UpsertLevel(1)
	tr.UpsertLevel(2)
	tr.Clear()
	assert.Equal(t, 0, tr.Size())
	assert.Nil(t, tr.MinLevel())
}
