package store

import (
	"testing"

	"github.com/dreamware/distmem/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocNamesAreRankPrefixedAndMonotonic(t *testing.T) {
	s := New(3)
	n0 := s.Alloc(wire.IntValue(10))
	n1 := s.Alloc(wire.IntValue(20))
	assert.Equal(t, "3-0", n0)
	assert.Equal(t, "3-1", n1)
}

func TestReadMissingNameReportsAbsent(t *testing.T) {
	s := New(0)
	_, ok := s.Read("0-99")
	assert.False(t, ok)
}

func TestReadRoundTripsValue(t *testing.T) {
	s := New(0)
	name := s.Alloc(wire.ListValue([]int64{1, 2, 3}))
	v, ok := s.Read(name)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2, 3}, v.List)
}

func TestModifyIntReplacesWholeValue(t *testing.T) {
	s := New(0)
	name := s.Alloc(wire.IntValue(5))

	ok, err := s.Modify(name, 42, nil, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	v, _ := s.Read(name)
	assert.Equal(t, int64(42), v.Int)
}

func TestModifyListElementByLocalIndex(t *testing.T) {
	s := New(0)
	name := s.Alloc(wire.ListValue([]int64{1, 2, 3}))
	idx := 1

	ok, err := s.Modify(name, 99, &idx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	v, _ := s.Read(name)
	assert.Equal(t, []int64{1, 99, 3}, v.List)
}

func TestModifyMissingNameReturnsFalse(t *testing.T) {
	s := New(0)
	ok, err := s.Modify("0-1", 1, nil, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestModifyRejectsStaleTimestamp(t *testing.T) {
	s := New(0)
	name := s.Alloc(wire.IntValue(0))

	ok, err := s.Modify(name, 1, nil, 10)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Modify(name, 2, nil, 5)
	require.NoError(t, err)
	assert.False(t, ok, "a write with an older timestamp than the last committed write must lose")

	v, _ := s.Read(name)
	assert.Equal(t, int64(1), v.Int, "the stale write must not have applied")
}

func TestModifySerialWritesBothCommitInOrder(t *testing.T) {
	s := New(0)
	name := s.Alloc(wire.IntValue(0))

	ok, err := s.Modify(name, 1, nil, 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Modify(name, 2, nil, 2)
	require.NoError(t, err)
	require.True(t, ok)

	v, _ := s.Read(name)
	assert.Equal(t, int64(2), v.Int)
}

func TestModifyListOutOfRangeLocalIndexErrors(t *testing.T) {
	s := New(0)
	name := s.Alloc(wire.ListValue([]int64{1, 2, 3}))
	idx := 7

	_, err := s.Modify(name, 99, &idx, 1)
	assert.Error(t, err)
}

func TestFreeReportsElementCountAndExistence(t *testing.T) {
	s := New(0)
	name := s.Alloc(wire.ListValue([]int64{1, 2, 3}))

	count, existed := s.Free(name)
	assert.True(t, existed)
	assert.Equal(t, 3, count)

	_, ok := s.Read(name)
	assert.False(t, ok)
}

func TestFreeMissingNameReportsNotExisted(t *testing.T) {
	s := New(0)
	count, existed := s.Free("0-1")
	assert.False(t, existed)
	assert.Equal(t, 0, count)
}

func TestMapAppliesPointwiseToList(t *testing.T) {
	s := New(0)
	name := s.Alloc(wire.ListValue([]int64{1, 2, 3}))
	s.Map(name, func(x int64) int64 { return x * 2 })

	v, _ := s.Read(name)
	assert.Equal(t, []int64{2, 4, 6}, v.List)
}

func TestMapOnMissingNameIsSilentNoOp(t *testing.T) {
	s := New(0)
	assert.NotPanics(t, func() {
		s.Map("0-1", func(x int64) int64 { return x + 1 })
	})
}

func TestFilterListDropsNonMatching(t *testing.T) {
	s := New(0)
	name := s.Alloc(wire.ListValue([]int64{1, 2, 3, 4}))

	removed, stillPresent, remainingLen, existed := s.Filter(name, func(x int64) bool { return x%2 == 0 })
	assert.True(t, existed)
	assert.True(t, stillPresent)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 2, remainingLen)

	v, _ := s.Read(name)
	assert.Equal(t, []int64{2, 4}, v.List)
}

func TestFilterListEmptiedRemovesEntry(t *testing.T) {
	s := New(0)
	name := s.Alloc(wire.ListValue([]int64{1, 3, 5}))

	_, stillPresent, remainingLen, existed := s.Filter(name, func(x int64) bool { return x%2 == 0 })
	assert.True(t, existed)
	assert.False(t, stillPresent)
	assert.Equal(t, 0, remainingLen)

	_, ok := s.Read(name)
	assert.False(t, ok)
}

func TestFilterIntFailingPredRemovesEntry(t *testing.T) {
	s := New(0)
	name := s.Alloc(wire.IntValue(3))

	removed, stillPresent, remainingLen, existed := s.Filter(name, func(x int64) bool { return x%2 == 0 })
	assert.True(t, existed)
	assert.False(t, stillPresent)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, remainingLen)
}

func TestFoldSumsListInOrder(t *testing.T) {
	s := New(0)
	name := s.Alloc(wire.ListValue([]int64{1, 2, 3, 4}))

	result, existed := s.Fold(name, func(acc, x int64) int64 { return acc + x }, 0)
	assert.True(t, existed)
	assert.Equal(t, int64(10), result)
}

func TestFoldMissingNameReturnsAccUnchanged(t *testing.T) {
	s := New(0)
	result, existed := s.Fold("0-1", func(acc, x int64) int64 { return acc + x }, 7)
	assert.False(t, existed)
	assert.Equal(t, int64(7), result)
}

func TestSizeSumsAcrossVariables(t *testing.T) {
	s := New(0)
	s.Alloc(wire.IntValue(1))
	s.Alloc(wire.ListValue([]int64{1, 2, 3}))
	assert.Equal(t, 4, s.Size())
}
