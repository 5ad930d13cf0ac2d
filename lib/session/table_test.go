package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKey = make([]byte, 32)
	testIV  = make([]byte, 16)
)

func newTestTable(t *testing.T, capacity int) *Table {
	t.Helper()
	tbl, err := NewTable(capacity)
	require.NoError(t, err)
	return tbl
}

func TestNewTableRejectsBadCapacity(t *testing.T) {
	_, err := NewTable(0)
	assert.Error(t, err)

	_, err = NewTable(MaxCapacity + 1)
	assert.Error(t, err)

	tbl, err := NewTable(MaxCapacity)
	require.NoError(t, err)
	assert.Equal(t, MaxCapacity, tbl.Cap())
}

func TestAllocateLowestIndexFirst(t *testing.T) {
	tbl := newTestTable(t, 3)

	for want := 0; want < 3; want++ {
		idx, state, err := tbl.Allocate(7)
		require.NoError(t, err)
		assert.Equal(t, want, idx)
		assert.NotNil(t, state)
	}
	assert.Equal(t, 3, tbl.Len())
	assert.True(t, tbl.Full())
}

func TestAllocateExhausted(t *testing.T) {
	tbl := newTestTable(t, 2)

	for i := 0; i < 2; i++ {
		_, state, err := tbl.Allocate(1)
		require.NoError(t, err)
		require.NoError(t, state.Initialize(testKey, testIV))
	}

	idx, state, err := tbl.Allocate(1)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, -1, idx)
	assert.Nil(t, state)
	assert.Equal(t, 2, tbl.Len())

	for i := 0; i < 2; i++ {
		s, err := tbl.Validate(1, i)
		require.NoError(t, err)
		assert.True(t, s.Valid())
	}
}

func TestValidateChecksOwnerAndLiveness(t *testing.T) {
	tbl := newTestTable(t, 2)

	idx, _, err := tbl.Allocate(10)
	require.NoError(t, err)

	_, err = tbl.Validate(10, idx)
	assert.NoError(t, err)

	_, err = tbl.Validate(11, idx)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = tbl.Validate(10, 1)
	assert.ErrorIs(t, err, ErrInvalidSession, "free slot")

	_, err = tbl.Validate(10, 2)
	assert.ErrorIs(t, err, ErrInvalidSession, "out of range")

	_, err = tbl.Validate(10, -1)
	assert.ErrorIs(t, err, ErrInvalidSession, "negative index")
}

func TestReleaseDisposesAndAllowsReuse(t *testing.T) {
	tbl := newTestTable(t, 2)

	idx, state, err := tbl.Allocate(1)
	require.NoError(t, err)
	require.NoError(t, state.Initialize(testKey, testIV))
	_, _, err = tbl.Allocate(1)
	require.NoError(t, err)

	tbl.Release(idx)
	assert.False(t, state.Valid())
	assert.False(t, tbl.InUse(idx))
	assert.Equal(t, 1, tbl.Len())

	_, err = tbl.Validate(1, idx)
	assert.ErrorIs(t, err, ErrInvalidSession)

	again, _, err := tbl.Allocate(2)
	require.NoError(t, err)
	assert.Equal(t, idx, again)

	// A handle minted for the previous owner must not address the new occupant.
	oldOwner, oldIndex := Decode(Encode(1, idx))
	_, err = tbl.Validate(oldOwner, oldIndex)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestReleaseIsIdempotent(t *testing.T) {
	tbl := newTestTable(t, 1)

	idx, _, err := tbl.Allocate(1)
	require.NoError(t, err)

	tbl.Release(idx)
	tbl.Release(idx)
	tbl.Release(5)
	tbl.Release(-1)

	assert.Equal(t, 0, tbl.Len())
}

func TestLiveCountMatchesInUseSlots(t *testing.T) {
	tbl := newTestTable(t, 4)

	ops := []struct {
		allocate bool
		index    int
	}{
		{true, 0}, {true, 0}, {true, 0}, {false, 1}, {true, 0}, {false, 0}, {false, 0}, {true, 0},
	}
	for _, op := range ops {
		if op.allocate {
			_, _, _ = tbl.Allocate(3)
		} else {
			tbl.Release(op.index)
		}

		inUse := 0
		for i := 0; i < tbl.Cap(); i++ {
			if tbl.InUse(i) {
				inUse++
			}
		}
		assert.Equal(t, inUse, tbl.Len())
		assert.LessOrEqual(t, tbl.Len(), tbl.Cap())
	}
}

func TestReleaseOwnerOnlyTouchesThatOwner(t *testing.T) {
	tbl := newTestTable(t, 4)

	for _, owner := range []OwnerID{7, 9, 7, 9} {
		_, state, err := tbl.Allocate(owner)
		require.NoError(t, err)
		require.NoError(t, state.Initialize(testKey, testIV))
	}

	assert.Equal(t, 2, tbl.ReleaseOwner(7))
	assert.Equal(t, 2, tbl.Len())
	assert.False(t, tbl.InUse(0))
	assert.True(t, tbl.InUse(1))
	assert.False(t, tbl.InUse(2))
	assert.True(t, tbl.InUse(3))

	_, err := tbl.Validate(9, 1)
	assert.NoError(t, err)
	assert.Equal(t, 0, tbl.ReleaseOwner(7))
}
