package ethereal

import (
	"testing"

	"github.com/ethereal-ir/evmla/params"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackPushPop(t *testing.T) {
	s := NewStack()
	require.NoError(t, s.Push(ConstantSlot(uint256.NewInt(7))))
	v, err := s.PushOpaque()
	require.NoError(t, err)
	assert.Equal(t, Opaque, v.Kind)
	assert.Equal(t, 2, s.Len())

	top, err := s.Pop()
	require.NoError(t, err)
	assert.Equal(t, v, top)
	top, err = s.Pop()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), top.Value.Uint64())

	_, err = s.Pop()
	assert.ErrorIs(t, err, ErrStackUnderflow)
}

func TestStackOverflow(t *testing.T) {
	s := NewStack()
	for i := 0; i < params.StackLimit; i++ {
		require.NoError(t, s.Push(ConstantSlot(uint256.NewInt(uint64(i)))))
	}
	err := s.Push(ConstantSlot(uint256.NewInt(0)))
	assert.ErrorIs(t, err, ErrStackOverflow)
}

func TestStackDupSwap(t *testing.T) {
	s := NewStack()
	_, _ = s.PushOpaque()
	require.NoError(t, s.Push(TagSlot(uint256.NewInt(3))))

	require.NoError(t, s.Dup(2))
	top, _ := s.Peek(0)
	assert.Equal(t, Duplicate, top.Kind)
	assert.Equal(t, 0, top.Of)
	assert.Equal(t, "V0@0", top.String())

	require.NoError(t, s.Dup(2))
	top, _ = s.Peek(0)
	assert.Equal(t, TagRef, top.Kind, "known slots are copied as they are")

	require.NoError(t, s.Swap(3))
	assert.Equal(t, "[ T_3 T_3 V0@0 V0 ]", s.String())

	assert.ErrorIs(t, s.Dup(5), ErrStackUnderflow)
	assert.ErrorIs(t, s.Swap(4), ErrStackUnderflow)
	assert.ErrorIs(t, s.Dup(0), ErrStackUnderflow)
}

func TestStackDuplicateRecordsDupPosition(t *testing.T) {
	s := NewStack()
	first, _ := s.PushOpaque()
	_, _ = s.PushOpaque()
	require.NoError(t, s.Dup(2))
	require.NoError(t, s.Swap(2))
	_, err := s.Pop()
	require.NoError(t, err)

	// The copy now sits at position 0, the position it was taken from
	// stays recorded and ID still names the original value.
	bottom, _ := s.Peek(1)
	assert.Equal(t, Duplicate, bottom.Kind)
	assert.Equal(t, first.ID, bottom.ID)
	assert.Equal(t, 0, bottom.Of)
	assert.Equal(t, "[ V0@0 V1 ]", s.String())
}

func TestStackGeneralize(t *testing.T) {
	s := NewStack()
	require.NoError(t, s.Push(ConstantSlot(uint256.NewInt(1))))
	require.NoError(t, s.Push(TagSlot(uint256.NewInt(4))))
	require.NoError(t, s.Push(ConstantSlot(uint256.NewInt(7))))

	other := s.Snapshot()
	other.slots[2] = ConstantSlot(uint256.NewInt(8))
	require.Equal(t, s.Shape(), other.Shape())

	assert.True(t, s.generalize(&other))
	assert.Equal(t, "[ 0x1 T_4 V0 ]", s.String())
	assert.Equal(t, s.Shape(), other.Shape())

	// Agreeing constants and runtime values are kept.
	assert.False(t, s.generalize(&other))
	assert.Equal(t, "[ 0x1 T_4 V0 ]", s.String())
}

func TestStackSnapshotIsIndependent(t *testing.T) {
	s := NewStack()
	require.NoError(t, s.Push(ConstantSlot(uint256.NewInt(1))))
	snap := s.Snapshot()

	require.NoError(t, s.Push(ConstantSlot(uint256.NewInt(2))))
	assert.Equal(t, 1, snap.Len())
	assert.False(t, s.Equal(&snap))

	s.Restore(snap)
	assert.True(t, s.Equal(&snap))
	require.NoError(t, s.Push(ConstantSlot(uint256.NewInt(3))))
	assert.Equal(t, 1, snap.Len())
}

func TestStackShapeAndDigest(t *testing.T) {
	a, b := NewStack(), NewStack()
	require.NoError(t, a.Push(ConstantSlot(uint256.NewInt(1))))
	require.NoError(t, b.Push(ConstantSlot(uint256.NewInt(2))))
	assert.Equal(t, a.Shape(), b.Shape(), "constants do not change the shape")
	assert.NotEqual(t, a.Digest(), b.Digest())

	c := NewStack()
	require.NoError(t, c.Push(TagSlot(uint256.NewInt(1))))
	assert.NotEqual(t, a.Shape(), c.Shape(), "tags change the shape")

	d := NewStack()
	_, _ = d.PushOpaque()
	assert.Equal(t, a.Shape(), d.Shape())

	empty := NewStack()
	assert.NotEqual(t, empty.Shape(), d.Shape(), "depth changes the shape")
}
