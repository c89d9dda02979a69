package ethereal

import (
	"fmt"
	"strings"

	"github.com/ethereal-ir/evmla/params"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// SlotKind classifies what the simulated stack knows about a slot.
type SlotKind uint8

const (
	Opaque    SlotKind = iota // runtime value, identified by a value number
	Constant                  // compile-time constant
	TagRef                    // reference to a block tag, i.e. a jump target
	Duplicate                 // copy of opaque value ID, taken from position Of
)

// Slot is one abstract entry of the operand stack. Of records where a
// duplicate was copied from when the DUP ran; later swaps and pops do not
// update it, ID is what names the value.
type Slot struct {
	Kind  SlotKind
	Value uint256.Int // constant or tag
	ID    int         // value number of opaque slots and duplicates
	Of    int         // absolute source position at DUP time
}

// ConstantSlot creates a constant slot.
func ConstantSlot(value *uint256.Int) Slot {
	return Slot{Kind: Constant, Value: *value}
}

// TagSlot creates a slot holding a jump target.
func TagSlot(tag *uint256.Int) Slot {
	return Slot{Kind: TagRef, Value: *tag}
}

// Known reports whether the slot value is known at compile time.
func (s Slot) Known() bool {
	return s.Kind == Constant || s.Kind == TagRef
}

func (s Slot) String() string {
	switch s.Kind {
	case Constant:
		return s.Value.Hex()
	case TagRef:
		return "T_" + s.Value.Dec()
	case Duplicate:
		return fmt.Sprintf("V%d@%d", s.ID, s.Of)
	}
	return fmt.Sprintf("V%d", s.ID)
}

// Stack models the operand stack of the stack machine. It is a plain value:
// assigning or snapshotting it copies the slots, so no two blocks ever share
// one.
type Stack struct {
	slots []Slot
	next  int // next opaque value number
}

// NewStack returns an empty stack.
func NewStack() Stack {
	return Stack{}
}

// Len returns the number of slots.
func (s *Stack) Len() int {
	return len(s.slots)
}

// Push appends a slot on top of the stack.
func (s *Stack) Push(slot Slot) error {
	if len(s.slots) >= params.StackLimit {
		return fmt.Errorf("%w: limit %d", ErrStackOverflow, params.StackLimit)
	}
	s.slots = append(s.slots, slot)
	return nil
}

// PushOpaque pushes a fresh runtime value and returns it.
func (s *Stack) PushOpaque() (Slot, error) {
	slot := Slot{Kind: Opaque, ID: s.next}
	if err := s.Push(slot); err != nil {
		return Slot{}, err
	}
	s.next++
	return slot, nil
}

// Pop removes the top slot.
func (s *Stack) Pop() (Slot, error) {
	if len(s.slots) == 0 {
		return Slot{}, fmt.Errorf("%w: pop from an empty stack", ErrStackUnderflow)
	}
	slot := s.slots[len(s.slots)-1]
	s.slots = s.slots[:len(s.slots)-1]
	return slot, nil
}

// Peek returns the slot at the given depth, 0 being the top.
func (s *Stack) Peek(depth int) (Slot, error) {
	if depth < 0 || depth >= len(s.slots) {
		return Slot{}, fmt.Errorf("%w: depth %d, stack size %d", ErrStackUnderflow, depth, len(s.slots))
	}
	return s.slots[len(s.slots)-1-depth], nil
}

// Dup re-pushes the slot at the 1-based depth, like DUPn. Known values are
// copied as they are, runtime values become duplicates of their position.
func (s *Stack) Dup(depth int) error {
	if depth < 1 || depth > len(s.slots) {
		return fmt.Errorf("%w: DUP%d with stack size %d", ErrStackUnderflow, depth, len(s.slots))
	}
	pos := len(s.slots) - depth
	slot := s.slots[pos]
	if slot.Kind == Opaque {
		slot = Slot{Kind: Duplicate, ID: slot.ID, Of: pos}
	}
	return s.Push(slot)
}

// Swap exchanges the top slot with the one depth slots below it, like SWAPn.
func (s *Stack) Swap(depth int) error {
	if depth < 1 || depth >= len(s.slots) {
		return fmt.Errorf("%w: SWAP%d with stack size %d", ErrStackUnderflow, depth, len(s.slots))
	}
	top := len(s.slots) - 1
	s.slots[top], s.slots[top-depth] = s.slots[top-depth], s.slots[top]
	return nil
}

// Snapshot returns an independent copy of the stack.
func (s *Stack) Snapshot() Stack {
	slots := make([]Slot, len(s.slots))
	copy(slots, s.slots)
	return Stack{slots: slots, next: s.next}
}

// Restore replaces the stack contents with a snapshot.
func (s *Stack) Restore(snapshot Stack) {
	*s = snapshot.Snapshot()
}

// Slots returns a copy of the slots, bottom first.
func (s *Stack) Slots() []Slot {
	slots := make([]Slot, len(s.slots))
	copy(slots, s.slots)
	return slots
}

// Equal reports whether both stacks hold identical slots.
func (s *Stack) Equal(other *Stack) bool {
	if len(s.slots) != len(other.slots) || s.next != other.next {
		return false
	}
	for i := range s.slots {
		if s.slots[i] != other.slots[i] {
			return false
		}
	}
	return true
}

// generalize forgets every constant of s that other does not hold at the
// same position, turning it into a fresh runtime value. Both stacks must
// have the same shape. It reports whether s changed.
func (s *Stack) generalize(other *Stack) bool {
	changed := false
	for i, slot := range s.slots {
		if slot.Kind != Constant {
			continue
		}
		if peer := other.slots[i]; peer.Kind == Constant && peer.Value.Eq(&slot.Value) {
			continue
		}
		s.slots[i] = Slot{Kind: Opaque, ID: s.next}
		s.next++
		changed = true
	}
	return changed
}

// Shape digests the part of the stack that decides control flow: the depth
// and the position of every tag. Two entries with the same shape can share
// one block instance.
func (s *Stack) Shape() common.Hash {
	return s.digest(false)
}

// Digest is like Shape but also covers constants, telling apart routes
// that reach a block with the same shape.
func (s *Stack) Digest() common.Hash {
	return s.digest(true)
}

func (s *Stack) digest(constants bool) common.Hash {
	var (
		hasher = crypto.NewKeccakState()
		hash   common.Hash
	)
	for _, slot := range s.slots {
		switch {
		case slot.Kind == TagRef:
			word := slot.Value.Bytes32()
			hasher.Write([]byte{byte(TagRef)})
			hasher.Write(word[:])
		case slot.Kind == Constant && constants:
			word := slot.Value.Bytes32()
			hasher.Write([]byte{byte(Constant)})
			hasher.Write(word[:])
		default:
			hasher.Write([]byte{byte(Opaque)})
		}
	}
	hasher.Read(hash[:])
	return hash
}

func (s *Stack) String() string {
	var b strings.Builder
	b.WriteString("[ ")
	for _, slot := range s.slots {
		b.WriteString(slot.String())
		b.WriteByte(' ')
	}
	b.WriteString("]")
	return b.String()
}
