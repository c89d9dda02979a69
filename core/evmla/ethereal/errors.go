package ethereal

import (
	"errors"
	"fmt"

	"github.com/ethereal-ir/evmla/core/codegen"
	"github.com/ethereal-ir/evmla/core/evmla/assembly"
)

var (
	// ErrMalformedInput is returned for instruction streams that cannot be
	// partitioned: an empty slice, a bad tag or push operand, an untagged
	// block in the middle of a region or an unresolvable jump.
	ErrMalformedInput = errors.New("malformed input")

	// ErrStackUnderflow is returned when an instruction needs more slots than
	// the simulated stack holds.
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrStackOverflow is returned when the simulated stack outgrows the
	// machine stack limit.
	ErrStackOverflow = errors.New("stack overflow")

	// ErrDanglingPredecessor is returned when an edge references a block that
	// does not exist in the region.
	ErrDanglingPredecessor = errors.New("dangling predecessor")
)

// BlockError attaches the failing block and instruction to an error.
type BlockError struct {
	Key         codegen.BlockKey
	Instance    int // -1 before specialisation
	Index       int // element index, -1 if not tied to one
	Instruction *assembly.Instruction
	Err         error
}

func (e *BlockError) Error() string {
	where := "block_" + e.Key.String()
	if e.Instance >= 0 {
		where = fmt.Sprintf("%s/%d", where, e.Instance)
	}
	if e.Instruction != nil {
		return fmt.Sprintf("%s, element %d (%v): %v", where, e.Index, *e.Instruction, e.Err)
	}
	return fmt.Sprintf("%s: %v", where, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}
