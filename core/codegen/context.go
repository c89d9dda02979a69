package codegen

import (
	"strings"

	"github.com/ethereal-ir/evmla/core/evmla/assembly"
)

// Operation is the code-generation action enqueued for one replayed
// instruction. Operand and result slots are rendered by the stack model,
// top of the stack first.
type Operation struct {
	Instruction assembly.Instruction
	Inputs      []string
	Results     []string

	// Folded is set when the result was computed at compile time and only
	// the constant needs to be materialised.
	Folded bool
	// Implicit marks a branch that has no instruction in the source, i.e.
	// the fall-through edge of a block that ends before the next tag.
	Implicit bool

	Target      *BlockRef // resolved destination of JUMP/JUMPI
	Fallthrough *BlockRef // JUMPI false branch
}

func (op Operation) String() string {
	var b strings.Builder
	if len(op.Results) > 0 && !op.Folded {
		b.WriteString(strings.Join(op.Results, ", "))
		b.WriteString(" = ")
	}
	if op.Implicit {
		b.WriteString("FALLTHROUGH")
	} else {
		b.WriteString(op.Instruction.String())
	}
	if len(op.Inputs) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(op.Inputs, ", "))
	}
	if op.Target != nil {
		b.WriteString(" -> block_")
		b.WriteString(op.Target.String())
	}
	if op.Fallthrough != nil {
		b.WriteString(" else block_")
		b.WriteString(op.Fallthrough.String())
	}
	if op.Folded && len(op.Results) > 0 {
		b.WriteString(" ; folded to ")
		b.WriteString(strings.Join(op.Results, ", "))
	}
	return b.String()
}

// Context is the target code generator. Both operations may fail; callers
// propagate the error untouched.
type Context interface {
	// SetCodeType selects the code region subsequent blocks are emitted into.
	SetCodeType(codeType CodeType) error
	// SetBasicBlock positions the generator at the start of a block instance.
	SetBasicBlock(ref BlockRef) error
	// Emit lowers one operation into the current block.
	Emit(op Operation) error
}

// NewFallthrough creates the implicit branch to the textually next block.
func NewFallthrough(target BlockRef) Operation {
	return Operation{
		Instruction: assembly.New(assembly.JUMP),
		Implicit:    true,
		Target:      &target,
	}
}
