package ethereal

import (
	"fmt"
	"math/big"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereal-ir/evmla/core/codegen"
	"github.com/ethereal-ir/evmla/core/evmla/assembly"
	"github.com/ethereal-ir/evmla/params"
	"github.com/holiman/uint256"
)

// Element is one instruction of a block together with the language version
// it was compiled with. Replaying it against a stack records the operation
// the code generator has to emit.
type Element struct {
	version     *semver.Version
	Instruction assembly.Instruction

	value uint256.Int // decoded PUSH/PUSH [tag] operand

	operands []Slot // consumed by the last replay, top first
	results  []Slot // produced by the last replay, top first
	folded   bool
	stack    Stack // stack right after the last replay
	replayed bool

	target *codegen.BlockRef // resolved destination of JUMP/JUMPI
}

// NewElement wraps an instruction. Operands the replay depends on are decoded
// here, so a malformed instruction fails at block construction.
func NewElement(version *semver.Version, instr assembly.Instruction) (Element, error) {
	elem := Element{version: version, Instruction: instr}
	switch instr.Name {
	case assembly.PUSH:
		value, err := parseOperand(instr.Value, 16)
		if err != nil {
			return Element{}, fmt.Errorf("%w: PUSH operand: %v", ErrMalformedInput, err)
		}
		elem.value = *value
	case assembly.PUSH_Tag, assembly.Tag:
		tag, err := parseOperand(instr.Value, 10)
		if err != nil {
			return Element{}, fmt.Errorf("%w: tag operand: %v", ErrMalformedInput, err)
		}
		elem.value = *tag
	case assembly.PUSH0:
		if version.LessThan(params.Push0Version) {
			return Element{}, fmt.Errorf("%w: PUSH0 requires language version %v or newer, have %v",
				ErrMalformedInput, params.Push0Version, version)
		}
	}
	return elem, nil
}

// parseOperand decodes a non-negative 256-bit operand in the given base.
func parseOperand(text string, base int) (*uint256.Int, error) {
	if text == "" {
		return nil, fmt.Errorf("missing value")
	}
	b, ok := new(big.Int).SetString(text, base)
	if !ok || b.Sign() < 0 {
		return nil, fmt.Errorf("invalid value %q", text)
	}
	value, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("value %q exceeds 256 bits", text)
	}
	return value, nil
}

// Replay applies the stack effect of the instruction and records the
// resulting operation.
func (e *Element) Replay(stack *Stack) error {
	e.operands, e.results, e.folded, e.replayed = nil, nil, false, false

	name := e.Instruction.Name
	switch {
	case name == assembly.PUSH || name == assembly.PUSH0:
		if err := stack.Push(ConstantSlot(&e.value)); err != nil {
			return err
		}
		e.results = []Slot{ConstantSlot(&e.value)}

	case name == assembly.PUSH_Tag:
		if err := stack.Push(TagSlot(&e.value)); err != nil {
			return err
		}
		e.results = []Slot{TagSlot(&e.value)}

	case isDup(name):
		n, _ := name.Dup()
		source, err := stack.Peek(n - 1)
		if err != nil {
			return err
		}
		if err := stack.Dup(n); err != nil {
			return err
		}
		top, _ := stack.Peek(0)
		e.operands, e.results = []Slot{source}, []Slot{top}

	case isSwap(name):
		n, _ := name.Swap()
		if err := stack.Swap(n); err != nil {
			return err
		}
		a, _ := stack.Peek(n)
		b, _ := stack.Peek(0)
		e.operands = []Slot{a, b}

	default:
		pops, pushes := name.StackEffect()
		e.operands = make([]Slot, 0, pops)
		for i := 0; i < pops; i++ {
			slot, err := stack.Pop()
			if err != nil {
				return fmt.Errorf("%v operand %d of %d: %w", name, i+1, pops, err)
			}
			e.operands = append(e.operands, slot)
		}
		if pushes == 1 {
			if value, ok := fold(name, e.operands); ok {
				if err := stack.Push(ConstantSlot(value)); err != nil {
					return err
				}
				e.results, e.folded = []Slot{ConstantSlot(value)}, true
				foldedCounter.Inc(1)
				break
			}
		}
		for i := 0; i < pushes; i++ {
			slot, err := stack.PushOpaque()
			if err != nil {
				return err
			}
			e.results = append([]Slot{slot}, e.results...)
		}
	}
	e.stack = stack.Snapshot()
	e.replayed = true
	return nil
}

// Operation returns the code-generation action recorded by the last replay.
func (e *Element) Operation() codegen.Operation {
	return codegen.Operation{
		Instruction: e.Instruction,
		Inputs:      renderSlots(e.operands),
		Results:     renderSlots(e.results),
		Folded:      e.folded,
		Target:      e.target,
	}
}

// Operands returns the slots consumed by the last replay, top first.
func (e *Element) Operands() []Slot {
	return e.operands
}

func (e *Element) String() string {
	if !e.replayed {
		return e.Instruction.String()
	}
	return fmt.Sprintf("%-48s%s", e.Instruction.String(), e.stack.String())
}

func isDup(name assembly.Name) bool {
	_, ok := name.Dup()
	return ok
}

func isSwap(name assembly.Name) bool {
	_, ok := name.Swap()
	return ok
}

func renderSlots(slots []Slot) []string {
	if len(slots) == 0 {
		return nil
	}
	out := make([]string, len(slots))
	for i, slot := range slots {
		out[i] = slot.String()
	}
	return out
}

// fold evaluates pure operations whose operands are all constants. Tags are
// never folded, they only get their value when the module is linked.
func fold(name assembly.Name, operands []Slot) (*uint256.Int, bool) {
	for _, op := range operands {
		if op.Kind != Constant {
			return nil, false
		}
	}
	res := new(uint256.Int)
	switch len(operands) {
	case 1:
		a := &operands[0].Value
		switch name {
		case assembly.ISZERO:
			if a.IsZero() {
				res.SetOne()
			}
		case assembly.NOT:
			res.Not(a)
		default:
			return nil, false
		}
	case 2:
		// operands[0] was the top of the stack.
		a, b := &operands[0].Value, &operands[1].Value
		switch name {
		case assembly.ADD:
			res.Add(a, b)
		case assembly.MUL:
			res.Mul(a, b)
		case assembly.SUB:
			res.Sub(a, b)
		case assembly.DIV:
			res.Div(a, b)
		case assembly.MOD:
			res.Mod(a, b)
		case assembly.EXP:
			res.Exp(a, b)
		case assembly.AND:
			res.And(a, b)
		case assembly.OR:
			res.Or(a, b)
		case assembly.XOR:
			res.Xor(a, b)
		case assembly.EQ:
			if a.Eq(b) {
				res.SetOne()
			}
		case assembly.LT:
			if a.Lt(b) {
				res.SetOne()
			}
		case assembly.GT:
			if a.Gt(b) {
				res.SetOne()
			}
		case assembly.SLT:
			if a.Slt(b) {
				res.SetOne()
			}
		case assembly.SGT:
			if a.Sgt(b) {
				res.SetOne()
			}
		case assembly.SHL:
			if a.LtUint64(256) {
				res.Lsh(b, uint(a.Uint64()))
			}
		case assembly.SHR:
			if a.LtUint64(256) {
				res.Rsh(b, uint(a.Uint64()))
			}
		default:
			return nil, false
		}
	default:
		return nil, false
	}
	return res, true
}
