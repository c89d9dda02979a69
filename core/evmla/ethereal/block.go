package ethereal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereal-ir/evmla/core/codegen"
	"github.com/ethereal-ir/evmla/core/evmla/assembly"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	elementsDefaultCapacity     = 64
	predecessorsDefaultCapacity = 4
)

// Block is a maximal run of elements starting at a tag (or at the start of a
// region) and ending at an unconditional exit or right before the next tag.
type Block struct {
	version *semver.Version

	Key      codegen.BlockKey
	tagged   bool
	instance int // -1 until the assembly pass specialises the block

	Elements     []Element
	predecessors mapset.Set[codegen.BlockRef]

	InitialStack Stack // stack on entry, identical in shape for every predecessor
	Stack        Stack // stack after replaying the elements
	shape        common.Hash

	// ExtraHashes records the digests of alternative routes that were merged
	// into this instance because their stack had the same shape.
	ExtraHashes []common.Hash

	next *codegen.BlockRef // textually next block, if reachable by falling through
}

// TryFromInstructions builds one block from the head of the slice and returns
// it together with the number of instructions consumed.
func TryFromInstructions(version *semver.Version, codeType codegen.CodeType, slice []assembly.Instruction) (*Block, int, error) {
	if len(slice) == 0 {
		return nil, 0, fmt.Errorf("%w: empty instruction slice", ErrMalformedInput)
	}
	cursor := 0

	tag, tagged := new(uint256.Int), false
	if slice[0].Name == assembly.Tag {
		parsed, err := parseOperand(slice[0].Value, 10)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v: %v", ErrMalformedInput, slice[0], err)
		}
		tag = parsed
		cursor++
		tagged = true
	}

	block := &Block{
		version:      version,
		Key:          codegen.NewBlockKey(codeType, tag),
		tagged:       tagged,
		instance:     -1,
		Elements:     make([]Element, 0, elementsDefaultCapacity),
		predecessors: mapset.NewThreadUnsafeSetWithSize[codegen.BlockRef](predecessorsDefaultCapacity),
		InitialStack: NewStack(),
		Stack:        NewStack(),
	}

	for cursor < len(slice) {
		instr := slice[cursor]
		if instr.Name == assembly.Tag {
			break
		}
		element, err := NewElement(version, instr)
		if err != nil {
			return nil, 0, block.errorAt(len(block.Elements), &instr, err)
		}
		block.Elements = append(block.Elements, element)
		cursor++
		if instr.Name.IsTerminator() {
			break
		}
	}
	blocksCounter.Inc(1)
	return block, cursor, nil
}

// Partition splits a whole region into blocks. Every instruction ends up in
// exactly one block.
func Partition(version *semver.Version, codeType codegen.CodeType, instructions []assembly.Instruction) ([]*Block, error) {
	if len(instructions) == 0 {
		return nil, fmt.Errorf("%w: empty %v code", ErrMalformedInput, codeType)
	}
	var blocks []*Block
	for offset := 0; offset < len(instructions); {
		block, consumed, err := TryFromInstructions(version, codeType, instructions[offset:])
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
		offset += consumed
	}
	return blocks, nil
}

// Instance returns the instance index, if the block was specialised.
func (b *Block) Instance() (int, bool) {
	return b.instance, b.instance >= 0
}

// Ref returns the (key, instance) pair of the block. Unspecialised blocks
// refer to instance 0.
func (b *Block) Ref() codegen.BlockRef {
	return codegen.BlockRef{Key: b.Key, Instance: max(b.instance, 0)}
}

// InsertPredecessor records a block that can transfer control here. Inserting
// the same pair twice has no effect.
func (b *Block) InsertPredecessor(key codegen.BlockKey, instance int) {
	b.predecessors.Add(codegen.BlockRef{Key: key, Instance: instance})
}

// Predecessors returns the predecessor set in a stable order.
func (b *Block) Predecessors() []codegen.BlockRef {
	preds := b.predecessors.ToSlice()
	sort.Slice(preds, func(i, j int) bool {
		return preds[i].Compare(preds[j]) < 0
	})
	return preds
}

// Exit returns the last element if it ends control flow unconditionally.
func (b *Block) Exit() *Element {
	if len(b.Elements) == 0 {
		return nil
	}
	last := &b.Elements[len(b.Elements)-1]
	if !last.Instruction.Name.IsTerminator() {
		return nil
	}
	return last
}

// Replay resets the live stack to the initial stack and replays every element
// against it.
func (b *Block) Replay() error {
	b.Stack.Restore(b.InitialStack)
	for i := range b.Elements {
		if err := b.Elements[i].Replay(&b.Stack); err != nil {
			return b.errorAt(i, &b.Elements[i].Instruction, err)
		}
	}
	return nil
}

// specialize clones the block as the given instance entered with the given
// stack. Elements are copied so the instances replay independently.
func (b *Block) specialize(instance int, entry Stack) *Block {
	elements := make([]Element, len(b.Elements))
	copy(elements, b.Elements)
	return &Block{
		version:      b.version,
		Key:          b.Key,
		tagged:       b.tagged,
		instance:     instance,
		Elements:     elements,
		predecessors: mapset.NewThreadUnsafeSetWithSize[codegen.BlockRef](predecessorsDefaultCapacity),
		InitialStack: entry.Snapshot(),
		Stack:        NewStack(),
		shape:        entry.Shape(),
	}
}

// addRoute remembers an alternative route merged into this instance.
func (b *Block) addRoute(digest common.Hash) {
	if digest == b.InitialStack.Digest() {
		return
	}
	for _, known := range b.ExtraHashes {
		if known == digest {
			return
		}
	}
	b.ExtraHashes = append(b.ExtraHashes, digest)
}

// Successors returns the resolved control-flow successors of the block: the
// jump targets in element order, then the fall-through block.
func (b *Block) Successors() []codegen.BlockRef {
	var succs []codegen.BlockRef
	for i := range b.Elements {
		if target := b.Elements[i].target; target != nil {
			succs = append(succs, *target)
		}
	}
	if b.next != nil {
		succs = append(succs, *b.next)
	}
	return succs
}

// Emit lowers the block: it selects the code region, positions the context
// at the block and emits every element in order. The first failure aborts
// and is returned as is.
func (b *Block) Emit(ctx codegen.Context) error {
	if err := ctx.SetCodeType(b.Key.CodeType); err != nil {
		return err
	}
	if err := ctx.SetBasicBlock(b.Ref()); err != nil {
		return err
	}
	for i := range b.Elements {
		op := b.Elements[i].Operation()
		if i == len(b.Elements)-1 && op.Instruction.Name == assembly.JUMPI {
			op.Fallthrough = b.next
		}
		if err := ctx.Emit(op); err != nil {
			return err
		}
	}
	if b.next != nil && !b.endsWith(assembly.JUMPI) {
		return ctx.Emit(codegen.NewFallthrough(*b.next))
	}
	return nil
}

func (b *Block) endsWith(name assembly.Name) bool {
	return len(b.Elements) > 0 && b.Elements[len(b.Elements)-1].Instruction.Name == name
}

func (b *Block) errorAt(index int, instr *assembly.Instruction, err error) error {
	return &BlockError{Key: b.Key, Instance: b.instance, Index: index, Instruction: instr, Err: err}
}

func (b *Block) String() string {
	var out strings.Builder
	fmt.Fprintf(&out, "block_%s/%d:", b.Key, max(b.instance, 0))
	if preds := b.Predecessors(); len(preds) > 0 {
		names := make([]string, len(preds))
		for i, pred := range preds {
			names[i] = pred.String()
		}
		fmt.Fprintf(&out, " (predecessors: %s)", strings.Join(names, ", "))
	}
	out.WriteByte('\n')
	for i := range b.Elements {
		fmt.Fprintf(&out, "    %s\n", b.Elements[i].String())
	}
	return out.String()
}
