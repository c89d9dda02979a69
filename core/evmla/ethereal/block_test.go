package ethereal

import (
	"errors"
	"strconv"
	"testing"

	"github.com/ethereal-ir/evmla/core/codegen"
	"github.com/ethereal-ir/evmla/core/evmla/assembly"
	"github.com/ethereal-ir/evmla/params"
	fuzz "github.com/google/gofuzz"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tag(n string) assembly.Instruction     { return assembly.NewWithValue(assembly.Tag, n) }
func push(v string) assembly.Instruction    { return assembly.NewWithValue(assembly.PUSH, v) }
func pushTag(n string) assembly.Instruction { return assembly.NewWithValue(assembly.PUSH_Tag, n) }
func op(name assembly.Name) assembly.Instruction {
	return assembly.New(name)
}

func names(b *Block) []assembly.Name {
	out := make([]assembly.Name, len(b.Elements))
	for i := range b.Elements {
		out[i] = b.Elements[i].Instruction.Name
	}
	return out
}

func TestPartitionTwoBlocks(t *testing.T) {
	stream := []assembly.Instruction{tag("1"), push("5"), push("3"), op(assembly.ADD), tag("2"), op(assembly.RETURN)}
	blocks, err := Partition(params.DefaultLanguageVersion, codegen.Deploy, stream)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, uint64(1), blocks[0].Key.Tag.Uint64())
	assert.Equal(t, []assembly.Name{assembly.PUSH, assembly.PUSH, assembly.ADD}, names(blocks[0]))
	assert.Nil(t, blocks[0].Exit())

	assert.Equal(t, uint64(2), blocks[1].Key.Tag.Uint64())
	assert.Equal(t, []assembly.Name{assembly.RETURN}, names(blocks[1]))
	assert.NotNil(t, blocks[1].Exit())

	for _, b := range blocks {
		assert.Empty(t, b.Predecessors())
		_, ok := b.Instance()
		assert.False(t, ok, "construction never assigns an instance")
	}
}

func TestPartitionCoversEveryInstruction(t *testing.T) {
	stream := []assembly.Instruction{
		push("80"), push("40"), op(assembly.MSTORE), op(assembly.CALLVALUE), pushTag("1"), op(assembly.JUMPI),
		push("0"), op(assembly.DUP1), op(assembly.REVERT),
		tag("1"), op(assembly.JUMPDEST), op(assembly.POP), op(assembly.STOP),
		op(assembly.INVALID),
		tag("2"), op(assembly.JUMPDEST),
		tag("3"), op(assembly.JUMPDEST), push("1"),
	}
	blocks, err := Partition(params.DefaultLanguageVersion, codegen.Runtime, stream)
	require.NoError(t, err)

	covered := 0
	for i, b := range blocks {
		covered += len(b.Elements)
		if b.tagged {
			covered++
		}
		for j := range b.Elements {
			if b.Elements[j].Instruction.Name.IsTerminator() {
				assert.Equal(t, len(b.Elements)-1, j, "terminator must close block %d", i)
			}
			assert.NotEqual(t, assembly.Tag, b.Elements[j].Instruction.Name)
		}
	}
	assert.Equal(t, len(stream), covered)
	require.Len(t, blocks, 5)
	assert.Equal(t, []assembly.Name{assembly.INVALID}, names(blocks[2]), "untagged block after a terminator")
}

// streamAlphabet draws random instructions that always decode.
var streamAlphabet = []func(c fuzz.Continue) assembly.Instruction{
	func(c fuzz.Continue) assembly.Instruction { return tag(strconv.Itoa(c.Intn(16))) },
	func(c fuzz.Continue) assembly.Instruction { return pushTag(strconv.Itoa(c.Intn(16))) },
	func(c fuzz.Continue) assembly.Instruction { return push(strconv.FormatUint(c.Uint64(), 16)) },
	func(fuzz.Continue) assembly.Instruction { return op(assembly.JUMPDEST) },
	func(fuzz.Continue) assembly.Instruction { return op(assembly.JUMP) },
	func(fuzz.Continue) assembly.Instruction { return op(assembly.JUMPI) },
	func(fuzz.Continue) assembly.Instruction { return op(assembly.STOP) },
	func(fuzz.Continue) assembly.Instruction { return op(assembly.RETURN) },
	func(fuzz.Continue) assembly.Instruction { return op(assembly.REVERT) },
	func(fuzz.Continue) assembly.Instruction { return op(assembly.INVALID) },
	func(fuzz.Continue) assembly.Instruction { return op(assembly.ADD) },
	func(fuzz.Continue) assembly.Instruction { return op(assembly.DUP1) },
	func(fuzz.Continue) assembly.Instruction { return op(assembly.SWAP1) },
	func(fuzz.Continue) assembly.Instruction { return op(assembly.POP) },
	func(fuzz.Continue) assembly.Instruction { return op(assembly.CALLVALUE) },
}

func TestPartitionRandomStreams(t *testing.T) {
	f := fuzz.NewWithSeed(1).NilChance(0).NumElements(1, 64).Funcs(
		func(instr *assembly.Instruction, c fuzz.Continue) {
			*instr = streamAlphabet[c.Intn(len(streamAlphabet))](c)
		},
	)
	for round := 0; round < 500; round++ {
		var stream []assembly.Instruction
		f.Fuzz(&stream)
		require.NotEmpty(t, stream)

		var (
			blocks []*Block
			offset int
		)
		for offset < len(stream) {
			block, consumed, err := TryFromInstructions(params.DefaultLanguageVersion, codegen.Deploy, stream[offset:])
			require.NoError(t, err, "round %d offset %d", round, offset)
			require.Positive(t, consumed)

			assert.Equal(t, stream[offset].Name == assembly.Tag, block.tagged)
			elements := consumed
			if block.tagged {
				elements--
			}
			require.Len(t, block.Elements, elements)
			for j := range block.Elements {
				name := block.Elements[j].Instruction.Name
				assert.NotEqual(t, assembly.Tag, name)
				if name.IsTerminator() {
					assert.Equal(t, len(block.Elements)-1, j, "round %d: terminator must close the block", round)
				}
			}
			// A block only ends early at a terminator or before the next tag.
			if end := offset + consumed; end < len(stream) {
				assert.True(t, block.Exit() != nil || stream[end].Name == assembly.Tag, "round %d offset %d", round, offset)
			}
			blocks = append(blocks, block)
			offset += consumed
		}
		assert.Equal(t, len(stream), offset)

		partitioned, err := Partition(params.DefaultLanguageVersion, codegen.Deploy, stream)
		require.NoError(t, err)
		require.Len(t, partitioned, len(blocks))
		for i := range blocks {
			assert.Equal(t, names(blocks[i]), names(partitioned[i]))
		}
	}
}

func TestTryFromInstructionsErrors(t *testing.T) {
	v := params.DefaultLanguageVersion
	_, _, err := TryFromInstructions(v, codegen.Deploy, nil)
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, _, err = TryFromInstructions(v, codegen.Deploy, []assembly.Instruction{tag("x"), op(assembly.STOP)})
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, _, err = TryFromInstructions(v, codegen.Deploy, []assembly.Instruction{tag("1"), push("")})
	assert.ErrorIs(t, err, ErrMalformedInput)
	var blockErr *BlockError
	require.True(t, errors.As(err, &blockErr))
	assert.Equal(t, 0, blockErr.Index)
	assert.Equal(t, -1, blockErr.Instance)

	_, err = Partition(v, codegen.Deploy, nil)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestTryFromInstructionsConsumed(t *testing.T) {
	stream := []assembly.Instruction{tag("7"), op(assembly.JUMPDEST), op(assembly.STOP), push("1")}
	b, consumed, err := TryFromInstructions(params.DefaultLanguageVersion, codegen.Runtime, stream)
	require.NoError(t, err)
	assert.Equal(t, 3, consumed)
	assert.Equal(t, "runtime_7", b.Key.String())
}

func TestInsertPredecessorIdempotent(t *testing.T) {
	b, _, err := TryFromInstructions(params.DefaultLanguageVersion, codegen.Deploy, []assembly.Instruction{tag("2"), op(assembly.STOP)})
	require.NoError(t, err)

	from := codegen.NewBlockKey(codegen.Deploy, uint256.NewInt(1))
	b.InsertPredecessor(from, 0)
	b.InsertPredecessor(from, 0)
	b.InsertPredecessor(from, 1)
	assert.Len(t, b.Predecessors(), 2)
	assert.Equal(t, "block_deploy_2/0: (predecessors: deploy_1/0, deploy_1/1)\n    STOP\n", b.String())
}

func TestBlockDisplayDeterministic(t *testing.T) {
	stream := []assembly.Instruction{tag("1"), push("5"), push("3"), op(assembly.ADD)}
	b1, _, err := TryFromInstructions(params.DefaultLanguageVersion, codegen.Deploy, stream)
	require.NoError(t, err)
	b2, _, err := TryFromInstructions(params.DefaultLanguageVersion, codegen.Deploy, stream)
	require.NoError(t, err)
	assert.Equal(t, b1.String(), b2.String())
	assert.Equal(t, "block_deploy_1/0:\n    PUSH 5\n    PUSH 3\n    ADD\n", b1.String())

	require.NoError(t, b1.Replay())
	require.NoError(t, b2.Replay())
	assert.Equal(t, b1.String(), b2.String())
	assert.Contains(t, b1.String(), "[ 0x8 ]")
}

func TestBlockReplayRoundTrip(t *testing.T) {
	stream := []assembly.Instruction{
		tag("4"), op(assembly.CALLVALUE), push("2"), op(assembly.DUP2), op(assembly.SWAP1), op(assembly.MUL),
		op(assembly.CALLDATASIZE), op(assembly.SWAP2), op(assembly.POP),
	}
	b, _, err := TryFromInstructions(params.DefaultLanguageVersion, codegen.Runtime, stream)
	require.NoError(t, err)
	require.NoError(t, b.Replay())
	first := b.Stack.Snapshot()

	require.NoError(t, b.Replay())
	assert.True(t, b.Stack.Equal(&first))
	assert.Equal(t, 0, b.InitialStack.Len())
	assert.Equal(t, 2, b.Stack.Len())
}

func TestBlockReplayUnderflow(t *testing.T) {
	for _, name := range []assembly.Name{assembly.POP, assembly.DUP3, assembly.SWAP1} {
		b, _, err := TryFromInstructions(params.DefaultLanguageVersion, codegen.Deploy, []assembly.Instruction{tag("1"), op(name)})
		require.NoError(t, err)
		err = b.Replay()
		assert.ErrorIs(t, err, ErrStackUnderflow, name.String())
		assert.Equal(t, 0, b.Stack.Len())
	}
}
