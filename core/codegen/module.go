package codegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereal-ir/evmla/core/evmla/assembly"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	errNoCodeType   = errors.New("no code region selected")
	errNoBasicBlock = errors.New("no basic block selected")
)

// unsupported lists the instructions the target cannot express.
var unsupported = map[assembly.Name]struct{}{
	assembly.CALLCODE:     {},
	assembly.PC:           {},
	assembly.SELFDESTRUCT: {},
	assembly.EXTCODECOPY:  {},
}

// Module is the reference target: it lowers operations into a textual,
// register-numbered listing kept per code region.
type Module struct {
	name      string
	optimizer OptimizerSettings

	sections [Runtime + 1]strings.Builder
	codeType CodeType
	selected bool
	block    *BlockRef
	emitted  int
}

// NewModule creates an empty module.
func NewModule(name string, optimizer OptimizerSettings) *Module {
	return &Module{name: name, optimizer: optimizer}
}

func (m *Module) SetCodeType(codeType CodeType) error {
	if codeType > Runtime {
		return fmt.Errorf("unknown code region %v", codeType)
	}
	m.codeType, m.selected = codeType, true
	return nil
}

func (m *Module) SetBasicBlock(ref BlockRef) error {
	if !m.selected {
		return errNoCodeType
	}
	if ref.Key.CodeType != m.codeType {
		return fmt.Errorf("block %v does not belong to the %v code", ref, m.codeType)
	}
	m.block = &ref
	fmt.Fprintf(&m.sections[m.codeType], "block_%s:\n", ref)
	return nil
}

func (m *Module) Emit(op Operation) error {
	if m.block == nil {
		return errNoBasicBlock
	}
	if _, ok := unsupported[op.Instruction.Name]; ok && !op.Implicit {
		return fmt.Errorf("the `%s` instruction is not supported by the target", op.Instruction.Name)
	}
	fmt.Fprintf(&m.sections[m.codeType], "    %s\n", op)
	m.emitted++
	return nil
}

// AppendSource copies an already lowered listing (LLVM IR or target assembly)
// into the selected region verbatim.
func (m *Module) AppendSource(codeType CodeType, source string) error {
	if err := m.SetCodeType(codeType); err != nil {
		return err
	}
	section := &m.sections[codeType]
	section.WriteString(source)
	if !strings.HasSuffix(source, "\n") {
		section.WriteByte('\n')
	}
	return nil
}

// Emitted returns the number of operations lowered so far.
func (m *Module) Emitted() int {
	return m.emitted
}

// Build is the lowered module with its embedded build metadata.
type Build struct {
	Assembly     string       // textual listing
	Bytecode     []byte       // listing followed by the metadata hash, if any
	Hash         common.Hash  // Keccak-256 of the bytecode
	MetadataHash *common.Hash `json:",omitempty"`
}

// Build finalises the module. The metadata hash, when given, is appended to
// the bytecode so that it becomes part of the bytecode hash.
func (m *Module) Build(metadataHash *common.Hash) (*Build, error) {
	var text strings.Builder
	fmt.Fprintf(&text, "; module %s\n; optimizer %s\n", m.name, m.optimizer)
	for codeType := Deploy; codeType <= Runtime; codeType++ {
		if m.sections[codeType].Len() == 0 {
			continue
		}
		fmt.Fprintf(&text, ".code %s\n", codeType)
		text.WriteString(m.sections[codeType].String())
	}
	build := &Build{Assembly: text.String()}
	build.Bytecode = []byte(build.Assembly)
	if metadataHash != nil {
		hash := *metadataHash
		build.MetadataHash = &hash
		build.Bytecode = append(build.Bytecode, hash[:]...)
	}
	build.Hash = crypto.Keccak256Hash(build.Bytecode)
	return build, nil
}
