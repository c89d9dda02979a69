package project

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereal-ir/evmla/core/codegen"
	"github.com/ethereal-ir/evmla/core/evmla/assembly"
	"github.com/ethereal-ir/evmla/core/evmla/ethereal"
)

// ErrUnsupportedIR is returned for IR kinds this compiler has no front end
// for.
var ErrUnsupportedIR = errors.New("unsupported IR")

// IR is the source representation of one contract. Compilation runs two
// passes: Declare prepares everything the definitions refer to, Define
// lowers the contract into the module.
type IR interface {
	// Identifier is the full contract path or module name.
	Identifier() string
	// FactoryDependencies lists the contracts this one can deploy.
	FactoryDependencies() []string
	Declare(version *semver.Version) error
	Define(module *codegen.Module) error
}

// EVMLA is a contract in solc legacy assembly.
type EVMLA struct {
	Path    string
	Deploy  []assembly.Instruction
	Runtime []assembly.Instruction
	Order   ethereal.Order

	graph *ethereal.Graph
}

// NewEVMLA takes the deploy code and the runtime code out of a decoded
// assembly object.
func NewEVMLA(path string, asm *assembly.Assembly) (*EVMLA, error) {
	runtime, err := asm.RuntimeCode()
	if err != nil {
		return nil, fmt.Errorf("contract `%s`: %w", path, err)
	}
	ir := &EVMLA{Path: path, Deploy: asm.Code}
	if runtime != nil {
		ir.Runtime = runtime.Code
	}
	return ir, nil
}

func (ir *EVMLA) Identifier() string { return ir.Path }

func (ir *EVMLA) FactoryDependencies() []string {
	return assembly.References(ir.Deploy, ir.Runtime)
}

// Declare builds the block graph. Graphs are shared through the cache, so
// they are only ever read afterwards.
func (ir *EVMLA) Declare(version *semver.Version) error {
	graph, err := ethereal.AssembleCached(version, ir.Deploy, ir.Runtime)
	if err != nil {
		return err
	}
	ir.graph = graph
	return nil
}

func (ir *EVMLA) Define(module *codegen.Module) error {
	if ir.graph == nil {
		return errors.New("block graph not declared")
	}
	return ir.graph.Emit(module, ir.Order)
}

// Graph returns the declared block graph, nil before Declare.
func (ir *EVMLA) Graph() *ethereal.Graph {
	return ir.graph
}

// LLVMIR is a module already lowered to LLVM IR text. It is carried into the
// runtime section as is.
type LLVMIR struct {
	Path   string
	Source string
}

func (ir *LLVMIR) Identifier() string                    { return ir.Path }
func (ir *LLVMIR) FactoryDependencies() []string         { return nil }
func (ir *LLVMIR) Declare(version *semver.Version) error { return nil }
func (ir *LLVMIR) Define(module *codegen.Module) error {
	return module.AppendSource(codegen.Runtime, ir.Source)
}

// TargetAssembly is hand-written target assembly, assembled without any
// front-end pass.
type TargetAssembly struct {
	Path   string
	Source string
}

func (ir *TargetAssembly) Identifier() string                    { return ir.Path }
func (ir *TargetAssembly) FactoryDependencies() []string         { return nil }
func (ir *TargetAssembly) Declare(version *semver.Version) error { return nil }
func (ir *TargetAssembly) Define(module *codegen.Module) error {
	return module.AppendSource(codegen.Runtime, ir.Source)
}

// Yul stands for the structured IR, recognised but not compiled.
type Yul struct {
	Path string
}

func (ir *Yul) Identifier() string            { return ir.Path }
func (ir *Yul) FactoryDependencies() []string { return nil }
func (ir *Yul) Declare(version *semver.Version) error {
	return fmt.Errorf("%w: Yul", ErrUnsupportedIR)
}
func (ir *Yul) Define(module *codegen.Module) error {
	return fmt.Errorf("%w: Yul", ErrUnsupportedIR)
}
