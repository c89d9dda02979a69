package project

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereal-ir/evmla/core/evmla/assembly"
	"github.com/ethereal-ir/evmla/core/evmla/ethereal"
	"github.com/ethereum/go-ethereum/crypto"
)

// LoadContract builds a contract from a source file, picking the IR by the
// file extension:
//
//	.json  solc legacy assembly (`solc --asm-json`)
//	.ll    LLVM IR
//	.zasm  target assembly
//	.yul   structured IR
func LoadContract(path string, data []byte, version *semver.Version, order ethereal.Order) (*Contract, error) {
	var ir IR
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		asm, err := assembly.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("contract `%s`: %w", path, err)
		}
		evmla, err := NewEVMLA(path, asm)
		if err != nil {
			return nil, err
		}
		evmla.Order = order
		ir = evmla
	case ".ll":
		ir = &LLVMIR{Path: path, Source: string(data)}
	case ".zasm":
		ir = &TargetAssembly{Path: path, Source: string(data)}
	case ".yul":
		ir = &Yul{Path: path}
	default:
		return nil, fmt.Errorf("contract `%s`: unknown source kind %q", path, ext)
	}
	return NewContract(path, crypto.Keccak256Hash(data), version, ir, nil), nil
}
