package project

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereal-ir/evmla/core/codegen"
	"github.com/ethereal-ir/evmla/core/evmla/ethereal"
	"github.com/ethereal-ir/evmla/params"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const factoryAssembly = `{
  ".code": [
    {"name": "PUSH", "value": "80"},
    {"name": "PUSH", "value": "40"},
    {"name": "MSTORE"},
    {"name": "PUSH [$]", "value": "0000000000000000000000000000000000000000000000000000000000000000"},
    {"name": "PUSH", "value": "0"},
    {"name": "RETURN"}
  ],
  ".data": {
    "0": {
      ".code": [
        {"name": "PUSH", "value": "1"},
        {"name": "PUSH [tag]", "value": "1"},
        {"name": "JUMPI"},
        {"name": "PUSH #[$]", "value": "1111111111111111111111111111111111111111111111111111111111111111"},
        {"name": "POP"},
        {"name": "tag", "value": "1"},
        {"name": "JUMPDEST"},
        {"name": "STOP"}
      ]
    }
  }
}`

func loadFactory(t *testing.T, path string) *Contract {
	t.Helper()
	c, err := LoadContract(path, []byte(factoryAssembly), params.DefaultLanguageVersion, ethereal.TopologicalOrder)
	require.NoError(t, err)
	return c
}

func TestContractDefaults(t *testing.T) {
	c := loadFactory(t, "Factory.sol:Factory.json")
	assert.Equal(t, "Factory.sol:Factory.json", c.Identifier())

	var meta sourceMetadata
	require.NoError(t, json.Unmarshal(c.MetadataJSON, &meta))
	assert.Equal(t, params.DefaultLanguageVersion.String(), meta.SourceVersion)
	assert.Equal(t, crypto.Keccak256Hash([]byte(factoryAssembly)).Hex()[2:], meta.SourceHash)

	assert.Equal(t, []string{
		"0000000000000000000000000000000000000000000000000000000000000000",
		"1111111111111111111111111111111111111111111111111111111111111111",
	}, c.FactoryDependencies())
}

func TestContractCompile(t *testing.T) {
	c := loadFactory(t, "Factory.json")
	optimizer := codegen.CyclesOptimizerSettings()

	build, err := c.Compile(params.DefaultLanguageVersion, optimizer, false)
	require.NoError(t, err)
	assert.Nil(t, build.Build.MetadataHash)
	assert.Contains(t, build.Build.Assembly, ".code runtime\nblock_runtime_0/0:\n")
	assert.Contains(t, build.Build.Assembly, "    JUMPI T_1, 0x1 -> block_runtime_1/0\n")
	assert.Contains(t, build.Build.Assembly, "    FALLTHROUGH -> block_runtime_1/0\n")
	assert.Len(t, build.FactoryDependencies, 2)

	var meta Metadata
	require.NoError(t, json.Unmarshal(build.MetadataJSON, &meta))
	assert.Equal(t, params.CompilerVersion.String(), meta.CompilerVersion)
	assert.Equal(t, optimizer, meta.OptimizerSettings)
	assert.JSONEq(t, string(c.MetadataJSON), string(meta.SourceMetadata))

	hashed, err := c.Compile(params.DefaultLanguageVersion, optimizer, true)
	require.NoError(t, err)
	require.NotNil(t, hashed.Build.MetadataHash)
	assert.Equal(t, crypto.Keccak256Hash(hashed.MetadataJSON), *hashed.Build.MetadataHash)
	assert.NotEqual(t, build.Build.Hash, hashed.Build.Hash)
}

func TestContractCompileErrors(t *testing.T) {
	v := params.DefaultLanguageVersion
	yul, err := LoadContract("A.yul", []byte("object \"A\" {}"), v, ethereal.DeclarationOrder)
	require.NoError(t, err)
	_, err = yul.Compile(v, codegen.OptimizerSettings{}, false)
	assert.ErrorIs(t, err, ErrUnsupportedIR)
	assert.ErrorContains(t, err, "`A.yul` declaration pass")

	dangling, err := LoadContract("B.json", []byte(`{".code": [{"name": "PUSH", "value": "1"}, {"name": "JUMP"}]}`), v, ethereal.DeclarationOrder)
	require.NoError(t, err)
	_, err = dangling.Compile(v, codegen.OptimizerSettings{}, false)
	assert.ErrorIs(t, err, ethereal.ErrDanglingPredecessor)

	unsupported, err := LoadContract("C.json", []byte(`{".code": [{"name": "PC"}, {"name": "STOP"}]}`), v, ethereal.DeclarationOrder)
	require.NoError(t, err)
	_, err = unsupported.Compile(v, codegen.OptimizerSettings{}, false)
	assert.ErrorContains(t, err, "`C.json` definition pass")

	_, err = LoadContract("D.sol", nil, v, ethereal.DeclarationOrder)
	assert.Error(t, err)
	_, err = LoadContract("E.json", []byte(`{".code": [{"name": "FROB"}]}`), v, ethereal.DeclarationOrder)
	assert.Error(t, err)
}

func TestProjectCompileAll(t *testing.T) {
	v := params.DefaultLanguageVersion
	llvm, err := LoadContract("C.ll", []byte("define void @main() { ret void }"), v, ethereal.DeclarationOrder)
	require.NoError(t, err)
	zasm, err := LoadContract("D.zasm", []byte("\tret\n"), v, ethereal.DeclarationOrder)
	require.NoError(t, err)

	p := New(v, loadFactory(t, "A.json"), loadFactory(t, "B.json"), llvm, zasm)
	assert.Equal(t, []string{"A.json", "B.json", "C.ll", "D.zasm"}, p.Paths())

	builds, err := p.CompileAll(codegen.OptimizerSettings{Level: codegen.LevelDefault}, true, 2)
	require.NoError(t, err)
	require.Len(t, builds, 4)
	assert.Contains(t, builds["C.ll"].Build.Assembly, ".code runtime\ndefine void @main() { ret void }\n")
	assert.Contains(t, builds["D.zasm"].Build.Assembly, "\tret\n")
	assert.Empty(t, builds["C.ll"].FactoryDependencies)
}

func TestProjectCompileAllCollectsFailures(t *testing.T) {
	v := params.DefaultLanguageVersion
	yul, err := LoadContract("Z.yul", nil, v, ethereal.DeclarationOrder)
	require.NoError(t, err)
	other, err := LoadContract("Y.yul", nil, v, ethereal.DeclarationOrder)
	require.NoError(t, err)

	p := New(v, loadFactory(t, "A.json"), yul, other)
	builds, err := p.CompileAll(codegen.OptimizerSettings{}, false, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedIR))
	assert.Len(t, builds, 1)
	assert.Regexp(t, "(?s)`Y.yul`.*`Z.yul`", err.Error())
}
