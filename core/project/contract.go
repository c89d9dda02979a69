// Package project compiles contracts from their IR into target modules, one
// contract at a time or a whole project in parallel.
package project

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereal-ir/evmla/core/codegen"
	"github.com/ethereal-ir/evmla/params"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Contract is one compilation unit.
type Contract struct {
	Path         string
	IR           IR
	MetadataJSON json.RawMessage
}

type sourceMetadata struct {
	SourceHash    string `json:"source_hash"`
	SourceVersion string `json:"source_version"`
}

// Metadata is embedded in every build. Its Keccak-256 hash is appended to
// the bytecode when requested.
type Metadata struct {
	SourceMetadata    json.RawMessage           `json:"source_metadata"`
	CompilerVersion   string                    `json:"compiler_version"`
	OptimizerSettings codegen.OptimizerSettings `json:"optimizer_settings"`
}

// Build is the result of compiling a contract.
type Build struct {
	Path                string
	Identifier          string
	Build               *codegen.Build
	MetadataJSON        json.RawMessage
	FactoryDependencies []string
}

// NewContract creates a contract. Without metadata JSON the source hash and
// the source language version are used instead.
func NewContract(path string, sourceHash common.Hash, sourceVersion *semver.Version, ir IR, metadataJSON json.RawMessage) *Contract {
	if metadataJSON == nil {
		metadataJSON, _ = json.Marshal(sourceMetadata{
			SourceHash:    common.Bytes2Hex(sourceHash[:]),
			SourceVersion: sourceVersion.String(),
		})
	}
	return &Contract{Path: path, IR: ir, MetadataJSON: metadataJSON}
}

// Identifier returns the identifier of the contract IR.
func (c *Contract) Identifier() string {
	return c.IR.Identifier()
}

// FactoryDependencies returns the contracts this one deploys, sorted.
func (c *Contract) FactoryDependencies() []string {
	return c.IR.FactoryDependencies()
}

// Compile lowers the contract with the given language version and optimizer
// settings.
func (c *Contract) Compile(version *semver.Version, optimizer codegen.OptimizerSettings, includeMetadataHash bool) (*Build, error) {
	metadataJSON, err := json.Marshal(Metadata{
		SourceMetadata:    c.MetadataJSON,
		CompilerVersion:   params.CompilerVersion.String(),
		OptimizerSettings: optimizer,
	})
	if err != nil {
		return nil, fmt.Errorf("contract `%s` metadata: %w", c.Path, err)
	}
	var metadataHash *common.Hash
	if includeMetadataHash {
		hash := crypto.Keccak256Hash(metadataJSON)
		metadataHash = &hash
	}

	module := codegen.NewModule(c.Path, optimizer)
	if err := c.IR.Declare(version); err != nil {
		return nil, fmt.Errorf("the contract `%s` declaration pass error: %w", c.Path, err)
	}
	if err := c.IR.Define(module); err != nil {
		return nil, fmt.Errorf("the contract `%s` definition pass error: %w", c.Path, err)
	}
	build, err := module.Build(metadataHash)
	if err != nil {
		return nil, fmt.Errorf("the contract `%s` build error: %w", c.Path, err)
	}
	return &Build{
		Path:                c.Path,
		Identifier:          c.Identifier(),
		Build:               build,
		MetadataJSON:        metadataJSON,
		FactoryDependencies: c.FactoryDependencies(),
	}, nil
}
