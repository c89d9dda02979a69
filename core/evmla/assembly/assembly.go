package assembly

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// RuntimeDataKey is the `.data` entry holding the runtime code of a contract.
const RuntimeDataKey = "0"

// Assembly is the legacy assembly of one contract as printed by
// `solc --asm-json` or the `evm.legacyAssembly` standard JSON output. The
// top-level code is the deploy code, the runtime code is nested in `.data`.
type Assembly struct {
	Code []Instruction             `json:".code"`
	Data map[string]json.RawMessage `json:".data,omitempty"`
}

// Decode reads an assembly from JSON.
func Decode(r io.Reader) (*Assembly, error) {
	var asm Assembly
	if err := json.NewDecoder(r).Decode(&asm); err != nil {
		return nil, fmt.Errorf("decode legacy assembly: %w", err)
	}
	return &asm, nil
}

// Parse decodes an assembly from a JSON blob.
func Parse(data []byte) (*Assembly, error) {
	return Decode(bytes.NewReader(data))
}

// RuntimeCode returns the nested runtime assembly, or nil if the contract has
// none (e.g. a library or a bare runtime object).
func (a *Assembly) RuntimeCode() (*Assembly, error) {
	raw, ok := a.Data[RuntimeDataKey]
	if !ok {
		return nil, nil
	}
	// Entries may also be raw hex data, e.g. the CBOR metadata.
	if len(raw) > 0 && raw[0] == '"' {
		return nil, fmt.Errorf("runtime data entry %q is not an assembly", RuntimeDataKey)
	}
	return Parse(raw)
}

// References returns the sorted set of contract identifiers referenced by
// PUSH [$] and PUSH #[$] in the given streams.
func References(streams ...[]Instruction) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, stream := range streams {
		for _, instr := range stream {
			switch instr.Name {
			case PUSH_ContractHash, PUSH_ContractHashSize:
				seen.Add(instr.Value)
			}
		}
	}
	refs := seen.ToSlice()
	sort.Strings(refs)
	return refs
}
