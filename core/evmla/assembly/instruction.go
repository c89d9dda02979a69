package assembly

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Instruction is one entry of a legacy assembly instruction stream. The value
// is kept textual: hexadecimal for PUSH, decimal for tags, identifiers for the
// symbolic pushes.
type Instruction struct {
	Name  Name   `json:"name"`
	Value string `json:"value,omitempty"`
}

// New creates an instruction without an operand.
func New(name Name) Instruction {
	return Instruction{Name: name}
}

// NewWithValue creates an instruction carrying an operand.
func NewWithValue(name Name, value string) Instruction {
	return Instruction{Name: name, Value: value}
}

func (i Instruction) String() string {
	if i.Value == "" {
		return i.Name.String()
	}
	return i.Name.String() + " " + i.Value
}

// Digest returns the Keccak-256 of a language version and a list of
// instruction streams. Equal inputs always produce equal digests.
func Digest(version string, streams ...[]Instruction) common.Hash {
	var (
		hasher = crypto.NewKeccakState()
		length [8]byte
		hash   common.Hash
	)
	hasher.Write([]byte(version))
	for _, stream := range streams {
		binary.BigEndian.PutUint64(length[:], uint64(len(stream)))
		hasher.Write(length[:])
		for _, instr := range stream {
			hasher.Write([]byte{byte(instr.Name)})
			hasher.Write([]byte(instr.Value))
			hasher.Write([]byte{0})
		}
	}
	hasher.Read(hash[:])
	return hash
}
