package assembly

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Name is the name of a legacy assembly instruction. It covers the EVM opcodes
// plus the pseudo-instructions emitted by solc (tags and symbolic pushes).
type Name uint8

// Pseudo-instructions.
const (
	Tag Name = iota
	PUSH
	PUSH_Tag
	PUSH_ContractHash
	PUSH_ContractHashSize
	PUSH_Data
	PUSHSIZE
	PUSHLIB
	PUSHDEPLOYADDRESS
	PUSHIMMUTABLE
	ASSIGNIMMUTABLE
)

// 0x0 range - arithmetic ops.
const (
	STOP Name = iota + ASSIGNIMMUTABLE + 1
	ADD
	MUL
	SUB
	DIV
	SDIV
	MOD
	SMOD
	ADDMOD
	MULMOD
	EXP
	SIGNEXTEND
)

// 0x10 range - comparison ops.
const (
	LT Name = iota + SIGNEXTEND + 1
	GT
	SLT
	SGT
	EQ
	ISZERO
	AND
	OR
	XOR
	NOT
	BYTE
	SHL
	SHR
	SAR
	KECCAK256
)

// 0x30 and 0x40 range - environment and block info.
const (
	ADDRESS Name = iota + KECCAK256 + 1
	BALANCE
	ORIGIN
	CALLER
	CALLVALUE
	CALLDATALOAD
	CALLDATASIZE
	CALLDATACOPY
	CODESIZE
	CODECOPY
	GASPRICE
	EXTCODESIZE
	EXTCODECOPY
	RETURNDATASIZE
	RETURNDATACOPY
	EXTCODEHASH
	BLOCKHASH
	COINBASE
	TIMESTAMP
	NUMBER
	PREVRANDAO
	GASLIMIT
	CHAINID
	SELFBALANCE
	BASEFEE
	BLOBHASH
	BLOBBASEFEE
)

// 0x50 range - 'storage' and execution.
const (
	POP Name = iota + BLOBBASEFEE + 1
	MLOAD
	MSTORE
	MSTORE8
	SLOAD
	SSTORE
	JUMP
	JUMPI
	PC
	MSIZE
	GAS
	JUMPDEST
	TLOAD
	TSTORE
	MCOPY
	PUSH0
)

// 0x80 and 0x90 range - dups and swaps.
const (
	DUP1 Name = iota + PUSH0 + 1
	DUP2
	DUP3
	DUP4
	DUP5
	DUP6
	DUP7
	DUP8
	DUP9
	DUP10
	DUP11
	DUP12
	DUP13
	DUP14
	DUP15
	DUP16
	SWAP1
	SWAP2
	SWAP3
	SWAP4
	SWAP5
	SWAP6
	SWAP7
	SWAP8
	SWAP9
	SWAP10
	SWAP11
	SWAP12
	SWAP13
	SWAP14
	SWAP15
	SWAP16
)

// 0xa0 and 0xf0 range - logging, closures and exits.
const (
	LOG0 Name = iota + SWAP16 + 1
	LOG1
	LOG2
	LOG3
	LOG4
	CREATE
	CALL
	CALLCODE
	RETURN
	DELEGATECALL
	CREATE2
	STATICCALL
	REVERT
	INVALID
	SELFDESTRUCT

	numNames
)

type nameInfo struct {
	text   string
	pops   int
	pushes int
}

var nameTable = [numNames]nameInfo{
	Tag:                   {"tag", 0, 0},
	PUSH:                  {"PUSH", 0, 1},
	PUSH_Tag:              {"PUSH [tag]", 0, 1},
	PUSH_ContractHash:     {"PUSH [$]", 0, 1},
	PUSH_ContractHashSize: {"PUSH #[$]", 0, 1},
	PUSH_Data:             {"PUSH data", 0, 1},
	PUSHSIZE:              {"PUSHSIZE", 0, 1},
	PUSHLIB:               {"PUSHLIB", 0, 1},
	PUSHDEPLOYADDRESS:     {"PUSHDEPLOYADDRESS", 0, 1},
	PUSHIMMUTABLE:         {"PUSHIMMUTABLE", 0, 1},
	ASSIGNIMMUTABLE:       {"ASSIGNIMMUTABLE", 2, 0},

	STOP:       {"STOP", 0, 0},
	ADD:        {"ADD", 2, 1},
	MUL:        {"MUL", 2, 1},
	SUB:        {"SUB", 2, 1},
	DIV:        {"DIV", 2, 1},
	SDIV:       {"SDIV", 2, 1},
	MOD:        {"MOD", 2, 1},
	SMOD:       {"SMOD", 2, 1},
	ADDMOD:     {"ADDMOD", 3, 1},
	MULMOD:     {"MULMOD", 3, 1},
	EXP:        {"EXP", 2, 1},
	SIGNEXTEND: {"SIGNEXTEND", 2, 1},

	LT:        {"LT", 2, 1},
	GT:        {"GT", 2, 1},
	SLT:       {"SLT", 2, 1},
	SGT:       {"SGT", 2, 1},
	EQ:        {"EQ", 2, 1},
	ISZERO:    {"ISZERO", 1, 1},
	AND:       {"AND", 2, 1},
	OR:        {"OR", 2, 1},
	XOR:       {"XOR", 2, 1},
	NOT:       {"NOT", 1, 1},
	BYTE:      {"BYTE", 2, 1},
	SHL:       {"SHL", 2, 1},
	SHR:       {"SHR", 2, 1},
	SAR:       {"SAR", 2, 1},
	KECCAK256: {"KECCAK256", 2, 1},

	ADDRESS:        {"ADDRESS", 0, 1},
	BALANCE:        {"BALANCE", 1, 1},
	ORIGIN:         {"ORIGIN", 0, 1},
	CALLER:         {"CALLER", 0, 1},
	CALLVALUE:      {"CALLVALUE", 0, 1},
	CALLDATALOAD:   {"CALLDATALOAD", 1, 1},
	CALLDATASIZE:   {"CALLDATASIZE", 0, 1},
	CALLDATACOPY:   {"CALLDATACOPY", 3, 0},
	CODESIZE:       {"CODESIZE", 0, 1},
	CODECOPY:       {"CODECOPY", 3, 0},
	GASPRICE:       {"GASPRICE", 0, 1},
	EXTCODESIZE:    {"EXTCODESIZE", 1, 1},
	EXTCODECOPY:    {"EXTCODECOPY", 4, 0},
	RETURNDATASIZE: {"RETURNDATASIZE", 0, 1},
	RETURNDATACOPY: {"RETURNDATACOPY", 3, 0},
	EXTCODEHASH:    {"EXTCODEHASH", 1, 1},
	BLOCKHASH:      {"BLOCKHASH", 1, 1},
	COINBASE:       {"COINBASE", 0, 1},
	TIMESTAMP:      {"TIMESTAMP", 0, 1},
	NUMBER:         {"NUMBER", 0, 1},
	PREVRANDAO:     {"PREVRANDAO", 0, 1},
	GASLIMIT:       {"GASLIMIT", 0, 1},
	CHAINID:        {"CHAINID", 0, 1},
	SELFBALANCE:    {"SELFBALANCE", 0, 1},
	BASEFEE:        {"BASEFEE", 0, 1},
	BLOBHASH:       {"BLOBHASH", 1, 1},
	BLOBBASEFEE:    {"BLOBBASEFEE", 0, 1},

	POP:      {"POP", 1, 0},
	MLOAD:    {"MLOAD", 1, 1},
	MSTORE:   {"MSTORE", 2, 0},
	MSTORE8:  {"MSTORE8", 2, 0},
	SLOAD:    {"SLOAD", 1, 1},
	SSTORE:   {"SSTORE", 2, 0},
	JUMP:     {"JUMP", 1, 0},
	JUMPI:    {"JUMPI", 2, 0},
	PC:       {"PC", 0, 1},
	MSIZE:    {"MSIZE", 0, 1},
	GAS:      {"GAS", 0, 1},
	JUMPDEST: {"JUMPDEST", 0, 0},
	TLOAD:    {"TLOAD", 1, 1},
	TSTORE:   {"TSTORE", 2, 0},
	MCOPY:    {"MCOPY", 3, 0},
	PUSH0:    {"PUSH0", 0, 1},

	LOG0: {"LOG0", 2, 0},
	LOG1: {"LOG1", 3, 0},
	LOG2: {"LOG2", 4, 0},
	LOG3: {"LOG3", 5, 0},
	LOG4: {"LOG4", 6, 0},

	CREATE:       {"CREATE", 3, 1},
	CALL:         {"CALL", 7, 1},
	CALLCODE:     {"CALLCODE", 7, 1},
	RETURN:       {"RETURN", 2, 0},
	DELEGATECALL: {"DELEGATECALL", 6, 1},
	CREATE2:      {"CREATE2", 4, 1},
	STATICCALL:   {"STATICCALL", 6, 1},
	REVERT:       {"REVERT", 2, 0},
	INVALID:      {"INVALID", 0, 0},
	SELFDESTRUCT: {"SELFDESTRUCT", 1, 0},
}

// Older solc releases spell a few opcodes differently.
var nameAliases = map[string]Name{
	"Tag":        Tag,
	"SHA3":       KECCAK256,
	"DIFFICULTY": PREVRANDAO,
	"SUICIDE":    SELFDESTRUCT,
}

var nameLookup map[string]Name

func init() {
	nameLookup = make(map[string]Name, len(nameTable)+len(nameAliases))
	for i, info := range nameTable {
		if info.text != "" {
			nameLookup[info.text] = Name(i)
		}
	}
	for text, name := range nameAliases {
		nameLookup[text] = name
	}
	// DUPn/SWAPn are generated, fill their names and effects here.
	for n := 1; n <= 16; n++ {
		dup, swap := DUP1+Name(n-1), SWAP1+Name(n-1)
		nameTable[dup] = nameInfo{fmt.Sprintf("DUP%d", n), n, n + 1}
		nameTable[swap] = nameInfo{fmt.Sprintf("SWAP%d", n), n + 1, n + 1}
		nameLookup[nameTable[dup].text] = dup
		nameLookup[nameTable[swap].text] = swap
	}
}

// ParseName resolves the textual instruction name used by solc.
func ParseName(text string) (Name, error) {
	if name, ok := nameLookup[text]; ok {
		return name, nil
	}
	return 0, fmt.Errorf("unknown instruction %q", text)
}

func (n Name) String() string {
	if n >= numNames {
		return fmt.Sprintf("Name(%d)", uint8(n))
	}
	return nameTable[n].text
}

// StackEffect returns how many slots the instruction pops and pushes.
func (n Name) StackEffect() (pops, pushes int) {
	if n >= numNames {
		return 0, 0
	}
	return nameTable[n].pops, nameTable[n].pushes
}

// IsTerminator reports whether the instruction unconditionally ends control
// flow, sealing the block right after it.
func (n Name) IsTerminator() bool {
	switch n {
	case RETURN, REVERT, STOP, INVALID, JUMP:
		return true
	}
	return false
}

// Dup returns n for DUPn.
func (n Name) Dup() (int, bool) {
	if n >= DUP1 && n <= DUP16 {
		return int(n-DUP1) + 1, true
	}
	return 0, false
}

// Swap returns n for SWAPn.
func (n Name) Swap() (int, bool) {
	if n >= SWAP1 && n <= SWAP16 {
		return int(n-SWAP1) + 1, true
	}
	return 0, false
}

// HasOperand reports whether solc always attaches a value to the instruction.
func (n Name) HasOperand() bool {
	switch n {
	case Tag, PUSH, PUSH_Tag, PUSH_ContractHash, PUSH_ContractHashSize, PUSH_Data,
		PUSHLIB, PUSHIMMUTABLE, ASSIGNIMMUTABLE:
		return true
	}
	return false
}

func (n Name) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

func (n *Name) UnmarshalJSON(input []byte) error {
	var text string
	if err := json.Unmarshal(input, &text); err != nil {
		return err
	}
	name, err := ParseName(strings.TrimSpace(text))
	if err != nil {
		return err
	}
	*n = name
	return nil
}
