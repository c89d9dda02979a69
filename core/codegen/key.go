package codegen

import (
	"fmt"

	"github.com/holiman/uint256"
)

// CodeType is the code region a block belongs to.
type CodeType uint8

const (
	Deploy CodeType = iota
	Runtime
)

func (c CodeType) String() string {
	switch c {
	case Deploy:
		return "deploy"
	case Runtime:
		return "runtime"
	}
	return fmt.Sprintf("CodeType(%d)", uint8(c))
}

// BlockKey identifies a block inside a function: the code region and the tag
// opening the block. Tag 0 is the untagged entry block of a region.
type BlockKey struct {
	CodeType CodeType
	Tag      uint256.Int
}

// NewBlockKey creates a key for the given region and tag.
func NewBlockKey(codeType CodeType, tag *uint256.Int) BlockKey {
	return BlockKey{CodeType: codeType, Tag: *tag}
}

// Compare orders keys by region first, then by tag.
func (k BlockKey) Compare(other BlockKey) int {
	if k.CodeType != other.CodeType {
		if k.CodeType < other.CodeType {
			return -1
		}
		return 1
	}
	return k.Tag.Cmp(&other.Tag)
}

func (k BlockKey) String() string {
	return fmt.Sprintf("%s_%s", k.CodeType, k.Tag.Dec())
}

// BlockRef points at one specialised instance of a block.
type BlockRef struct {
	Key      BlockKey
	Instance int
}

func (r BlockRef) Compare(other BlockRef) int {
	if c := r.Key.Compare(other.Key); c != 0 {
		return c
	}
	switch {
	case r.Instance < other.Instance:
		return -1
	case r.Instance > other.Instance:
		return 1
	}
	return 0
}

func (r BlockRef) String() string {
	return fmt.Sprintf("%s/%d", r.Key, r.Instance)
}
