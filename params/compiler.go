package params

import "github.com/Masterminds/semver/v3"

const (
	StackLimit    = 1024 // Maximum size of the simulated operand stack
	MaxStackReach = 16   // Deepest slot reachable by DUPn/SWAPn

	DefaultGraphCacheSize = 1024 // Assembled graphs kept in the LRU cache
)

var (
	// CompilerVersion is the version of this backend, recorded in build metadata.
	CompilerVersion = semver.MustParse("1.3.2")

	// DefaultLanguageVersion is assumed when the caller does not provide one.
	DefaultLanguageVersion = semver.MustParse("0.8.24")

	// Push0Version is the first language version that emits PUSH0.
	Push0Version = semver.MustParse("0.8.20")
)
