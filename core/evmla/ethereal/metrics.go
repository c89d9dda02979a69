package ethereal

import "github.com/ethereum/go-ethereum/metrics"

var (
	blocksCounter    = metrics.NewRegisteredCounter("evmla/blocks", nil)
	instancesCounter = metrics.NewRegisteredCounter("evmla/instances", nil)
	foldedCounter    = metrics.NewRegisteredCounter("evmla/folded", nil)
	cacheHitCounter  = metrics.NewRegisteredCounter("evmla/cache/hit", nil)
	cacheMissCounter = metrics.NewRegisteredCounter("evmla/cache/miss", nil)

	assembleTimer = metrics.NewRegisteredTimer("evmla/assemble", nil)
)
