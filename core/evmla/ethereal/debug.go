package ethereal

import (
	"os"

	"github.com/ethereum/go-ethereum/log"
)

// Verbose tracing of the assembly pass is off unless switched on here or
// through EVMLA_DEBUG, it is far too chatty for normal builds.
var debugLogsEnabled = false

func init() {
	if v := os.Getenv("EVMLA_DEBUG"); v == "1" || v == "true" {
		debugLogsEnabled = true
	}
}

// EnableDebugLogs toggles the assembly pass traces.
func EnableDebugLogs(on bool) { debugLogsEnabled = on }

func debugTrace(msg string, ctx ...interface{}) {
	if debugLogsEnabled {
		log.Debug(msg, ctx...)
	}
}
