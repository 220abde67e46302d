package actor

import (
	"github.com/btcsuite/btclog/v2"
)

// Subsystem is the logging subsystem tag used when this package's logger is
// registered with a fanned-out handler set.
const Subsystem = "ACTR"

// log is the package-wide subsystem logger. It defaults to a disabled sink
// so that importing this package never produces output unless the host
// application wires up a real logger via UseLogger.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by the actor package. Host
// applications call this once at startup, typically with a logger obtained
// from a shared btclog.Handler so that actor lifecycle events interleave
// with the rest of the application's structured logs.
func UseLogger(logger btclog.Logger) {
	log = logger
}
