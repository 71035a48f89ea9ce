package vm

import "github.com/wudi/stick/opcodes"

// Tracer observes every fetched instruction before it executes. The run
// loop does not consult tracer errors; a sink that loses rows must cope
// on its own. Close flushes whatever the sink buffered.
type Tracer interface {
	Trace(seq uint64, ip uint32, ins opcodes.Instruction, frameDepth int)
	Close() error
}
