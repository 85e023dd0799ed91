// Command dispatchd wires the dispatch core's components together and
// runs the shared-subscription leader supervisor against an in-memory
// log, for demonstration and manual testing. A real broker binary would
// replace MemoryLogReader with badgerlog.Store (or another LogReader)
// and feed the egress sinks to real listeners.
package main

import (
	"fmt"
	"os"

	"github.com/mqttcore/dispatch/cmd/dispatchd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
