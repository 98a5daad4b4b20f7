// Command insertbench recreates a Person/Kid schema on the configured database and times
// batched inserts against one-call-per-person inserts.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
