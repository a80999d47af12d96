// Command pushctl exchanges service-account credentials and sends test
// notifications from a terminal.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
