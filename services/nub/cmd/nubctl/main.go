// services/nub/cmd/nubctl/main.go

// nubctl decodes and builds I²C resource templates and simulates peripheral
// bring-up from a platform description file.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
