// Command depio runs a dependency-aware task pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/noppelmax/depio-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
