// Command swing-trader runs the Heiken Ashi swing trading pipeline.
package main

import (
	"context"
	"fmt"
	"os"

	"swing-trader/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
