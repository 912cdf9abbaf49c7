// Command uxios sends a single request through a uxios client and prints the
// response body.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "uxios:", err)
		os.Exit(1)
	}
}
