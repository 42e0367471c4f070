package main

import (
	"fmt"
	"os"

	"autonet/pkg/errdefs"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "autonet:", err)
		os.Exit(errdefs.ExitCode(err))
	}
}
