package main

import (
	"fmt"
	"os"

	"github.com/MrSnakeDoc/stash/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ stash: %v\n", err)
		os.Exit(1)
	}
}
