package main

import (
	"fmt"
	"os"

	"github.com/hive-corporation/phishwatch/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.NewTrainer(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
