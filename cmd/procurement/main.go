package main

import (
	"os"

	"github.com/furfield/procurement/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
