package main

import (
	"os"

	"github.com/cyberedu/rangectl/cmd/rangectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
