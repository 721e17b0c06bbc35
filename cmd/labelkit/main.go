package main

import (
	"os"

	"github.com/MeKo-Tech/labelkit/cmd/labelkit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
