package main

import (
	"os"

	"github.com/phl-lab/autoanalysis/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
