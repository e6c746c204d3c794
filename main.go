package main

import (
	"os"

	"github.com/prawko/prawko/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
