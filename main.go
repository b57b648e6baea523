package main

import (
	"os"

	"github.com/linkyapp/linky/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
