package main

import (
	"fmt"
	"os"

	"confy/cmd/confy/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "confy:", err)
		os.Exit(1)
	}
}
