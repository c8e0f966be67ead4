// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"log"
	"os"
)

func main() {
	cmd := NewRootCommand()

	err := cmd.Execute()
	if err != nil {
		log.Printf("%v: %v", os.Args[0], err)
		os.Exit(ExitCode(err))
	}
}
