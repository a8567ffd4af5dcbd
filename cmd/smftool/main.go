package main

import (
	"fmt"
	"os"

	"github.com/zurustar/midikit/pkg/app"
)

func main() {
	application := app.New(os.Stdout, os.Stdin)
	if err := application.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
