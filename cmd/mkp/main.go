package main

import (
	"fmt"
	"os"

	"github.com/Checkmk/checkmk-sub074/internal/app"
)

func main() {
	if err := app.Execute(); err != nil {
		if app.Debug() {
			fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
