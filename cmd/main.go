package main

import (
	"os"

	"github.com/incidentwire/incidentwire/cmd/incidentwire"
)

func main() {
	if err := incidentwire.Execute(); err != nil {
		os.Exit(1)
	}
}
