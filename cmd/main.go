package main

import (
	"os"

	"github.com/safebite/labelscan/internal/cli"
	"github.com/safebite/labelscan/pkg/log"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}
