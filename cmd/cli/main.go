package main

import (
	"os"

	"github.com/schedadmin/schedadmin/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
