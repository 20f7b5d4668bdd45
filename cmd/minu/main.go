package main

import (
	"os"

	"github.com/jrsteele09/minu-sso/cmd/minu/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
