package main

import (
	"os"

	"github.com/tailorjob/backend/app/tailorjobctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
