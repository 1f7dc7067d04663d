// Package main provides clusterctl, a command line client for the cluster API.
package main

import (
	"fmt"
	"os"

	"github.com/yaroslav/clusterplane/cmd/clusterctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
