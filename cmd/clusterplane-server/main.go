// Package main provides the clusterplane API server.
//
// This is the main entrypoint for the clusterplane-server binary which runs
// the container cluster HTTP API and relays accepted commands to the
// orchestration backend.
package main

import (
	"fmt"
	"os"

	"github.com/yaroslav/clusterplane/cmd/clusterplane-server/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
