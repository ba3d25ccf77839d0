// Copyright Contributors to the Cray-HPE IMS project

// ims-server is the unified binary for the Image Management Service,
// exposing the v2/v3 HTTP API described in the service's external
// interface contract.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ims-server",
	Short: "IMS - Image Management Service",
	Long: `ims-server builds, tracks, and serves boot images for HPC compute nodes.

Examples:
  # Start the HTTP API server
  ims-server serve --address=:8080`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
