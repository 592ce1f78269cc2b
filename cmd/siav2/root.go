package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "siav2",
	Short: "IVOA SIA v2 query service",
	Long: `siav2 serves IVOA Simple Image Access v2 queries over configured
data collections, backed by direct (local) or remote repositories.

Quick start:
  siav2 repo init ./dp02.sqlite3   # Provision an empty direct repository
  siav2 validate                   # Check the configuration
  siav2 serve                      # Start the HTTP service

Inspection:
  siav2 collections                # List configured data collections`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "siav2.yaml", "config file path")
}
