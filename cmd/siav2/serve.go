package main

import (
	"fmt"
	"os"

	apihttp "github.com/lsst-sqre/vo-siav2/adapters/http"
	"github.com/lsst-sqre/vo-siav2/bootstrap"
	"github.com/lsst-sqre/vo-siav2/config"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SIA v2 HTTP service",
	Long: `Start the SIA v2 query service.

The server will:
  - Load configuration from siav2.yaml (or --config)
  - Or load configuration from SIA_* environment variables
  - Build the data collection registry and bind remote repositories
  - Serve /{prefix}/{collection}/query, availability and capabilities

Environment variables (for container deployments):
  SIA_DATA_COLLECTIONS   - Collections as a JSON or YAML list (required)
  SIA_BACKEND            - Default backend: direct or remote
  SIA_PATH_PREFIX        - URL prefix (default: /api/sia)
  SIA_SERVER_PORT        - Server port (default: 8080)
  SIA_LOG_LEVEL          - Log level: debug, info, warn, error

Examples:
  siav2 serve
  siav2 serve --config /etc/sia/config.yaml

  # Container (env vars only):
  SIA_DATA_COLLECTIONS='[{"name":"dp02","config":"/etc/sia/dp02.yaml","default":true}]' siav2 serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	if !hasConfigFile && !config.HasEnvConfig() {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s with a collections list\n", cfgFile)
		fmt.Println("Option 2: Set the SIA_DATA_COLLECTIONS environment variable")
		return fmt.Errorf("no configuration")
	}
	if !hasConfigFile {
		fmt.Println("Running with environment variables (no config file)")
	}

	app, err := bootstrap.NewFromFile(cfgFile, bootstrap.Options{
		Info: apihttp.AppInfo{
			Version:          version,
			Description:      "IVOA SIA v2 query service",
			RepositoryURL:    "https://github.com/lsst-sqre/vo-siav2",
			DocumentationURL: "https://www.ivoa.net/documents/SIA/",
		},
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
