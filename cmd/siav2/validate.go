package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lsst-sqre/vo-siav2/adapters/exportconfig"
	"github.com/lsst-sqre/vo-siav2/app"
	"github.com/lsst-sqre/vo-siav2/config"
	"github.com/lsst-sqre/vo-siav2/domain/collection"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the siav2 configuration file.

Checks:
  - YAML syntax is valid
  - Required fields are present and names and labels are unique
  - A default collection is configured
  - Export configs can be loaded (optional)
  - Repositories are available (optional)

Examples:
  siav2 validate
  siav2 validate --check-configs --check-repositories`,
	RunE: runValidate,
}

var (
	validateCheckConfigs      bool
	validateCheckRepositories bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckConfigs, "check-configs", false, "load every collection's export config")
	validateCmd.Flags().BoolVar(&validateCheckRepositories, "check-repositories", false, "probe every collection's repository")
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)

	collections, err := cfg.DataCollections()
	if err != nil {
		return err
	}
	reg, err := collection.NewRegistry(collections)
	if err != nil {
		fmt.Printf("  %s Collections valid\n", crossMark)
		return err
	}
	fmt.Printf("  %s Collections configured: %d\n", checkMark, len(collections))

	def, err := reg.Default()
	if err != nil {
		fmt.Printf("  %s Default collection\n", crossMark)
		return err
	}
	fmt.Printf("  %s Default collection: %s\n", checkMark, def.Name)
	if n := reg.DefaultCount(); n > 1 {
		fmt.Printf("  %s %d collections are marked default; %s wins\n", warnMark, n, def.Name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if validateCheckConfigs {
		if err := checkExportConfigs(ctx, cfg, collections); err != nil {
			return err
		}
	}

	if validateCheckRepositories {
		checker := app.NewAvailabilityChecker(app.AvailabilityConfig{Timeout: cfg.Availability.Timeout}, nil, zerolog.Nop())
		for _, c := range collections {
			avail := checker.Check(ctx, c, c.Backend)
			if avail.Available {
				fmt.Printf("  %s Repository %s available\n", checkMark, c.Name)
				continue
			}
			fmt.Printf("  %s Repository %s unavailable\n", crossMark, c.Name)
			for _, note := range avail.Notes {
				fmt.Printf("      %s\n", note)
			}
		}
	}

	fmt.Println()
	fmt.Println("Configuration is valid.")
	return nil
}

func checkExportConfigs(ctx context.Context, cfg *config.Config, collections []collection.DataCollection) error {
	opts := exportconfig.Options{HTTPTimeout: cfg.Remote.Timeout}
	if s3 := cfg.Storage.S3; s3.Endpoint != "" {
		client, err := exportconfig.NewS3Client(exportconfig.S3Config{
			Endpoint:  s3.Endpoint,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Region:    s3.Region,
			UseSSL:    s3.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("s3 client: %w", err)
		}
		opts.Objects = client
	}
	store, err := exportconfig.NewStore(opts, zerolog.Nop())
	if err != nil {
		return err
	}
	defer store.Close()

	var failed int
	for _, c := range collections {
		if _, err := store.Load(ctx, c.Config); err != nil {
			fmt.Printf("  %s Export config %s\n", crossMark, c.Config)
			fmt.Printf("      Error: %v\n", err)
			failed++
			continue
		}
		fmt.Printf("  %s Export config %s\n", checkMark, c.Config)
	}
	if failed > 0 {
		return fmt.Errorf("%d export config(s) failed to load", failed)
	}
	return nil
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
	warnMark  = "\033[33m!\033[0m"
)
