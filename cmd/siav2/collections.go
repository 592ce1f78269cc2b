package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/lsst-sqre/vo-siav2/config"
	"github.com/lsst-sqre/vo-siav2/domain/collection"
	"github.com/spf13/cobra"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List configured data collections",
	Long: `List the data collections the service would register, in
configuration order, with their resolved backend kind.

Examples:
  siav2 collections
  siav2 collections --config /etc/sia/config.yaml`,
	RunE: runCollections,
}

func init() {
	rootCmd.AddCommand(collectionsCmd)
}

func runCollections(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	collections, err := cfg.DataCollections()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tLABEL\tBACKEND\tDEFAULT\tREPOSITORY\tCONFIG")
	for _, c := range collections {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Name, dash(c.Label), c.Backend, defaultMark(c), dash(c.Repository), c.Config)
	}
	return w.Flush()
}

func defaultMark(c collection.DataCollection) string {
	if c.Default {
		return "yes"
	}
	return "-"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
