// Package main provides the geoharvest command line interface: search the
// satellite imagery catalogues, curate the results as GeoJSON and download the
// products.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/geoharvest/geoharvest/service/log"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "geoharvest",
	Short: "Search and download satellite imagery",
	Long: `Geoharvest searches the Copernicus, Alaska Satellite Facility and NASA
Earthdata catalogues for Sentinel-1/2/3 products over an area of interest,
selects the best acquisitions and downloads them from the most suitable
service.

Credentials are resolved from the environment, a dotenv file and the system
keyring, in that order (see "geoharvest credentials").`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with the providers credentials")
	rootCmd.AddCommand(newBatchCmd(), newBatchIntervalCmd(), newImportCmd(), newCredentialsCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Logger(ctx).Sugar().Errorf("%v", err)
		os.Exit(1)
	}
}

// confirm asks the user to proceed, unless the confirmation is disabled
func confirm(noConfirmation bool, prompt string) bool {
	if noConfirmation {
		return true
	}
	fmt.Printf("%s [y/N] ", prompt)
	var answer string
	fmt.Scanln(&answer)
	return answer == "y" || answer == "Y" || answer == "yes"
}
