package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/safebite/labelscan/pkg/log"
)

var verbose bool

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "labelscan",
	Short: "Labelscan - allergen detection for food label photos",
	Long: `Labelscan extracts ingredient lists from food label photos with OCR
and matches them against an allergen catalog, flagging the allergens a
user has declared in their profile.

Run "labelscan serve" to start the web service, or "labelscan scan" to
analyze a single image from the command line.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := log.ParseLevel(os.Getenv("LOG_LEVEL"))
		if verbose {
			level = log.LevelDebug
		}
		log.InitLogger(level)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("labelscan v0.1.0")
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}
