package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "evalengine",
	Short: "A schema-driven evaluation engine for derived fields, conditions, rules and layouts.",
	Long: `evalengine compiles a JSON-Schema-shaped document's $evaluation,
condition, rules, dependents and $layout declarations and runs them against
a data document, producing derived values, visibility state, validation
diagnostics and resolved layouts.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(); it only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:errcheck
func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	rootCmd.PersistentFlags().Int("tz-offset", 0, "timezone offset in minutes applied to date/time operators")
	rootCmd.PersistentFlags().Bool("no-cache", false, "disable the per-evaluation result cache")
	rootCmd.PersistentFlags().Bool("safe-nan", false, "coerce non-finite arithmetic results to 0 instead of null")
}
