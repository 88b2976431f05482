package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] schema_file",
	Short: "parse a schema and report what the parser discovered.",
	Long: `Parse a given schema file and report a summary of every $evaluation,
condition, rule, dependents declaration, $layout reference, table and
subform the parser discovered, without evaluating it against any data.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := newEngineFromFile(cmd, args[0])
		if err != nil {
			fail(err)
		}
		printJSON(map[string]any{
			"evaluations":        len(e.Parsed.Evaluations),
			"conditions":         len(e.Parsed.Conditions),
			"rules":              len(e.Parsed.Rules),
			"dependents":         len(e.Parsed.Dependents),
			"layouts":            len(e.Parsed.Layouts),
			"tables":             len(e.Parsed.Tables),
			"subforms":           len(e.Parsed.Subforms),
			"evaluation_batches": len(e.Parsed.Batches),
		})
		if GetFlag(cmd, "cache") {
			key := GetString(cmd, "cache-key")
			e.CacheParsed(key)
			fmt.Printf("cached parsed schema under key %q\n", key)
		}
	},
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().Bool("cache", false, "insert the parsed schema into the process-wide parsed-schema cache")
	compileCmd.Flags().String("cache-key", "default", "cache key to insert the parsed schema under")
}
