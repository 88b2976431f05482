package cmd

import (
	"github.com/spf13/cobra"

	"github.com/flowschema/evalengine/pkg/cancel"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [flags] schema_file",
	Short: "evaluate a schema against a data document.",
	Long: `Run the full evaluation pass over a schema's $evaluation, condition,
rules, dependents and table declarations against a data document, printing
the resulting working document (or, with --schema-view, the evaluated
schema tree augmented with current values and resolved layouts).`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := newEngineFromFile(cmd, args[0])
		if err != nil {
			fail(err)
		}

		data, err := readDataFile(GetString(cmd, "data"))
		if err != nil {
			fail(err)
		}
		var context any
		if ctxFile := GetString(cmd, "context"); ctxFile != "" {
			if context, err = readDataFile(ctxFile); err != nil {
				fail(err)
			}
		}

		selected := GetStringArray(cmd, "select")
		result, err := e.Evaluate(data, context, selected, cancel.New())
		if err != nil {
			fail(err)
		}

		if !GetFlag(cmd, "schema-view") {
			printJSON(result)
			return
		}
		schema, err := e.GetEvaluatedSchema(GetFlag(cmd, "skip-layout"))
		if err != nil {
			fail(err)
		}
		printJSON(schema)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().String("data", "", "data document file (JSON or MessagePack)")
	evaluateCmd.Flags().String("context", "", "context document file (JSON or MessagePack)")
	evaluateCmd.Flags().StringArray("select", nil, "restrict evaluation to these field paths")
	evaluateCmd.Flags().Bool("schema-view", false, "print the evaluated schema tree instead of the working document")
	evaluateCmd.Flags().Bool("skip-layout", false, "omit resolved $layout containers from --schema-view output")
}
