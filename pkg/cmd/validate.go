package cmd

import (
	"github.com/spf13/cobra"

	"github.com/flowschema/evalengine/pkg/cancel"
)

var validateCmd = &cobra.Command{
	Use:   "validate [flags] schema_file",
	Short: "run a schema's rule blocks against a data document.",
	Long: `Evaluate a schema against a data document, then run its "rules"
blocks in declared order, reporting the first failing rule per field as an
insertion-ordered field_path -> diagnostic map.`,
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
		if _, err := e.Evaluate(data, nil, nil, cancel.New()); err != nil {
			fail(err)
		}

		selected := GetStringArray(cmd, "select")
		result, err := e.Validate(selected, cancel.New())
		if err != nil {
			fail(err)
		}

		errors := make(map[string]any, result.Errors.Len())
		for _, fieldPath := range result.Errors.Keys() {
			diag, _ := result.Errors.Get(fieldPath)
			errors[fieldPath] = diag
		}
		printJSON(map[string]any{
			"has_error": result.HasError,
			"errors":    errors,
		})
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("data", "", "data document file (JSON or MessagePack)")
	validateCmd.Flags().StringArray("select", nil, "restrict validation to these field paths")
}
