package cmd

import (
	"github.com/spf13/cobra"

	"github.com/flowschema/evalengine/pkg/cancel"
)

var layoutCmd = &cobra.Command{
	Use:   "layout [flags] schema_file",
	Short: "resolve a schema's $layout references against a data document.",
	Long: `Resolve every $layout reference discovered in a schema into its
final container form, optionally evaluating the
schema against a data document first.`,
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

		resolved, err := e.ResolveLayout(GetFlag(cmd, "evaluate"), data, context, cancel.New())
		if err != nil {
			fail(err)
		}
		printJSON(resolved)
	},
}

func init() {
	rootCmd.AddCommand(layoutCmd)
	layoutCmd.Flags().String("data", "", "data document file (JSON or MessagePack)")
	layoutCmd.Flags().String("context", "", "context document file (JSON or MessagePack)")
	layoutCmd.Flags().Bool("evaluate", true, "run a full evaluation pass before resolving layouts")
}
