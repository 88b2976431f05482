package cmd

import (
	"os"
	"path"
	"strings"

	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/flowschema/evalengine/pkg/engine"
)

// logicCmd groups the process-wide compiled-logic registry operations,
// independent of any one schema.
var logicCmd = &cobra.Command{
	Use:   "logic",
	Short: "compile and run externally authored logic expressions.",
}

var logicCompileCmd = &cobra.Command{
	Use:   "compile expression_file",
	Short: "compile a logic expression and print its opaque handle.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		expression, err := readExpressionFile(args[0])
		if err != nil {
			fail(err)
		}
		handle, err := engine.CompileLogic(expression)
		if err != nil {
			fail(err)
		}
		printJSON(map[string]any{"handle": handle})
	},
}

var logicRunCmd = &cobra.Command{
	Use:   "run handle",
	Short: "run a previously compiled logic expression against a data document.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
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
		result, err := engine.RunLogic(args[0], data, context)
		if err != nil {
			fail(err)
		}
		printJSON(map[string]any{"result": result})
	},
}

// readExpressionFile decodes an expression document, which, unlike a
// schema, may be any JSON value at the top level (an array-form "if"
// chain, a bare literal), not just an object.
func readExpressionFile(filename string) (any, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var out any
	ext := strings.ToLower(path.Ext(filename))
	if ext == ".msgpack" || ext == ".mpack" {
		if err := msgpack.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(logicCmd)
	logicCmd.AddCommand(logicCompileCmd)
	logicCmd.AddCommand(logicRunCmd)
	logicRunCmd.Flags().String("data", "", "data document file (JSON or MessagePack)")
	logicRunCmd.Flags().String("context", "", "context document file (JSON or MessagePack)")
}
