// Package cmd implements the evalengine CLI's command tree: one file per
// subcommand, a shared rootCmd carrying persistent flags, and a small
// GetFlag/GetString-style helper set so subcommands never check a cobra
// flag-lookup error themselves.
package cmd

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/term"

	"github.com/flowschema/evalengine/pkg/engine"
)

// GetFlag gets an expected bool flag, or exits if the flag is missing.
func GetFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return r
}

// GetString gets an expected string flag, or exits if the flag is missing.
func GetString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return r
}

// GetInt gets an expected int flag, or exits if the flag is missing.
func GetInt(cmd *cobra.Command, flag string) int {
	r, err := cmd.Flags().GetInt(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return r
}

// GetStringArray gets an expected string array flag, or exits if missing.
func GetStringArray(cmd *cobra.Command, flag string) []string {
	r, err := cmd.Flags().GetStringArray(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return r
}

// configureLogging sets the package-wide log level from the --verbose
// persistent flag, per Run rather than in a global init hook.
func configureLogging(cmd *cobra.Command) *log.Entry {
	if GetFlag(cmd, "verbose") {
		log.SetLevel(log.DebugLevel)
	}
	return log.NewEntry(log.StandardLogger())
}

// engineOptions builds the Option set common to every subcommand from the
// root's persistent flags.
func engineOptions(cmd *cobra.Command) []engine.Option {
	var opts []engine.Option
	opts = append(opts, engine.WithTimezoneOffsetMinutes(GetInt(cmd, "tz-offset")))
	opts = append(opts, engine.WithCacheEnabled(!GetFlag(cmd, "no-cache")))
	opts = append(opts, engine.WithSafeNaNHandling(GetFlag(cmd, "safe-nan")))
	opts = append(opts, engine.WithLogger(configureLogging(cmd)))
	return opts
}

// readJSONOrMsgpackFile loads a schema or data file, dispatching on file
// extension: ".msgpack"/".mpack" decode as MessagePack, everything else as
// JSON, with identical downstream semantics.
func readJSONOrMsgpackFile(filename string) (map[string]any, []byte, bool, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, false, err
	}
	ext := strings.ToLower(path.Ext(filename))
	if ext == ".msgpack" || ext == ".mpack" {
		return nil, data, true, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, nil, false, err
	}
	return decoded, data, false, nil
}

// newEngineFromFile constructs an Engine from a schema file, honoring the
// MessagePack alternative input path.
func newEngineFromFile(cmd *cobra.Command, filename string) (*engine.Engine, error) {
	decoded, raw, isMsgpack, err := readJSONOrMsgpackFile(filename)
	if err != nil {
		return nil, err
	}
	opts := engineOptions(cmd)
	if isMsgpack {
		return engine.NewFromMsgpack(raw, opts...)
	}
	return engine.New(decoded, opts...)
}

// readDataFile loads a JSON or MessagePack-encoded data document, or
// returns an empty object when filename is empty (the "no data" case).
func readDataFile(filename string) (any, error) {
	if filename == "" {
		return map[string]any{}, nil
	}
	decoded, raw, isMsgpack, err := readJSONOrMsgpackFile(filename)
	if err != nil {
		return nil, err
	}
	if !isMsgpack {
		return decoded, nil
	}
	var out any
	if err := msgpack.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// printJSON renders v as JSON to stdout: compact when stdout is a terminal
// narrower than 60 columns, pretty-printed otherwise (including piped
// output).
func printJSON(v any) {
	if terminalWidth() >= 60 {
		encoded, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fail(err)
		}
		fmt.Println(string(encoded))
		return
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		fail(err)
	}
	fmt.Println(string(encoded))
}

// terminalWidth reports the detected width of stdout, defaulting to 80
// (wide enough for printJSON's pretty-printed form) when stdout is not a
// terminal (e.g. piped output) or the size can't be queried.
func terminalWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return 80
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

func fail(err error) {
	fmt.Println(err.Error())
	os.Exit(1)
}
