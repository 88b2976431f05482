package schemaparse

import (
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/flowschema/evalengine/pkg/logic"
)

func TestParseMsgpackMatchesParse(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"tax": map[string]any{
				"$evaluation": map[string]any{"*": []any{map[string]any{"var": "price"}, 0.1}},
			},
		},
	}

	encoded, err := msgpack.Marshal(schema)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	parsed, err := ParseMsgpack(encoded, logic.NewCompiler())
	if err != nil {
		t.Fatalf("ParseMsgpack: %v", err)
	}
	if _, ok := parsed.Evaluations["/tax"]; !ok {
		t.Fatalf("expected /tax to be discovered, got %#v", parsed.Evaluations)
	}
}
