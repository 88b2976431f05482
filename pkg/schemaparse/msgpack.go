package schemaparse

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/flowschema/evalengine/pkg/logic"
)

// ParseMsgpack decodes a MessagePack-encoded schema document and parses it
// exactly as Parse does. msgpack/v5 decodes an untyped map
// into map[string]any and an untyped array into []any by default, matching
// the shape encoding/json.Unmarshal-into-any already produces for the JSON
// input path, so the rest of the parser never has to care which wire format
// the schema arrived in.
func ParseMsgpack(data []byte, compiler *logic.Compiler) (*ParsedSchema, error) {
	var decoded map[string]any
	if err := msgpack.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}
	return Parse(decoded, compiler)
}
