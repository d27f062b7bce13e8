package shared

import (
	"io"

	jsoniter "github.com/json-iterator/go"
)

// JSON is the codec used for catalog payloads and report output.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

// DecodeJSON decodes a single JSON value from r into v.
func DecodeJSON(r io.Reader, v any) error {
	return JSON.NewDecoder(r).Decode(v)
}

// EncodeJSON writes v to w as indented JSON followed by a newline.
func EncodeJSON(w io.Writer, v any) error {
	enc := JSON.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
