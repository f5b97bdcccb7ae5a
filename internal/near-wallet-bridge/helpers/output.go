package helpers

import (
	"encoding/json"
	"io"
)

// WriteOutput prints v as indented JSON when asJSON is set, otherwise it
// hands w to the human renderer.
func WriteOutput(w io.Writer, asJSON bool, v any, human func(io.Writer) error) error {
	if asJSON || human == nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return human(w)
}
