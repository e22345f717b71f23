package format

import (
	"encoding/json"
	"io"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes JSON output. Indent, when set, pretty-prints nested values.
type JSONFormatter struct {
	Indent string
}

// Write writes JSON payload to a writer.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	if f.Indent != "" {
		enc.SetIndent("", f.Indent)
	}
	return enc.Encode(payload)
}
