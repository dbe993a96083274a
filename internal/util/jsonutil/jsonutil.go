package jsonutil

import (
	"bytes"
	"encoding/json"
	"strings"
)

// UnmarshalRaw unmarshals an LLM JSON payload into v with best effort:
// a direct unmarshal first, then one level of quoted-string unwrapping
// (some models return the object wrapped in a JSON string).
func UnmarshalRaw(raw json.RawMessage, v any) error {
	data := bytes.TrimSpace([]byte(raw))
	if err := json.Unmarshal(data, v); err == nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if err := json.Unmarshal([]byte(strings.TrimSpace(s)), v); err == nil {
			return nil
		}
	}
	return json.Unmarshal(data, v)
}

// MarshalNoEscape encodes v into JSON without HTML-escaping <, >, &.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
