package util

import (
	"bytes"
	"encoding/json"
	"fmt"
)

func WriteJSONAtomic(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return WriteFileAtomic(path, buf.Bytes())
}

func WriteTextAtomic(path string, content string) error {
	return WriteFileAtomic(path, []byte(content))
}
