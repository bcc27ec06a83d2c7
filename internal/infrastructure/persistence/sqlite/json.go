package sqlite

import (
	"encoding/json"
	"fmt"
)

// marshalJSON renders a JSON column value. Nil maps and zero structs render
// "{}" so the column is never NULL.
func marshalJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal json column: %w", err)
	}
	if string(data) == "null" {
		return "{}", nil
	}
	return string(data), nil
}

func unmarshalJSON(data string, v interface{}) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("unmarshal json column: %w", err)
	}
	return nil
}
