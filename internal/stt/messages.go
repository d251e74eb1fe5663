package stt

import (
	"encoding/json"
	"fmt"
)

func peekType(message []byte) (string, error) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		return "", fmt.Errorf("unmarshal message: %w", err)
	}
	if base.Type == "" {
		return "", fmt.Errorf("message missing type field")
	}
	return base.Type, nil
}

func unmarshal(message []byte, v any) error {
	return json.Unmarshal(message, v)
}
