package model

import "encoding/json"

// EncodeMetadata renders m as compact JSON with sorted keys; nil becomes "{}".
func EncodeMetadata(m Metadata) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	raw, err := canonicalJSON(map[string]any(m))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeMetadata parses stored metadata. An empty object decodes to nil.
func DecodeMetadata(s string) (Metadata, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m Metadata
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
