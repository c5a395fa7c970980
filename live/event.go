package live

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownEvent = errors.New("unknown event")

// DecodeTagged splits an externally tagged JSON value into its tag and payload.
// A bare string "Tag" yields an empty payload; {"Tag": payload} yields the raw payload.
func DecodeTagged(data []byte) (string, json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", nil, errors.New("empty event")
	}

	if data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return "", nil, err
		}
		return tag, nil, nil
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		return "", nil, err
	}
	if len(object) != 1 {
		return "", nil, fmt.Errorf("tagged event must have exactly one key, got %d", len(object))
	}
	for tag, payload := range object {
		return tag, payload, nil
	}
	return "", nil, nil
}

// UnknownEvent builds the error modules return for a tag they do not handle.
func UnknownEvent(tag string) error {
	return fmt.Errorf("%w: %q", ErrUnknownEvent, tag)
}
