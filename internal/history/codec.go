package history

import (
	"bytes"
	"encoding/gob"
)

// EncodeItems serializes a run's item snapshot using encoding/gob.
// Callers must ensure that the item type is gob-encodable.
func EncodeItems[T any](items []T) ([]byte, error) {
	if len(items) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(items); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeItems deserializes an item snapshot produced by EncodeItems.
// An empty payload decodes to a nil slice.
func DecodeItems[T any](data []byte) ([]T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var items []T
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}
