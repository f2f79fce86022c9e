// Package fetcher retrieves the authoritative dataset descriptor of a
// question when its inline data is insufficient.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"practicelab/internal/dataset/model"
)

// maxPayloadBytes bounds a fetched descriptor.
const maxPayloadBytes = 16 << 20

// Fetcher returns the decoded dataset descriptor of a question, or nil when
// the source has none.
type Fetcher interface {
	Fetch(ctx context.Context, questionID string) (any, error)
}

// Nop never finds a descriptor.
type Nop struct{}

func (Nop) Fetch(context.Context, string) (any, error) { return nil, nil }

// decodePayload decodes a JSON descriptor keeping key order. Anything that is
// not JSON is returned as text for the normalizer to interpret.
func decodePayload(data []byte) (any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '{', '[', '"':
		v, err := model.DecodeJSON(trimmed)
		if err != nil {
			return nil, fmt.Errorf("decode dataset payload failed: %w", err)
		}
		return v, nil
	}
	return strings.TrimSpace(string(trimmed)), nil
}

func readPayload(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPayloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxPayloadBytes {
		return nil, fmt.Errorf("dataset payload exceeds %d bytes", maxPayloadBytes)
	}
	return data, nil
}
