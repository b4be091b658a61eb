package graph

import (
	"encoding/json"
	"fmt"
)

// Clone creates a deep copy of state S using JSON round-trip serialization.
//
// Parallel fan-out stages hand each branch an independent snapshot so no two
// branches ever share mutable references. This approach works for any Go type
// that can be JSON-marshaled, including:
//   - Primitives (string, int, bool, float64)
//   - Structs with exported fields
//   - Slices, maps, and pointers (values are copied, not addresses)
//
// Limitations:
//   - Unexported struct fields are not copied
//   - Channels, functions, and non-marshalable types will fail
func Clone[S any](state S) (S, error) {
	var zero S

	data, err := json.Marshal(state)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal state: %w", err)
	}

	var copied S
	if err := json.Unmarshal(data, &copied); err != nil {
		return zero, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return copied, nil
}
