package query

import (
	"encoding/json"
	"fmt"
)

// Key identifies a cached resource, e.g. Key{"todos"} or Key{"todos", "completed"}.
// Components should be JSON-encodable primitives.
type Key []any

// Hash returns the canonical form used to compare keys.
func (k Key) Hash() string {
	raw, err := json.Marshal([]any(k))
	if err != nil {
		return fmt.Sprintf("%#v", []any(k))
	}
	return string(raw)
}

// HasPrefix reports whether the first len(prefix) components of k equal prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if (Key{k[i]}).Hash() != (Key{prefix[i]}).Hash() {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	return k.Hash()
}
