package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey_Hash(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Key
		equal bool
	}{
		{"same strings", Key{"todos"}, Key{"todos"}, true},
		{"int and float", Key{"todo", 1}, Key{"todo", 1.0}, true},
		{"maps ignore order", Key{"todos", map[string]any{"a": 1, "b": 2}}, Key{"todos", map[string]any{"b": 2, "a": 1}}, true},
		{"different length", Key{"todos"}, Key{"todos", "all"}, false},
		{"different type", Key{"todo", 1}, Key{"todo", "1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Hash() == tt.b.Hash())
		})
	}
}

func TestKey_HasPrefix(t *testing.T) {
	assert.True(t, Key{"todos", "completed"}.HasPrefix(Key{"todos"}))
	assert.True(t, Key{"todos"}.HasPrefix(Key{"todos"}))
	assert.True(t, Key{"todos"}.HasPrefix(Key{}))
	assert.False(t, Key{"todos"}.HasPrefix(Key{"todos", "completed"}))
	assert.False(t, Key{"time"}.HasPrefix(Key{"todos"}))
}
