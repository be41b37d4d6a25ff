package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTodoFilter_Matches(t *testing.T) {
	done := Todo{ID: 1, Text: "done", Completed: true}
	open := Todo{ID: 2, Text: "open"}

	tests := []struct {
		status   string
		wantDone bool
		wantOpen bool
	}{
		{status: "", wantDone: true, wantOpen: true},
		{status: StatusAll, wantDone: true, wantOpen: true},
		{status: StatusCompleted, wantDone: true, wantOpen: false},
		{status: StatusActive, wantDone: false, wantOpen: true},
		{status: "whatever", wantDone: false, wantOpen: true},
	}

	for _, tt := range tests {
		t.Run("status="+tt.status, func(t *testing.T) {
			f := TodoFilter{Status: tt.status}
			assert.Equal(t, tt.wantDone, f.Matches(done))
			assert.Equal(t, tt.wantOpen, f.Matches(open))
		})
	}
}

func TestTodoPatch_Apply(t *testing.T) {
	base := Todo{ID: 7, Text: "write tests", Completed: false}

	text := "write more tests"
	completed := true

	assert.Equal(t, base, TodoPatch{ID: 7}.Apply(base))
	assert.Equal(t, Todo{ID: 7, Text: "write more tests"}, TodoPatch{ID: 7, Text: &text}.Apply(base))
	assert.Equal(t, Todo{ID: 7, Text: "write tests", Completed: true}, TodoPatch{ID: 7, Completed: &completed}.Apply(base))
}
