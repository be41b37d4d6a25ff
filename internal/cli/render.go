package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/BuzzLyutic/todo-query/internal/model"
	"github.com/BuzzLyutic/todo-query/internal/store"
)

type styles struct {
	Title   lipgloss.Style
	Done    lipgloss.Style
	Pending lipgloss.Style
	ID      lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Badge   lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		Title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7")),
		Done:    r.NewStyle().Foreground(lipgloss.Color("#9ece6a")).Strikethrough(true),
		Pending: r.NewStyle().Foreground(lipgloss.Color("#c0caf5")),
		ID:      r.NewStyle().Foreground(lipgloss.Color("#565f89")).Width(5).Align(lipgloss.Right),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("#565f89")),
		Error:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#f7768e")),
		Badge:   r.NewStyle().Foreground(lipgloss.Color("#e0af68")),
	}
}

// renderSnapshot формирует текстовое представление списка.
func (s styles) renderSnapshot(title string, snap store.Snapshot) string {
	var b strings.Builder

	header := s.Title.Render(title)
	if badges := s.badges(snap); badges != "" {
		header += " " + s.Badge.Render(badges)
	}
	b.WriteString(header + "\n")

	switch {
	case snap.IsLoading:
		b.WriteString(s.Muted.Render("Loading...") + "\n")
	case len(snap.Todos) == 0 && snap.Err == nil:
		b.WriteString(s.Muted.Render("Nothing to do.") + "\n")
	}
	for _, t := range snap.Todos {
		b.WriteString(s.renderTodo(t) + "\n")
	}

	for _, line := range []struct {
		label string
		err   error
	}{
		{"error", snap.Err},
		{"add failed", snap.AddErr},
		{"update failed", snap.UpdateErr},
		{"delete failed", snap.DeleteErr},
	} {
		if line.err != nil {
			b.WriteString(s.Error.Render(fmt.Sprintf("%s: %v", line.label, line.err)) + "\n")
		}
	}
	return b.String()
}

func (s styles) renderTodo(t model.Todo) string {
	box, text := "[ ]", s.Pending.Render(t.Text)
	if t.Completed {
		box, text = "[x]", s.Done.Render(t.Text)
	}
	return fmt.Sprintf("%s %s %s", s.ID.Render(fmt.Sprintf("#%d", t.ID)), box, text)
}

func (s styles) badges(snap store.Snapshot) string {
	var parts []string
	if snap.IsFetching && !snap.IsLoading {
		parts = append(parts, "refreshing")
	}
	if snap.IsAdding {
		parts = append(parts, "adding")
	}
	if snap.IsUpdating {
		parts = append(parts, "updating")
	}
	if snap.IsDeleting {
		parts = append(parts, "deleting")
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (s styles) renderTime(t time.Time) string {
	return s.Title.Render("Server time") + " " + t.Format(time.RFC3339)
}
