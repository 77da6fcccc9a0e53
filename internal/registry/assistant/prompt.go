package assistant

import (
	"fmt"
	"strings"

	"github.com/chirino/taskmate/internal/model"
)

const basePrompt = "You are TaskMate, a helpful task management assistant. " +
	"Help users manage their tasks effectively with clear, actionable advice."

// SystemPrompt introduces the assistant and lists the caller's open tasks.
func SystemPrompt(tasks []model.Task) string {
	if len(tasks) == 0 {
		return basePrompt + "\n\nThe user currently has no open tasks."
	}
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nThe user's open tasks, soonest due first:\n")
	for _, t := range tasks {
		fmt.Fprintf(&b, "- %s (priority: %s, status: %s, due: %s)",
			t.Title, t.Priority, t.Status, t.DueDate.UTC().Format("2006-01-02"))
		if d := strings.TrimSpace(t.Description); d != "" {
			fmt.Fprintf(&b, ": %s", d)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// BuildMessages assembles the prompt: system message, stored history, then the new user message.
func BuildMessages(system string, history []model.ChatTurn, next string) []Message {
	out := make([]Message, 0, len(history)+2)
	out = append(out, Message{Role: model.ChatRoleSystem, Content: system})
	for _, t := range history {
		if t.Role == model.ChatRoleSystem {
			continue
		}
		out = append(out, Message{Role: t.Role, Content: t.Content})
	}
	return append(out, Message{Role: model.ChatRoleUser, Content: next})
}
