package assistant

import (
	"strings"
	"testing"
	"time"

	"github.com/chirino/taskmate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemPromptListsTasks(t *testing.T) {
	due := time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)
	prompt := SystemPrompt([]model.Task{
		{Title: "Ship release", Description: "tag and publish", Priority: model.PriorityHigh, Status: model.StatusInProgress, DueDate: due},
	})
	assert.True(t, strings.HasPrefix(prompt, "You are TaskMate"))
	assert.Contains(t, prompt, "- Ship release (priority: high, status: in progress, due: 2030-01-02): tag and publish")

	assert.Contains(t, SystemPrompt(nil), "no open tasks")
}

func TestBuildMessages(t *testing.T) {
	history := []model.ChatTurn{
		{Role: model.ChatRoleUser, Content: "hi"},
		{Role: model.ChatRoleSystem, Content: "ignored"},
		{Role: model.ChatRoleAssistant, Content: "hello"},
	}
	msgs := BuildMessages("sys", history, "what next?")
	require.Len(t, msgs, 4)
	assert.Equal(t, Message{Role: model.ChatRoleSystem, Content: "sys"}, msgs[0])
	assert.Equal(t, model.ChatRoleAssistant, msgs[2].Role)
	assert.Equal(t, Message{Role: model.ChatRoleUser, Content: "what next?"}, msgs[3])
}

func TestSelectUnknown(t *testing.T) {
	_, err := Select("nope")
	assert.Error(t, err)
}
