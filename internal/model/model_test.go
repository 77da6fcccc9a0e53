package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncateMessage(t *testing.T) {
	short := "Task updated: docs"
	require.Equal(t, short, TruncateMessage(short))

	long := "New task assigned: " + strings.Repeat("x", 200)
	got := TruncateMessage(long)
	require.Len(t, []rune(got), MaxNotificationMessage)
	require.True(t, strings.HasSuffix(got, "..."))
}

func TestEnums(t *testing.T) {
	require.True(t, StatusInProgress.Valid())
	require.False(t, Status("done").Valid())
	require.True(t, PriorityLow.Valid())
	require.False(t, Priority("urgent").Valid())
	require.True(t, NotificationTaskDue.Valid())
	require.False(t, NotificationType("other").Valid())
	require.True(t, RoleAdmin.Valid())
	require.False(t, Role("root").Valid())
}

func TestTaskIsAssignee(t *testing.T) {
	task := Task{AssignedTo: []string{"a", "b"}}
	require.True(t, task.IsAssignee("b"))
	require.False(t, task.IsAssignee("c"))
}
