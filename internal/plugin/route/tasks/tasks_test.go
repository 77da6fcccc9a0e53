package tasks_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/chirino/taskmate/internal/model"
	"github.com/chirino/taskmate/internal/testutil/testapi"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type taskResponse struct {
	Message string         `json:"message"`
	Task    model.TaskView `json:"task"`
}

type tasksResponse struct {
	Message string           `json:"message"`
	Tasks   []model.TaskView `json:"tasks"`
}

type notificationsResponse struct {
	UserNotification []model.NotificationView `json:"userNotification"`
}

func newTask(assignees ...string) gin.H {
	return gin.H{
		"title":       "Write docs",
		"description": "Document the API",
		"dueDate":     time.Now().Add(72 * time.Hour).Format(time.RFC3339),
		"priority":    "high",
		"assignedTo":  assignees,
	}
}

func notificationsFor(t *testing.T, env *testapi.Env, userID, token string) []model.NotificationView {
	t.Helper()
	w := env.Do(t, http.MethodGet, "/api/notification/"+userID, token, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	return testapi.Decode[notificationsResponse](t, w).UserNotification
}

func TestCreateTaskNotifiesEachAssignee(t *testing.T) {
	env := testapi.Start(t)
	admin, adminToken := env.CreateUser(t, "Admin", model.RoleAdmin)
	a, aToken := env.CreateUser(t, "Ann", model.RoleUser)
	b, bToken := env.CreateUser(t, "Ben", model.RoleUser)

	testapi.RequireStatus(t, env.Do(t, http.MethodPost, "/api/task", aToken, newTask(a.ID)), http.StatusForbidden)

	w := env.Do(t, http.MethodPost, "/api/task", adminToken, newTask(a.ID, b.ID))
	testapi.RequireStatus(t, w, http.StatusOK)
	created := testapi.Decode[taskResponse](t, w)
	require.Equal(t, "added", created.Message)
	require.Equal(t, model.StatusToDo, created.Task.Status)
	require.Equal(t, model.PriorityHigh, created.Task.Priority)
	require.Len(t, created.Task.AssignedTo, 2)
	require.Equal(t, admin.ID, created.Task.CreatedBy.ID)

	for _, u := range []struct{ id, token string }{{a.ID, aToken}, {b.ID, bToken}} {
		list := notificationsFor(t, env, u.id, u.token)
		require.Len(t, list, 1)
		require.Equal(t, model.NotificationTaskCreated, list[0].Type)
		require.Equal(t, "New task assigned: Write docs", list[0].Message)
		require.Equal(t, created.Task.ID, list[0].RelatedTask.ID)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := testapi.Start(t)
	_, adminToken := env.CreateUser(t, "Admin", model.RoleAdmin)
	a, _ := env.CreateUser(t, "Ann", model.RoleUser)

	past := newTask(a.ID)
	past["dueDate"] = time.Now().Add(-time.Hour).Format(time.RFC3339)
	testapi.RequireStatus(t, env.Do(t, http.MethodPost, "/api/task", adminToken, past), http.StatusBadRequest)

	badPriority := newTask(a.ID)
	badPriority["priority"] = "urgent"
	testapi.RequireStatus(t, env.Do(t, http.MethodPost, "/api/task", adminToken, badPriority), http.StatusBadRequest)

	badID := newTask("123")
	testapi.RequireStatus(t, env.Do(t, http.MethodPost, "/api/task", adminToken, badID), http.StatusBadRequest)

	w := env.Do(t, http.MethodPost, "/api/task", adminToken, newTask("0123456789abcdef01234567"))
	testapi.RequireStatus(t, w, http.StatusNotFound)
}

func TestTaskAccessAndStatus(t *testing.T) {
	env := testapi.Start(t)
	admin, adminToken := env.CreateUser(t, "Admin", model.RoleAdmin)
	a, aToken := env.CreateUser(t, "Ann", model.RoleUser)
	_, outsiderToken := env.CreateUser(t, "Oscar", model.RoleUser)

	w := env.Do(t, http.MethodPost, "/api/task", adminToken, newTask(a.ID))
	testapi.RequireStatus(t, w, http.StatusOK)
	task := testapi.Decode[taskResponse](t, w).Task

	testapi.RequireStatus(t, env.Do(t, http.MethodGet, "/api/task/"+task.ID, aToken, nil), http.StatusOK)
	testapi.RequireStatus(t, env.Do(t, http.MethodGet, "/api/task/"+task.ID, outsiderToken, nil), http.StatusForbidden)

	status := gin.H{"status": "in progress"}
	testapi.RequireStatus(t, env.Do(t, http.MethodPatch, "/api/task/"+task.ID+"/status", outsiderToken, status), http.StatusForbidden)
	testapi.RequireStatus(t, env.Do(t, http.MethodPatch, "/api/task/"+task.ID+"/status", aToken, gin.H{"status": "done"}), http.StatusBadRequest)

	w = env.Do(t, http.MethodPatch, "/api/task/"+task.ID+"/status", aToken, status)
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Equal(t, model.StatusInProgress, testapi.Decode[taskResponse](t, w).Task.Status)

	creatorNotes := notificationsFor(t, env, admin.ID, adminToken)
	require.Len(t, creatorNotes, 1)
	require.Equal(t, "Task status updated to in progress: Write docs", creatorNotes[0].Message)

	w = env.Do(t, http.MethodGet, "/api/task/userTasks/"+a.ID, aToken, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Len(t, testapi.Decode[tasksResponse](t, w).Tasks, 1)
	testapi.RequireStatus(t, env.Do(t, http.MethodGet, "/api/task/userTasks/"+a.ID, outsiderToken, nil), http.StatusForbidden)

	w = env.Do(t, http.MethodPut, "/api/task/"+task.ID, adminToken, gin.H{"title": "Write better docs"})
	testapi.RequireStatus(t, w, http.StatusOK)
	updated := testapi.Decode[taskResponse](t, w)
	require.Equal(t, "updated", updated.Message)
	require.Equal(t, "Write better docs", updated.Task.Title)
	require.Equal(t, model.StatusInProgress, updated.Task.Status)
}

func TestListTasksFilters(t *testing.T) {
	env := testapi.Start(t)
	_, adminToken := env.CreateUser(t, "Admin", model.RoleAdmin)
	a, _ := env.CreateUser(t, "Ann", model.RoleUser)
	b, _ := env.CreateUser(t, "Ben", model.RoleUser)

	w := env.Do(t, http.MethodGet, "/api/task", adminToken, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	empty := testapi.Decode[tasksResponse](t, w)
	require.Equal(t, "no tasks available", empty.Message)
	require.Empty(t, empty.Tasks)

	testapi.RequireStatus(t, env.Do(t, http.MethodPost, "/api/task", adminToken, newTask(a.ID)), http.StatusOK)
	low := newTask(a.ID, b.ID)
	low["priority"] = "low"
	testapi.RequireStatus(t, env.Do(t, http.MethodPost, "/api/task", adminToken, low), http.StatusOK)

	w = env.Do(t, http.MethodGet, "/api/task", adminToken, nil)
	require.Len(t, testapi.Decode[tasksResponse](t, w).Tasks, 2)

	w = env.Do(t, http.MethodGet, "/api/task?priority=low", adminToken, nil)
	require.Len(t, testapi.Decode[tasksResponse](t, w).Tasks, 1)

	w = env.Do(t, http.MethodGet, "/api/task?assignedTo="+a.ID+"&assignedTo="+b.ID, adminToken, nil)
	tasks := testapi.Decode[tasksResponse](t, w).Tasks
	require.Len(t, tasks, 1)
	require.Equal(t, model.PriorityLow, tasks[0].Priority)

	testapi.RequireStatus(t, env.Do(t, http.MethodGet, "/api/task?status=done", adminToken, nil), http.StatusBadRequest)
}

func TestTrashLifecycle(t *testing.T) {
	env := testapi.Start(t)
	_, adminToken := env.CreateUser(t, "Admin", model.RoleAdmin)
	a, aToken := env.CreateUser(t, "Ann", model.RoleUser)

	w := env.Do(t, http.MethodPost, "/api/task", adminToken, newTask(a.ID))
	task := testapi.Decode[taskResponse](t, w).Task

	testapi.RequireStatus(t, env.Do(t, http.MethodDelete, "/api/task/"+task.ID+"/trash", adminToken, nil), http.StatusBadRequest)
	testapi.RequireStatus(t, env.Do(t, http.MethodPatch, "/api/task/"+task.ID+"/restore", adminToken, nil), http.StatusBadRequest)

	w = env.Do(t, http.MethodDelete, "/api/task/"+task.ID, adminToken, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Contains(t, w.Body.String(), "Task moved to trash successfully")

	w = env.Do(t, http.MethodGet, "/api/task/"+task.ID, aToken, nil)
	testapi.RequireStatus(t, w, http.StatusNotFound)
	require.Contains(t, w.Body.String(), "This task has been deleted")

	w = env.Do(t, http.MethodGet, "/api/task/trash", adminToken, nil)
	trash := testapi.Decode[tasksResponse](t, w).Tasks
	require.Len(t, trash, 1)
	require.True(t, trash[0].IsDeleted)

	testapi.RequireStatus(t, env.Do(t, http.MethodPatch, "/api/task/"+task.ID+"/restore", adminToken, nil), http.StatusOK)
	testapi.RequireStatus(t, env.Do(t, http.MethodGet, "/api/task/"+task.ID, aToken, nil), http.StatusOK)

	testapi.RequireStatus(t, env.Do(t, http.MethodDelete, "/api/task/"+task.ID, adminToken, nil), http.StatusOK)
	w = env.Do(t, http.MethodDelete, "/api/task/"+task.ID+"/trash", adminToken, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Contains(t, w.Body.String(), "Task permanently deleted successfully")
	testapi.RequireStatus(t, env.Do(t, http.MethodGet, "/api/task/"+task.ID, adminToken, nil), http.StatusNotFound)

	types := map[model.NotificationType]int{}
	for _, n := range notificationsFor(t, env, a.ID, aToken) {
		types[n.Type]++
	}
	require.Equal(t, map[model.NotificationType]int{
		model.NotificationTaskCreated:  1,
		model.NotificationTaskTrashed:  2,
		model.NotificationTaskRestored: 1,
		model.NotificationTaskDeleted:  1,
	}, types)
}

func TestEmptyTrash(t *testing.T) {
	env := testapi.Start(t)
	_, adminToken := env.CreateUser(t, "Admin", model.RoleAdmin)
	a, aToken := env.CreateUser(t, "Ann", model.RoleUser)

	for i := 0; i < 3; i++ {
		w := env.Do(t, http.MethodPost, "/api/task", adminToken, newTask(a.ID))
		task := testapi.Decode[taskResponse](t, w).Task
		if i < 2 {
			testapi.RequireStatus(t, env.Do(t, http.MethodDelete, "/api/task/"+task.ID, adminToken, nil), http.StatusOK)
		}
	}

	testapi.RequireStatus(t, env.Do(t, http.MethodDelete, "/api/task/trash/empty", aToken, nil), http.StatusForbidden)

	w := env.Do(t, http.MethodDelete, "/api/task/trash/empty", adminToken, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	resp := testapi.Decode[struct {
		Message      string `json:"message"`
		DeletedCount int64  `json:"deletedCount"`
	}](t, w)
	require.Equal(t, "Trash emptied successfully", resp.Message)
	require.EqualValues(t, 2, resp.DeletedCount)

	w = env.Do(t, http.MethodGet, "/api/task", adminToken, nil)
	require.Len(t, testapi.Decode[tasksResponse](t, w).Tasks, 1)
	w = env.Do(t, http.MethodGet, "/api/task/trash", adminToken, nil)
	require.Empty(t, testapi.Decode[tasksResponse](t, w).Tasks)
}
