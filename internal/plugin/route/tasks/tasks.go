package tasks

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/httpapi"
	"github.com/chirino/taskmate/internal/model"
	registryroute "github.com/chirino/taskmate/internal/registry/route"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"github.com/chirino/taskmate/internal/security"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:  "tasks",
		Order: 30,
		Loader: func(r *gin.Engine, d registryroute.Deps) error {
			MountRoutes(r, d.Store, d.Auth)
			return nil
		},
	})
}

// MountRoutes mounts the task and trash routes.
func MountRoutes(r *gin.Engine, store registrystore.TaskStore, auth gin.HandlerFunc) {
	g := r.Group("/api/task", auth)
	admin := security.RequireRole(model.RoleAdmin)

	g.GET("", admin, func(c *gin.Context) {
		listTasks(c, store)
	})
	g.POST("", admin, func(c *gin.Context) {
		createTask(c, store)
	})
	g.GET("/userTasks/:id", func(c *gin.Context) {
		listUserTasks(c, store)
	})

	g.GET("/trash", func(c *gin.Context) {
		listTrash(c, store)
	})
	g.DELETE("/trash/empty", admin, func(c *gin.Context) {
		emptyTrash(c, store)
	})
	g.PATCH("/:id/restore", admin, func(c *gin.Context) {
		restoreTask(c, store)
	})
	g.DELETE("/:id/trash", admin, func(c *gin.Context) {
		deletePermanently(c, store)
	})

	g.GET("/:id", func(c *gin.Context) {
		getTask(c, store)
	})
	g.PUT("/:id", admin, func(c *gin.Context) {
		updateTask(c, store)
	})
	g.DELETE("/:id", admin, func(c *gin.Context) {
		trashTask(c, store)
	})
	g.PATCH("/:id/status", func(c *gin.Context) {
		updateStatus(c, store)
	})
}

type listTasksQuery struct {
	Status     model.Status   `form:"status" binding:"omitempty,oneof='to do' 'in progress' completed"`
	Priority   model.Priority `form:"priority" binding:"omitempty,oneof=high medium low"`
	AssignedTo []string       `form:"assignedTo" binding:"omitempty,dive,len=24,hexadecimal"`
	CreatedBy  string         `form:"createdBy" binding:"omitempty,len=24,hexadecimal"`
}

func listTasks(c *gin.Context, store registrystore.TaskStore) {
	var q listTasksQuery
	if !httpapi.BindQuery(c, &q) {
		return
	}
	tasks, err := store.ListTasks(c.Request.Context(), registrystore.TaskFilter{
		Status:     q.Status,
		Priority:   q.Priority,
		AssignedTo: q.AssignedTo,
		CreatedBy:  q.CreatedBy,
	})
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	if len(tasks) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "no tasks available", "tasks": []model.TaskView{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "tasks": tasks})
}

func listUserTasks(c *gin.Context, store registrystore.TaskStore) {
	id, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	if !security.IsSelfOrAdmin(c, id) {
		httpapi.Fail(c, http.StatusForbidden, "forbidden", "you can only list your own tasks")
		return
	}
	tasks, err := store.ListUserTasks(c.Request.Context(), id)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "tasks": tasks})
}

type createTaskRequest struct {
	Title       string         `json:"title" binding:"required,min=2,max=100"`
	Description string         `json:"description" binding:"required,min=2,max=500"`
	DueDate     time.Time      `json:"dueDate" binding:"required,future"`
	Priority    model.Priority `json:"priority" binding:"omitempty,oneof=high medium low"`
	Status      model.Status   `json:"status" binding:"omitempty,oneof='to do' 'in progress' completed"`
	AssignedTo  []string       `json:"assignedTo" binding:"required,dive,len=24,hexadecimal"`
}

func createTask(c *gin.Context, store registrystore.TaskStore) {
	var req createTaskRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if err := store.UsersExist(ctx, req.AssignedTo); err != nil {
		httpapi.HandleError(c, err)
		return
	}
	task, err := store.CreateTask(ctx, security.GetUserID(c), registrystore.CreateTaskRequest{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Status:      req.Status,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	log.Info("Task created", "taskID", task.ID, "assignees", len(task.AssignedTo))
	c.JSON(http.StatusOK, gin.H{"message": "added", "task": task})
}

func getTask(c *gin.Context, store registrystore.TaskStore) {
	id, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	task, err := store.GetTask(c.Request.Context(), id)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	if task.IsDeleted {
		httpapi.Fail(c, http.StatusNotFound, "not_found", "This task has been deleted")
		return
	}
	userID := security.GetUserID(c)
	if !security.IsAdmin(c) && !task.IsAssignee(userID) && !task.IsCreator(userID) {
		httpapi.Fail(c, http.StatusForbidden, "forbidden", "You are not authorized to view this task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "task": task})
}

type updateTaskRequest struct {
	Title       *string         `json:"title" binding:"omitempty,min=2,max=100"`
	Description *string         `json:"description" binding:"omitempty,min=2,max=500"`
	DueDate     *time.Time      `json:"dueDate" binding:"omitempty,future"`
	Priority    *model.Priority `json:"priority" binding:"omitempty,oneof=high medium low"`
	Status      *model.Status   `json:"status" binding:"omitempty,oneof='to do' 'in progress' completed"`
	AssignedTo  []string        `json:"assignedTo" binding:"omitempty,dive,len=24,hexadecimal"`
}

func updateTask(c *gin.Context, store registrystore.TaskStore) {
	id, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	var req updateTaskRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if len(req.AssignedTo) > 0 {
		if err := store.UsersExist(ctx, req.AssignedTo); err != nil {
			httpapi.HandleError(c, err)
			return
		}
	}
	task, err := store.UpdateTask(ctx, security.GetUserID(c), id, registrystore.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Status:      req.Status,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated", "task": task})
}

type statusRequest struct {
	Status model.Status `json:"status" binding:"required,oneof='to do' 'in progress' completed"`
}

func updateStatus(c *gin.Context, store registrystore.TaskStore) {
	id, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	task, err := store.GetTask(ctx, id)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	userID := security.GetUserID(c)
	if !task.IsAssignee(userID) && !security.IsAdmin(c) {
		httpapi.Fail(c, http.StatusForbidden, "forbidden", "You are not assigned to this task")
		return
	}
	updated, err := store.UpdateTaskStatus(ctx, userID, id, req.Status)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "status updated", "task": updated})
}

func trashTask(c *gin.Context, store registrystore.TaskStore) {
	id, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	if err := store.TrashTask(c.Request.Context(), security.GetUserID(c), id); err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task moved to trash successfully"})
}

func restoreTask(c *gin.Context, store registrystore.TaskStore) {
	id, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	if err := store.RestoreTask(c.Request.Context(), security.GetUserID(c), id); err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task restored successfully"})
}

func deletePermanently(c *gin.Context, store registrystore.TaskStore) {
	id, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	if err := store.DeleteTaskPermanently(c.Request.Context(), security.GetUserID(c), id); err != nil {
		httpapi.HandleError(c, err)
		return
	}
	log.Info("Task permanently deleted", "taskID", id, "by", security.GetUserID(c))
	c.JSON(http.StatusOK, gin.H{"message": "Task permanently deleted successfully"})
}

func listTrash(c *gin.Context, store registrystore.TaskStore) {
	tasks, err := store.ListTrash(c.Request.Context(), security.GetUserID(c))
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "tasks": tasks})
}

func emptyTrash(c *gin.Context, store registrystore.TaskStore) {
	n, err := store.EmptyTrash(c.Request.Context(), security.GetUserID(c))
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	log.Info("Trash emptied", "by", security.GetUserID(c), "deleted", n)
	c.JSON(http.StatusOK, gin.H{"message": "Trash emptied successfully", "deletedCount": n})
}
