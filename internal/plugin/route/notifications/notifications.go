package notifications

import (
	"net/http"
	"slices"

	"github.com/chirino/taskmate/internal/httpapi"
	"github.com/chirino/taskmate/internal/model"
	registryroute "github.com/chirino/taskmate/internal/registry/route"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"github.com/chirino/taskmate/internal/security"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:  "notifications",
		Order: 40,
		Loader: func(r *gin.Engine, d registryroute.Deps) error {
			MountRoutes(r, d.Store, d.Auth)
			return nil
		},
	})
}

// MountRoutes mounts the notification routes.
func MountRoutes(r *gin.Engine, store registrystore.TaskStore, auth gin.HandlerFunc) {
	g := r.Group("/api/notification", auth)

	g.POST("", security.RequireRole(model.RoleAdmin), func(c *gin.Context) {
		createNotification(c, store)
	})
	g.GET("/single/:id", func(c *gin.Context) {
		readNotification(c, store)
	})
	g.DELETE("/delete-all/:id", func(c *gin.Context) {
		deleteAll(c, store)
	})
	g.GET("/:id", func(c *gin.Context) {
		listUserNotifications(c, store)
	})
	g.DELETE("/:id", func(c *gin.Context) {
		deleteNotification(c, store)
	})
}

type createRequest struct {
	AssignedTo  []string               `json:"assignedTo" binding:"required,dive,len=24,hexadecimal"`
	Message     string                 `json:"message" binding:"required,min=2,max=100"`
	Type        model.NotificationType `json:"type" binding:"omitempty,oneof=task_created task_updated task_due task_trashed task_restored task_deleted general"`
	RelatedTask string                 `json:"relatedTask" binding:"omitempty,len=24,hexadecimal"`
}

func createNotification(c *gin.Context, store registrystore.TaskStore) {
	var req createRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if err := store.UsersExist(ctx, req.AssignedTo); err != nil {
		httpapi.HandleError(c, err)
		return
	}
	if req.RelatedTask != "" {
		if _, err := store.GetTask(ctx, req.RelatedTask); err != nil {
			httpapi.HandleError(c, err)
			return
		}
	}
	if req.Type == "" {
		req.Type = model.NotificationGeneral
	}
	n, err := store.CreateNotification(ctx, registrystore.CreateNotificationRequest{
		AssignedTo:  req.AssignedTo,
		Message:     req.Message,
		Type:        req.Type,
		RelatedTask: req.RelatedTask,
		CreatedBy:   security.GetUserID(c),
	})
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "notification": n})
}

func readNotification(c *gin.Context, store registrystore.TaskStore) {
	id, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	n, err := store.GetNotification(ctx, id)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	if !security.IsAdmin(c) && !slices.Contains(n.AssignedTo, security.GetUserID(c)) {
		httpapi.Fail(c, http.StatusForbidden, "forbidden", "Not authorized to view this notification")
		return
	}
	view, err := store.ReadNotification(ctx, id)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "notification": view})
}

func listUserNotifications(c *gin.Context, store registrystore.TaskStore) {
	userID, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	if !security.IsSelfOrAdmin(c, userID) {
		httpapi.Fail(c, http.StatusForbidden, "forbidden", "You can only view your own notifications")
		return
	}
	list, err := store.ListUserNotifications(c.Request.Context(), userID)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	if list == nil {
		list = []model.NotificationView{}
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "userNotification": list})
}

func deleteNotification(c *gin.Context, store registrystore.TaskStore) {
	id, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	n, err := store.GetNotification(ctx, id)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	userID := security.GetUserID(c)
	if !security.IsAdmin(c) && n.CreatedBy != userID && !slices.Contains(n.AssignedTo, userID) {
		httpapi.Fail(c, http.StatusForbidden, "forbidden", "Not authorized to delete this notification")
		return
	}
	if err := store.DeleteNotification(ctx, id); err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted successfully"})
}

func deleteAll(c *gin.Context, store registrystore.TaskStore) {
	userID, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	if !security.IsSelfOrAdmin(c, userID) {
		httpapi.Fail(c, http.StatusForbidden, "forbidden", "You can only delete your own notifications")
		return
	}
	n, err := store.DeleteUserNotifications(c.Request.Context(), userID)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications deleted successfully", "deletedCount": n})
}
