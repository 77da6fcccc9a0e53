package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chirino/taskmate/internal/model"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"github.com/chirino/taskmate/internal/security"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func (s *MongoStore) CreateNotification(ctx context.Context, req registrystore.CreateNotificationRequest) (*model.Notification, error) {
	assignees, err := parseIDs("user", req.AssignedTo)
	if err != nil {
		return nil, err
	}
	typ := req.Type
	if typ == "" {
		typ = model.NotificationGeneral
	}
	now := time.Now()
	doc := notificationDoc{
		ID:         bson.NewObjectID(),
		AssignedTo: assignees,
		Message:    model.TruncateMessage(req.Message),
		Type:       string(typ),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.RelatedTask != "" {
		task, err := s.findTask(ctx, req.RelatedTask, nil)
		if err != nil {
			return nil, err
		}
		doc.RelatedTask = &task.ID
	}
	if req.CreatedBy != "" {
		by, err := parseID("user", req.CreatedBy)
		if err != nil {
			return nil, err
		}
		doc.CreatedBy = &by
	}
	if err := s.insertNotifications(ctx, []notificationDoc{doc}); err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoStore) ListUserNotifications(ctx context.Context, userID string) ([]model.NotificationView, error) {
	oid, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	cursor, err := s.notifications().Find(ctx, bson.M{"assignedTo": oid},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	var docs []notificationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return s.notificationViews(ctx, docs)
}

func (s *MongoStore) GetNotification(ctx context.Context, notificationID string) (*model.Notification, error) {
	oid, err := parseID("notification", notificationID)
	if err != nil {
		return nil, err
	}
	var doc notificationDoc
	if err := s.notifications().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &registrystore.NotFoundError{Resource: "notification", ID: notificationID}
		}
		return nil, fmt.Errorf("failed to load notification: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) ReadNotification(ctx context.Context, notificationID string) (*model.NotificationView, error) {
	oid, err := parseID("notification", notificationID)
	if err != nil {
		return nil, err
	}
	var doc notificationDoc
	err = s.notifications().FindOneAndUpdate(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"isRead": true, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &registrystore.NotFoundError{Resource: "notification", ID: notificationID}
		}
		return nil, fmt.Errorf("failed to read notification: %w", err)
	}
	views, err := s.notificationViews(ctx, []notificationDoc{doc})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *MongoStore) DeleteNotification(ctx context.Context, notificationID string) error {
	oid, err := parseID("notification", notificationID)
	if err != nil {
		return err
	}
	res, err := s.notifications().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if res.DeletedCount == 0 {
		return &registrystore.NotFoundError{Resource: "notification", ID: notificationID}
	}
	return nil
}

func (s *MongoStore) DeleteUserNotifications(ctx context.Context, userID string) (int64, error) {
	oid, err := parseID("user", userID)
	if err != nil {
		return 0, err
	}
	res, err := s.notifications().DeleteMany(ctx, bson.M{"assignedTo": oid})
	if err != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", err)
	}
	return res.DeletedCount, nil
}

// UpsertMessageNotification keeps a single unread "general" notification per
// sender and receiver, refreshing its message on every new direct message.
func (s *MongoStore) UpsertMessageNotification(ctx context.Context, senderID string, receiverID string, message string) error {
	sender, err := parseID("user", senderID)
	if err != nil {
		return err
	}
	receiver, err := parseID("user", receiverID)
	if err != nil {
		return err
	}
	now := time.Now()
	// Exact array match: broadcast notifications that merely include the
	// receiver belong to other recipients too and must stay untouched.
	// The upsert copies these equality fields into the inserted document.
	filter := bson.M{
		"assignedTo": bson.A{receiver},
		"createdBy":  sender,
		"type":       string(model.NotificationGeneral),
	}
	update := bson.M{
		"$set": bson.M{
			"message":   model.TruncateMessage(message),
			"isRead":    false,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"createdAt": now,
		},
	}
	res, err := s.notifications().UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert message notification: %w", err)
	}
	if res.UpsertedCount > 0 {
		security.CountNotifications(string(model.NotificationGeneral), 1)
	}
	return nil
}

// notificationViews populates relatedTask and createdBy.
func (s *MongoStore) notificationViews(ctx context.Context, docs []notificationDoc) ([]model.NotificationView, error) {
	var taskIDs, userIDs []bson.ObjectID
	for _, d := range docs {
		if d.RelatedTask != nil {
			taskIDs = append(taskIDs, *d.RelatedTask)
		}
		if d.CreatedBy != nil {
			userIDs = append(userIDs, *d.CreatedBy)
		}
	}
	users, err := s.userSummaries(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	tasks := map[bson.ObjectID]model.TaskRef{}
	if len(taskIDs) > 0 {
		cursor, err := s.tasks().Find(ctx, bson.M{"_id": bson.M{"$in": taskIDs}},
			options.Find().SetProjection(bson.M{"title": 1, "dueDate": 1, "status": 1}))
		if err != nil {
			return nil, fmt.Errorf("failed to load related tasks: %w", err)
		}
		var found []taskDoc
		if err := cursor.All(ctx, &found); err != nil {
			return nil, fmt.Errorf("failed to load related tasks: %w", err)
		}
		for _, t := range found {
			tasks[t.ID] = model.TaskRef{ID: t.ID.Hex(), Title: t.Title, DueDate: t.DueDate, Status: model.Status(t.Status)}
		}
	}

	views := make([]model.NotificationView, len(docs))
	for i, d := range docs {
		v := model.NotificationView{
			ID:         d.ID.Hex(),
			AssignedTo: hexIDs(d.AssignedTo),
			Message:    d.Message,
			IsRead:     d.IsRead,
			Type:       model.NotificationType(d.Type),
			CreatedAt:  d.CreatedAt,
			UpdatedAt:  d.UpdatedAt,
		}
		if d.RelatedTask != nil {
			if t, ok := tasks[*d.RelatedTask]; ok {
				v.RelatedTask = &t
			}
		}
		if d.CreatedBy != nil {
			if u, ok := users[*d.CreatedBy]; ok {
				v.CreatedBy = &u
			}
		}
		views[i] = v
	}
	return views, nil
}
