package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chirino/taskmate/internal/model"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// assigneeNotifications builds one notification per assignee of task.
func assigneeNotifications(task taskDoc, actor bson.ObjectID, typ model.NotificationType, format string) []notificationDoc {
	now := time.Now()
	msg := model.TruncateMessage(fmt.Sprintf(format, task.Title))
	taskID := task.ID
	docs := make([]notificationDoc, 0, len(task.AssignedTo))
	for _, userID := range task.AssignedTo {
		docs = append(docs, notificationDoc{
			ID:          bson.NewObjectID(),
			AssignedTo:  []bson.ObjectID{userID},
			Message:     msg,
			Type:        string(typ),
			RelatedTask: &taskID,
			CreatedBy:   &actor,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return docs
}

func (s *MongoStore) CreateTask(ctx context.Context, actorID string, req registrystore.CreateTaskRequest) (*model.TaskView, error) {
	actor, err := parseID("user", actorID)
	if err != nil {
		return nil, err
	}
	assignees, err := parseIDs("user", req.AssignedTo)
	if err != nil {
		return nil, err
	}
	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	status := req.Status
	if status == "" {
		status = model.StatusToDo
	}
	now := time.Now()
	doc := taskDoc{
		ID:          bson.NewObjectID(),
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    string(priority),
		Status:      string(status),
		AssignedTo:  assignees,
		CreatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.tasks().InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	if err := s.insertNotifications(ctx, assigneeNotifications(doc, actor, model.NotificationTaskCreated, "New task assigned: %s")); err != nil {
		return nil, err
	}
	return s.taskView(ctx, doc)
}

func (s *MongoStore) findTask(ctx context.Context, taskID string, filter bson.M) (taskDoc, error) {
	oid, err := parseID("task", taskID)
	if err != nil {
		return taskDoc{}, err
	}
	if filter == nil {
		filter = bson.M{}
	}
	filter["_id"] = oid
	var doc taskDoc
	if err := s.tasks().FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return taskDoc{}, &registrystore.NotFoundError{Resource: "task", ID: taskID}
		}
		return taskDoc{}, fmt.Errorf("failed to load task: %w", err)
	}
	return doc, nil
}

func (s *MongoStore) GetTask(ctx context.Context, taskID string) (*model.TaskView, error) {
	doc, err := s.findTask(ctx, taskID, nil)
	if err != nil {
		return nil, err
	}
	return s.taskView(ctx, doc)
}

func (s *MongoStore) ListTasks(ctx context.Context, filter registrystore.TaskFilter) ([]model.TaskView, error) {
	q := bson.M{"isDeleted": false}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	if filter.Priority != "" {
		q["priority"] = string(filter.Priority)
	}
	if len(filter.AssignedTo) > 0 {
		ids, err := parseIDs("user", filter.AssignedTo)
		if err != nil {
			return nil, err
		}
		q["assignedTo"] = bson.M{"$all": ids}
	}
	if filter.CreatedBy != "" {
		id, err := parseID("user", filter.CreatedBy)
		if err != nil {
			return nil, err
		}
		q["createdBy"] = id
	}
	return s.queryTaskViews(ctx, q, bson.D{{Key: "createdAt", Value: -1}})
}

func (s *MongoStore) ListUserTasks(ctx context.Context, userID string) ([]model.TaskView, error) {
	oid, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	return s.queryTaskViews(ctx, bson.M{"assignedTo": oid, "isDeleted": false}, bson.D{{Key: "createdAt", Value: -1}})
}

func (s *MongoStore) UpdateTask(ctx context.Context, actorID string, taskID string, update registrystore.TaskUpdate) (*model.TaskView, error) {
	actor, err := parseID("user", actorID)
	if err != nil {
		return nil, err
	}
	oid, err := parseID("task", taskID)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": time.Now()}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.DueDate != nil {
		set["dueDate"] = *update.DueDate
		// A moved due date earns a fresh reminder.
		_, err := s.tasks().UpdateOne(ctx,
			bson.M{"_id": oid, "isDeleted": false, "dueDate": bson.M{"$ne": *update.DueDate}},
			bson.M{"$unset": bson.M{"dueReminderSentAt": ""}})
		if err != nil {
			return nil, fmt.Errorf("failed to reset due reminder: %w", err)
		}
	}
	if update.Priority != nil {
		set["priority"] = string(*update.Priority)
	}
	if update.Status != nil {
		set["status"] = string(*update.Status)
	}
	if update.AssignedTo != nil {
		ids, err := parseIDs("user", update.AssignedTo)
		if err != nil {
			return nil, err
		}
		set["assignedTo"] = ids
	}

	var doc taskDoc
	err = s.tasks().FindOneAndUpdate(ctx, bson.M{"_id": oid, "isDeleted": false}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &registrystore.NotFoundError{Resource: "task", ID: taskID}
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	if err := s.insertNotifications(ctx, assigneeNotifications(doc, actor, model.NotificationTaskUpdated, "Task updated: %s")); err != nil {
		return nil, err
	}
	return s.taskView(ctx, doc)
}

func (s *MongoStore) UpdateTaskStatus(ctx context.Context, actorID string, taskID string, status model.Status) (*model.TaskView, error) {
	actor, err := parseID("user", actorID)
	if err != nil {
		return nil, err
	}
	oid, err := parseID("task", taskID)
	if err != nil {
		return nil, err
	}
	var doc taskDoc
	err = s.tasks().FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "isDeleted": false},
		bson.M{"$set": bson.M{"status": string(status), "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &registrystore.NotFoundError{Resource: "task", ID: taskID}
		}
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	now := time.Now()
	creator := doc.CreatedBy
	notice := notificationDoc{
		ID:          bson.NewObjectID(),
		AssignedTo:  []bson.ObjectID{creator},
		Message:     model.TruncateMessage(fmt.Sprintf("Task status updated to %s: %s", status, doc.Title)),
		Type:        string(model.NotificationTaskUpdated),
		RelatedTask: &doc.ID,
		CreatedBy:   &actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.insertNotifications(ctx, []notificationDoc{notice}); err != nil {
		return nil, err
	}
	return s.taskView(ctx, doc)
}

// transitionTask moves a task between trash states. A task that exists but is
// not in the expected state yields a ValidationError carrying wrongState.
func (s *MongoStore) transitionTask(ctx context.Context, taskID string, fromDeleted bool, update bson.M, wrongState string) (taskDoc, error) {
	oid, err := parseID("task", taskID)
	if err != nil {
		return taskDoc{}, err
	}
	var doc taskDoc
	err = s.tasks().FindOneAndUpdate(ctx, bson.M{"_id": oid, "isDeleted": fromDeleted}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return taskDoc{}, fmt.Errorf("failed to update task: %w", err)
	}
	if _, err := s.findTask(ctx, taskID, nil); err != nil {
		return taskDoc{}, err
	}
	return taskDoc{}, &registrystore.ValidationError{Field: "isDeleted", Message: wrongState}
}

func (s *MongoStore) TrashTask(ctx context.Context, actorID string, taskID string) error {
	actor, err := parseID("user", actorID)
	if err != nil {
		return err
	}
	now := time.Now()
	doc, err := s.transitionTask(ctx, taskID, false,
		bson.M{"$set": bson.M{"isDeleted": true, "deletedAt": now, "updatedAt": now}},
		"task is already in trash")
	if err != nil {
		return err
	}
	return s.insertNotifications(ctx, assigneeNotifications(doc, actor, model.NotificationTaskTrashed, "Task moved to trash: %s"))
}

func (s *MongoStore) RestoreTask(ctx context.Context, actorID string, taskID string) error {
	actor, err := parseID("user", actorID)
	if err != nil {
		return err
	}
	doc, err := s.transitionTask(ctx, taskID, true,
		bson.M{"$set": bson.M{"isDeleted": false, "deletedAt": nil, "updatedAt": time.Now()}},
		"task is not in trash")
	if err != nil {
		return err
	}
	return s.insertNotifications(ctx, assigneeNotifications(doc, actor, model.NotificationTaskRestored, "Task restored from trash: %s"))
}

func (s *MongoStore) DeleteTaskPermanently(ctx context.Context, actorID string, taskID string) error {
	actor, err := parseID("user", actorID)
	if err != nil {
		return err
	}
	oid, err := parseID("task", taskID)
	if err != nil {
		return err
	}
	var doc taskDoc
	err = s.tasks().FindOneAndDelete(ctx, bson.M{"_id": oid, "isDeleted": true}).Decode(&doc)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		if _, err := s.findTask(ctx, taskID, nil); err != nil {
			return err
		}
		return &registrystore.ValidationError{Field: "isDeleted", Message: "task is not in trash"}
	}
	return s.insertNotifications(ctx, assigneeNotifications(doc, actor, model.NotificationTaskDeleted, "Task permanently deleted: %s"))
}

func (s *MongoStore) ListTrash(ctx context.Context, creatorID string) ([]model.TaskView, error) {
	oid, err := parseID("user", creatorID)
	if err != nil {
		return nil, err
	}
	return s.queryTaskViews(ctx, bson.M{"isDeleted": true, "createdBy": oid}, bson.D{{Key: "deletedAt", Value: -1}})
}

func (s *MongoStore) EmptyTrash(ctx context.Context, actorID string) (int64, error) {
	actor, err := parseID("user", actorID)
	if err != nil {
		return 0, err
	}
	return s.purge(ctx, bson.M{"isDeleted": true, "createdBy": actor}, &actor)
}

func (s *MongoStore) PurgeTrash(ctx context.Context, olderThan time.Time) (int64, error) {
	return s.purge(ctx, bson.M{"isDeleted": true, "deletedAt": bson.M{"$lt": olderThan}}, nil)
}

// purge permanently deletes the trashed tasks matching filter and notifies
// their assignees. A nil actor attributes each notification to the task creator.
func (s *MongoStore) purge(ctx context.Context, filter bson.M, actor *bson.ObjectID) (int64, error) {
	cursor, err := s.tasks().Find(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to list trash: %w", err)
	}
	var docs []taskDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, fmt.Errorf("failed to list trash: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	var notices []notificationDoc
	ids := make([]bson.ObjectID, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		by := d.CreatedBy
		if actor != nil {
			by = *actor
		}
		notices = append(notices, assigneeNotifications(d, by, model.NotificationTaskDeleted, "Task permanently deleted: %s")...)
	}
	if err := s.insertNotifications(ctx, notices); err != nil {
		return 0, err
	}
	res, err := s.tasks().DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}, "isDeleted": true})
	if err != nil {
		return 0, fmt.Errorf("failed to delete trash: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) OpenTasks(ctx context.Context, userID string) ([]model.Task, error) {
	oid, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	return s.queryTasks(ctx, bson.M{
		"assignedTo": oid,
		"isDeleted":  false,
		"status":     bson.M{"$ne": string(model.StatusCompleted)},
	}, options.Find().SetSort(bson.D{{Key: "dueDate", Value: 1}}))
}

func (s *MongoStore) DueTasks(ctx context.Context, now time.Time, window time.Duration, limit int) ([]model.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "dueDate", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.queryTasks(ctx, bson.M{
		"isDeleted":         false,
		"status":            bson.M{"$ne": string(model.StatusCompleted)},
		"dueReminderSentAt": bson.M{"$exists": false},
		"dueDate":           bson.M{"$gte": now, "$lte": now.Add(window)},
	}, opts)
}

func (s *MongoStore) MarkDueReminderSent(ctx context.Context, taskID string, at time.Time) (bool, error) {
	oid, err := parseID("task", taskID)
	if err != nil {
		return false, err
	}
	res, err := s.tasks().UpdateOne(ctx,
		bson.M{"_id": oid, "dueReminderSentAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"dueReminderSentAt": at}})
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoStore) queryTasks(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]model.Task, error) {
	cursor, err := s.tasks().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	var docs []taskDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	tasks := make([]model.Task, len(docs))
	for i, d := range docs {
		tasks[i] = d.toModel()
	}
	return tasks, nil
}

func (s *MongoStore) queryTaskViews(ctx context.Context, filter bson.M, sort bson.D) ([]model.TaskView, error) {
	cursor, err := s.tasks().Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	var docs []taskDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return s.taskViews(ctx, docs)
}

func (s *MongoStore) taskView(ctx context.Context, doc taskDoc) (*model.TaskView, error) {
	views, err := s.taskViews(ctx, []taskDoc{doc})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// taskViews populates assignees and creators with one user lookup.
func (s *MongoStore) taskViews(ctx context.Context, docs []taskDoc) ([]model.TaskView, error) {
	seen := map[bson.ObjectID]bool{}
	var ids []bson.ObjectID
	add := func(id bson.ObjectID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, d := range docs {
		add(d.CreatedBy)
		for _, a := range d.AssignedTo {
			add(a)
		}
	}
	users, err := s.userSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]model.TaskView, len(docs))
	for i, d := range docs {
		assignees := make([]model.UserSummary, 0, len(d.AssignedTo))
		for _, a := range d.AssignedTo {
			if u, ok := users[a]; ok {
				assignees = append(assignees, u)
			}
		}
		var creator *model.UserSummary
		if u, ok := users[d.CreatedBy]; ok {
			creator = &u
		}
		views[i] = model.TaskView{
			ID:          d.ID.Hex(),
			Title:       d.Title,
			Description: d.Description,
			DueDate:     d.DueDate,
			Priority:    model.Priority(d.Priority),
			Status:      model.Status(d.Status),
			AssignedTo:  assignees,
			CreatedBy:   creator,
			IsDeleted:   d.IsDeleted,
			DeletedAt:   d.DeletedAt,
			CreatedAt:   d.CreatedAt,
			UpdatedAt:   d.UpdatedAt,
		}
	}
	return views, nil
}
