package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/taskmate/internal/model"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type userRefDoc struct {
	ID    bson.ObjectID `bson:"_id"`
	Name  string        `bson:"name"`
	Email string        `bson:"email"`
	Image string        `bson:"image,omitempty"`
	Role  string        `bson:"role,omitempty"`
}

func (d userRefDoc) toModel() model.UserSummary {
	return model.UserSummary{ID: d.ID.Hex(), Name: d.Name, Email: d.Email, Image: d.Image, Role: model.Role(d.Role)}
}

type senderAggDoc struct {
	ID           bson.ObjectID `bson:"_id"`
	MessageCount int           `bson:"messageCount"`
	LastMessage  struct {
		ID        bson.ObjectID `bson:"_id"`
		Body      string        `bson:"body"`
		IsRead    bool          `bson:"isRead"`
		CreatedAt time.Time     `bson:"createdAt"`
	} `bson:"lastMessage"`
	Sender userRefDoc `bson:"sender"`
}

type peerAggDoc struct {
	ID          bson.ObjectID `bson:"_id"`
	LastMessage string        `bson:"lastMessage"`
	LastDate    time.Time     `bson:"lastDate"`
	User        userRefDoc    `bson:"user"`
}

func conversationFilter(me, other bson.ObjectID) bson.M {
	return bson.M{
		"$or": []bson.M{
			{"sender": me, "receiver": other},
			{"sender": other, "receiver": me},
		},
	}
}

func (s *MongoStore) requireUser(ctx context.Context, userID string) (bson.ObjectID, error) {
	oid, err := parseID("user", userID)
	if err != nil {
		return oid, err
	}
	n, err := s.users().CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return oid, fmt.Errorf("failed to load user: %w", err)
	}
	if n == 0 {
		return oid, &registrystore.NotFoundError{Resource: "user", ID: userID}
	}
	return oid, nil
}

func (s *MongoStore) SendMessage(ctx context.Context, senderID string, receiverID string, body string) (*model.InboxMessage, error) {
	sender, err := parseID("user", senderID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.requireUser(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	doc := inboxDoc{
		ID:         bson.NewObjectID(),
		Sender:     sender,
		Receiver:   receiver,
		Body:       body,
		DeletedFor: []bson.ObjectID{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.inbox().InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	msg := doc.toModel()
	return &msg, nil
}

func (s *MongoStore) ListReceived(ctx context.Context, receiverID string) ([]model.InboxMessageView, error) {
	receiver, err := s.requireUser(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	return s.queryMessageViews(ctx,
		bson.M{"receiver": receiver, "deletedFor": bson.M{"$ne": receiver}},
		bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
}

func (s *MongoStore) Conversation(ctx context.Context, userID string, otherID string) (*model.Conversation, error) {
	me, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	other, err := parseID("user", otherID)
	if err != nil {
		return nil, err
	}
	filter := conversationFilter(me, other)
	filter["deletedFor"] = bson.M{"$ne": me}
	messages, err := s.queryMessageViews(ctx, filter, bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if err != nil {
		return nil, err
	}

	if _, err := s.inbox().UpdateMany(ctx,
		bson.M{"receiver": me, "sender": other, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true}}); err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}
	hasUnread, err := s.HasUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.Conversation{Messages: messages, HasUnread: hasUnread}, nil
}

func (s *MongoStore) HasUnread(ctx context.Context, userID string) (bool, error) {
	me, err := parseID("user", userID)
	if err != nil {
		return false, err
	}
	n, err := s.inbox().CountDocuments(ctx,
		bson.M{"receiver": me, "isRead": false, "deletedFor": bson.M{"$ne": me}},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check unread messages: %w", err)
	}
	return n > 0, nil
}

func (s *MongoStore) Senders(ctx context.Context, userID string) ([]model.InboxSender, error) {
	me, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"receiver": me, "deletedFor": bson.M{"$ne": me}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":          "$sender",
			"lastMessage":  bson.M{"$last": "$$ROOT"},
			"messageCount": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "lastMessage.createdAt", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "senderDetails",
		}}},
		{{Key: "$unwind", Value: "$senderDetails"}},
		{{Key: "$project", Value: bson.M{
			"_id":          1,
			"messageCount": 1,
			"lastMessage": bson.M{
				"_id":       "$lastMessage._id",
				"body":      "$lastMessage.body",
				"isRead":    "$lastMessage.isRead",
				"createdAt": "$lastMessage.createdAt",
			},
			"sender": bson.M{
				"_id":   "$senderDetails._id",
				"name":  "$senderDetails.name",
				"email": "$senderDetails.email",
				"image": "$senderDetails.image",
			},
		}}},
	}
	cursor, err := s.inbox().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate senders: %w", err)
	}
	var docs []senderAggDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to aggregate senders: %w", err)
	}
	out := make([]model.InboxSender, len(docs))
	for i, d := range docs {
		out[i] = model.InboxSender{
			ID:           d.ID.Hex(),
			MessageCount: d.MessageCount,
			LastMessage: model.InboxLastMessage{
				ID:        d.LastMessage.ID.Hex(),
				Body:      d.LastMessage.Body,
				IsRead:    d.LastMessage.IsRead,
				CreatedAt: d.LastMessage.CreatedAt,
			},
			Sender: d.Sender.toModel(),
		}
	}
	return out, nil
}

func (s *MongoStore) ChatPeers(ctx context.Context, userID string) ([]model.ChatPeer, error) {
	me, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or":        []bson.M{{"sender": me}, {"receiver": me}},
			"deletedFor": bson.M{"$ne": me},
		}}},
		{{Key: "$project", Value: bson.M{
			"user":      bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$sender", me}}, "$receiver", "$sender"}},
			"body":      1,
			"createdAt": 1,
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":         "$user",
			"lastMessage": bson.M{"$first": "$body"},
			"lastDate":    bson.M{"$first": "$createdAt"},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "userDetails",
		}}},
		{{Key: "$unwind", Value: "$userDetails"}},
		{{Key: "$project", Value: bson.M{
			"_id":         1,
			"lastMessage": 1,
			"lastDate":    1,
			"user": bson.M{
				"_id":   "$userDetails._id",
				"name":  "$userDetails.name",
				"email": "$userDetails.email",
				"image": "$userDetails.image",
				"role":  "$userDetails.role",
			},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "lastDate", Value: -1}}}},
	}
	cursor, err := s.inbox().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate chat users: %w", err)
	}
	var docs []peerAggDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to aggregate chat users: %w", err)
	}
	out := make([]model.ChatPeer, len(docs))
	for i, d := range docs {
		out[i] = model.ChatPeer{ID: d.ID.Hex(), LastMessage: d.LastMessage, LastDate: d.LastDate, User: d.User.toModel()}
	}
	return out, nil
}

func (s *MongoStore) GetMessages(ctx context.Context, messageIDs []string) ([]model.InboxMessage, error) {
	oids, err := parseIDs("message", messageIDs)
	if err != nil {
		return nil, err
	}
	cursor, err := s.inbox().Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	var docs []inboxDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	byID := make(map[bson.ObjectID]inboxDoc, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	out := make([]model.InboxMessage, 0, len(oids))
	for _, oid := range oids {
		d, ok := byID[oid]
		if !ok {
			return nil, &registrystore.NotFoundError{Resource: "message", ID: oid.Hex()}
		}
		out = append(out, d.toModel())
	}
	return out, nil
}

func (s *MongoStore) DeleteMessages(ctx context.Context, messageIDs []string) ([]model.InboxMessage, error) {
	messages, err := s.GetMessages(ctx, messageIDs)
	if err != nil {
		return nil, err
	}
	oids, _ := parseIDs("message", messageIDs)
	if _, err := s.inbox().DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}}); err != nil {
		return nil, fmt.Errorf("failed to delete messages: %w", err)
	}
	return messages, nil
}

func (s *MongoStore) ClearConversation(ctx context.Context, userID string, otherID string) error {
	me, err := parseID("user", userID)
	if err != nil {
		return err
	}
	other, err := s.requireUser(ctx, otherID)
	if err != nil {
		return err
	}
	if _, err := s.inbox().UpdateMany(ctx, conversationFilter(me, other),
		bson.M{"$addToSet": bson.M{"deletedFor": me}}); err != nil {
		return fmt.Errorf("failed to clear conversation: %w", err)
	}
	return nil
}

func (s *MongoStore) queryMessageViews(ctx context.Context, filter bson.M, sort bson.D) ([]model.InboxMessageView, error) {
	cursor, err := s.inbox().Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	var docs []inboxDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	var ids []bson.ObjectID
	for _, d := range docs {
		ids = append(ids, d.Sender, d.Receiver)
	}
	users, err := s.userSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]model.InboxMessageView, len(docs))
	for i, d := range docs {
		v := model.InboxMessageView{ID: d.ID.Hex(), Body: d.Body, IsRead: d.IsRead, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
		if u, ok := users[d.Sender]; ok {
			v.Sender = &u
		}
		if u, ok := users[d.Receiver]; ok {
			v.Receiver = &u
		}
		views[i] = v
	}
	return views, nil
}
