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

// ensureGroupChat creates the singleton group chat on first use.
func (s *MongoStore) ensureGroupChat(ctx context.Context) error {
	now := time.Now()
	_, err := s.groupChats().UpdateOne(ctx,
		bson.M{"_id": model.GroupChatID},
		bson.M{"$setOnInsert": bson.M{
			"isMessageAllowed": true,
			"messages":         bson.A{},
			"createdAt":        now,
			"updatedAt":        now,
		}},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to create group chat: %w", err)
	}
	return nil
}

func (s *MongoStore) loadGroupChat(ctx context.Context) (groupChatDoc, error) {
	if err := s.ensureGroupChat(ctx); err != nil {
		return groupChatDoc{}, err
	}
	var doc groupChatDoc
	if err := s.groupChats().FindOne(ctx, bson.M{"_id": model.GroupChatID}).Decode(&doc); err != nil {
		return groupChatDoc{}, fmt.Errorf("failed to load group chat: %w", err)
	}
	return doc, nil
}

func (s *MongoStore) GetGroupChat(ctx context.Context) (*model.GroupChat, error) {
	doc, err := s.loadGroupChat(ctx)
	if err != nil {
		return nil, err
	}
	messages, err := s.groupMessages(ctx, doc.Messages)
	if err != nil {
		return nil, err
	}
	return &model.GroupChat{
		ID:               doc.ID,
		IsMessageAllowed: doc.IsMessageAllowed,
		Messages:         messages,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}, nil
}

func (s *MongoStore) findGroupMessage(ctx context.Context, messageID string) (groupMessageDoc, error) {
	oid, err := parseID("message", messageID)
	if err != nil {
		return groupMessageDoc{}, err
	}
	doc, err := s.loadGroupChat(ctx)
	if err != nil {
		return groupMessageDoc{}, err
	}
	for _, m := range doc.Messages {
		if m.ID == oid {
			return m, nil
		}
	}
	return groupMessageDoc{}, &registrystore.NotFoundError{Resource: "message", ID: messageID}
}

func (s *MongoStore) GetGroupMessage(ctx context.Context, messageID string) (*model.GroupMessage, error) {
	m, err := s.findGroupMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return s.groupMessage(ctx, m)
}

func (s *MongoStore) AppendGroupMessage(ctx context.Context, senderID string, req registrystore.GroupMessageRequest) (*model.GroupMessage, error) {
	sender, err := parseID("user", senderID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureGroupChat(ctx); err != nil {
		return nil, err
	}
	now := time.Now()
	m := groupMessageDoc{
		ID:         bson.NewObjectID(),
		Sender:     sender,
		Content:    req.Content,
		Attachment: attachmentToDoc(req.Attachment),
		ReadBy:     []bson.ObjectID{sender},
		Timestamp:  now,
	}
	_, err = s.groupChats().UpdateOne(ctx, bson.M{"_id": model.GroupChatID}, bson.M{
		"$push": bson.M{"messages": m},
		"$set":  bson.M{"updatedAt": now},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to post group message: %w", err)
	}
	return s.groupMessage(ctx, m)
}

func (s *MongoStore) UpdateGroupMessage(ctx context.Context, messageID string, content string) (*model.GroupMessage, error) {
	oid, err := parseID("message", messageID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	res, err := s.groupChats().UpdateOne(ctx,
		bson.M{"_id": model.GroupChatID, "messages._id": oid},
		bson.M{"$set": bson.M{
			"messages.$.content":    content,
			"messages.$.lastEdited": now,
			"updatedAt":             now,
		}})
	if err != nil {
		return nil, fmt.Errorf("failed to update group message: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, &registrystore.NotFoundError{Resource: "message", ID: messageID}
	}
	return s.GetGroupMessage(ctx, messageID)
}

func (s *MongoStore) DeleteGroupMessage(ctx context.Context, messageID string) error {
	oid, err := parseID("message", messageID)
	if err != nil {
		return err
	}
	res, err := s.groupChats().UpdateOne(ctx,
		bson.M{"_id": model.GroupChatID, "messages._id": oid},
		bson.M{
			"$pull": bson.M{"messages": bson.M{"_id": oid}},
			"$set":  bson.M{"updatedAt": time.Now()},
		})
	if err != nil {
		return fmt.Errorf("failed to delete group message: %w", err)
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: "message", ID: messageID}
	}
	return nil
}

func (s *MongoStore) ToggleGroupMessagePin(ctx context.Context, messageID string) (*model.GroupMessage, error) {
	current, err := s.findGroupMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	res, err := s.groupChats().UpdateOne(ctx,
		bson.M{"_id": model.GroupChatID, "messages": bson.M{"$elemMatch": bson.M{"_id": current.ID, "isPinned": current.IsPinned}}},
		bson.M{"$set": bson.M{"messages.$.isPinned": !current.IsPinned, "updatedAt": time.Now()}})
	if err != nil {
		return nil, fmt.Errorf("failed to pin group message: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, &registrystore.ConflictError{Message: "message was modified concurrently", Code: "concurrent_update"}
	}
	return s.GetGroupMessage(ctx, messageID)
}

// ToggleGroupMessaging flips isMessageAllowed and returns the new value.
func (s *MongoStore) ToggleGroupMessaging(ctx context.Context) (bool, error) {
	if err := s.ensureGroupChat(ctx); err != nil {
		return false, err
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"isMessageAllowed": bson.M{"$not": bson.A{"$isMessageAllowed"}},
			"updatedAt":        "$$NOW",
		}}},
	}
	var doc groupChatDoc
	err := s.groupChats().FindOneAndUpdate(ctx, bson.M{"_id": model.GroupChatID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(bson.M{"isMessageAllowed": 1})).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, &registrystore.NotFoundError{Resource: "group chat", ID: model.GroupChatID}
		}
		return false, fmt.Errorf("failed to toggle group messaging: %w", err)
	}
	return doc.IsMessageAllowed, nil
}

// MarkGroupChatRead adds userID to readBy on every message and returns how
// many messages were previously unread by that user.
func (s *MongoStore) MarkGroupChatRead(ctx context.Context, userID string) (int64, error) {
	me, err := parseID("user", userID)
	if err != nil {
		return 0, err
	}
	doc, err := s.loadGroupChat(ctx)
	if err != nil {
		return 0, err
	}
	var unread int64
	for _, m := range doc.Messages {
		if !containsID(m.ReadBy, me) {
			unread++
		}
	}
	if unread == 0 {
		return 0, nil
	}
	if _, err := s.groupChats().UpdateOne(ctx, bson.M{"_id": model.GroupChatID},
		bson.M{"$addToSet": bson.M{"messages.$[].readBy": me}}); err != nil {
		return 0, fmt.Errorf("failed to mark group chat read: %w", err)
	}
	return unread, nil
}

func containsID(ids []bson.ObjectID, id bson.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *MongoStore) groupMessage(ctx context.Context, m groupMessageDoc) (*model.GroupMessage, error) {
	out, err := s.groupMessages(ctx, []groupMessageDoc{m})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// groupMessages populates message senders.
func (s *MongoStore) groupMessages(ctx context.Context, docs []groupMessageDoc) ([]model.GroupMessage, error) {
	ids := make([]bson.ObjectID, 0, len(docs))
	for _, m := range docs {
		ids = append(ids, m.Sender)
	}
	users, err := s.userSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]model.GroupMessage, len(docs))
	for i, m := range docs {
		gm := model.GroupMessage{
			ID:         m.ID.Hex(),
			Content:    m.Content,
			Attachment: m.Attachment.toModel(),
			ReadBy:     hexIDs(m.ReadBy),
			IsPinned:   m.IsPinned,
			LastEdited: m.LastEdited,
			Timestamp:  m.Timestamp,
		}
		if u, ok := users[m.Sender]; ok {
			gm.Sender = &u
		} else {
			gm.Sender = &model.UserSummary{ID: m.Sender.Hex()}
		}
		out[i] = gm
	}
	return out, nil
}
