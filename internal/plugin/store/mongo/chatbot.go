package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chirino/taskmate/internal/model"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func chatNameConflict(name string) error {
	return &registrystore.ConflictError{
		Message: "a chat with this name already exists",
		Code:    "chat_name_exists",
		Details: map[string]any{"name": name},
	}
}

func (s *MongoStore) chatFilter(userID, chatID string) (bson.M, error) {
	owner, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	oid, err := parseID("chat", chatID)
	if err != nil {
		return nil, err
	}
	return bson.M{"_id": oid, "user": owner}, nil
}

func (s *MongoStore) ListChats(ctx context.Context, userID string) ([]model.Chatbot, error) {
	owner, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	cur, err := s.chatbots().Find(ctx, bson.M{"user": owner},
		options.Find().SetSort(bson.D{{Key: "lastActive", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	var docs []chatbotDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode chats: %w", err)
	}
	out := make([]model.Chatbot, len(docs))
	for i, d := range docs {
		out[i] = *d.toModel()
	}
	return out, nil
}

func (s *MongoStore) CreateChat(ctx context.Context, userID string, name string) (*model.Chatbot, error) {
	owner, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = model.DefaultChatName
	}
	now := time.Now()
	doc := chatbotDoc{
		ID:          bson.NewObjectID(),
		User:        owner,
		Name:        name,
		ChatHistory: []chatTurnDoc{},
		LastActive:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.chatbots().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, chatNameConflict(name)
		}
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) GetChat(ctx context.Context, userID string, chatID string) (*model.Chatbot, error) {
	filter, err := s.chatFilter(userID, chatID)
	if err != nil {
		return nil, err
	}
	var doc chatbotDoc
	if err := s.chatbots().FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &registrystore.NotFoundError{Resource: "chat", ID: chatID}
		}
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) RenameChat(ctx context.Context, userID string, chatID string, name string) (*model.Chatbot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &registrystore.ValidationError{Field: "name", Message: "name is required"}
	}
	return s.updateChat(ctx, userID, chatID, bson.M{"$set": bson.M{"name": name, "updatedAt": time.Now()}}, name)
}

func (s *MongoStore) DeleteChat(ctx context.Context, userID string, chatID string) error {
	filter, err := s.chatFilter(userID, chatID)
	if err != nil {
		return err
	}
	res, err := s.chatbots().DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	if res.DeletedCount == 0 {
		return &registrystore.NotFoundError{Resource: "chat", ID: chatID}
	}
	return nil
}

// AppendChatTurns pushes turns onto the chat history in a single update.
func (s *MongoStore) AppendChatTurns(ctx context.Context, userID string, chatID string, turns ...model.ChatTurn) (*model.Chatbot, error) {
	now := time.Now()
	docs := make([]chatTurnDoc, len(turns))
	for i, t := range turns {
		ts := t.Timestamp
		if ts.IsZero() {
			ts = now
		}
		docs[i] = chatTurnDoc{Role: string(t.Role), Content: t.Content, Timestamp: ts}
	}
	return s.updateChat(ctx, userID, chatID, bson.M{
		"$push": bson.M{"chatHistory": bson.M{"$each": docs}},
		"$set":  bson.M{"lastActive": now, "updatedAt": now},
	}, "")
}

func (s *MongoStore) ClearChatHistory(ctx context.Context, userID string, chatID string) error {
	now := time.Now()
	_, err := s.updateChat(ctx, userID, chatID, bson.M{
		"$set": bson.M{"chatHistory": bson.A{}, "lastActive": now, "updatedAt": now},
	}, "")
	return err
}

func (s *MongoStore) updateChat(ctx context.Context, userID, chatID string, update bson.M, name string) (*model.Chatbot, error) {
	filter, err := s.chatFilter(userID, chatID)
	if err != nil {
		return nil, err
	}
	var doc chatbotDoc
	err = s.chatbots().FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &registrystore.NotFoundError{Resource: "chat", ID: chatID}
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, chatNameConflict(name)
		}
		return nil, fmt.Errorf("failed to update chat: %w", err)
	}
	return doc.toModel(), nil
}
