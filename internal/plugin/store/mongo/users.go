package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/model"
	registrycache "github.com/chirino/taskmate/internal/registry/cache"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"github.com/chirino/taskmate/internal/security"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *MongoStore) CreateUser(ctx context.Context, req registrystore.CreateUserRequest) (*model.User, error) {
	now := time.Now()
	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	jobTitle := strings.TrimSpace(req.JobTitle)
	if jobTitle == "" {
		jobTitle = model.DefaultJobTitle
	}
	doc := userDoc{
		ID:        bson.NewObjectID(),
		Name:      req.Name,
		Email:     normalizeEmail(req.Email),
		Password:  req.PasswordHash,
		Role:      string(role),
		JobTitle:  jobTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.users().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, &registrystore.ConflictError{
				Message: "this email already exists",
				Code:    "email_exists",
				Details: map[string]any{"email": doc.Email},
			}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	if s.userCache != nil && s.userCache.Available() {
		cached, err := s.userCache.Get(ctx, userID)
		if err != nil {
			log.Warn("User cache get failed", "userID", userID, "err", err)
		}
		security.CountCacheLookup(cached != nil)
		if cached != nil {
			return cached.ToUser(), nil
		}
	}

	oid, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	var doc userDoc
	if err := s.users().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &registrystore.NotFoundError{Resource: "user", ID: userID}
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	user := doc.toModel()
	s.cacheUser(ctx, user)
	return user, nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var doc userDoc
	if err := s.users().FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &registrystore.NotFoundError{Resource: "user", ID: email}
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) ListUsers(ctx context.Context, role model.Role) ([]model.User, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = string(role)
	}
	cursor, err := s.users().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]model.User, len(docs))
	for i, d := range docs {
		users[i] = *d.toModel()
	}
	return users, nil
}

func (s *MongoStore) updateUser(ctx context.Context, userID string, set bson.M) (*model.User, error) {
	oid, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	set["updatedAt"] = time.Now()
	var doc userDoc
	err = s.users().FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &registrystore.NotFoundError{Resource: "user", ID: userID}
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	s.evictUser(ctx, userID)
	return doc.toModel(), nil
}

func (s *MongoStore) UpdateUserProfile(ctx context.Context, userID string, update registrystore.UserProfileUpdate) (*model.User, error) {
	set := bson.M{}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.JobTitle != nil {
		set["jobTitle"] = *update.JobTitle
	}
	return s.updateUser(ctx, userID, set)
}

func (s *MongoStore) SetUserImage(ctx context.Context, userID string, image string) (*model.User, error) {
	return s.updateUser(ctx, userID, bson.M{"image": image})
}

func (s *MongoStore) ChangePassword(ctx context.Context, userID string, passwordHash string, changedAt time.Time) error {
	_, err := s.updateUser(ctx, userID, bson.M{"password": passwordHash, "passwordChangedAt": changedAt})
	return err
}

func (s *MongoStore) DeleteUser(ctx context.Context, userID string) (*model.User, error) {
	oid, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	var doc userDoc
	if err := s.users().FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &registrystore.NotFoundError{Resource: "user", ID: userID}
		}
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}
	s.evictUser(ctx, userID)
	return doc.toModel(), nil
}

func (s *MongoStore) UsersExist(ctx context.Context, userIDs []string) error {
	oids, err := parseIDs("user", userIDs)
	if err != nil {
		return err
	}
	found, err := s.userSummaries(ctx, oids)
	if err != nil {
		return err
	}
	for _, oid := range oids {
		if _, ok := found[oid]; !ok {
			return &registrystore.NotFoundError{Resource: "user", ID: oid.Hex()}
		}
	}
	return nil
}

// userSummaries loads the public fields of the given users keyed by id.
func (s *MongoStore) userSummaries(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]model.UserSummary, error) {
	out := map[bson.ObjectID]model.UserSummary{}
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := s.users().Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"name": 1, "email": 1, "image": 1, "role": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	for _, d := range docs {
		out[d.ID] = d.summary()
	}
	return out, nil
}

func (s *MongoStore) cacheUser(ctx context.Context, user *model.User) {
	if s.userCache == nil || !s.userCache.Available() {
		return
	}
	if err := s.userCache.Set(ctx, user.ID, registrycache.NewCachedUser(user), s.cacheTTL); err != nil {
		log.Warn("User cache set failed", "userID", user.ID, "err", err)
	}
}

func (s *MongoStore) evictUser(ctx context.Context, userID string) {
	if s.userCache == nil {
		return
	}
	if err := s.userCache.Remove(ctx, userID); err != nil {
		log.Warn("User cache remove failed", "userID", userID, "err", err)
	}
}
