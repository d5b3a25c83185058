package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/flipapp/leaderboard/internal/model"
)

const (
	sessionsCollection = "sessions"
	privacyCollection  = "privacy_settings"
	usersCollection    = "users"
)

type Store struct {
	client   *mongo.Client
	sessions *mongo.Collection
	privacy  *mongo.Collection
	users    *mongo.Collection
}

func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	db := client.Database(database)
	return &Store{
		client:   client,
		sessions: db.Collection(sessionsCollection),
		privacy:  db.Collection(privacyCollection),
		users:    db.Collection(usersCollection),
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) List(ctx context.Context, filter SessionFilter) ([]model.SessionRecord, error) {
	query := bson.M{}
	if filter.SuccessfulOnly {
		query["was_successful"] = true
	}
	if !filter.StartedAfter.IsZero() {
		query["start_time"] = bson.M{"$gt": filter.StartedAfter}
	}
	if filter.BuildingID != "" {
		query["building_id"] = filter.BuildingID
	}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}

	opts := options.Find()
	if filter.SortByDurationDesc {
		opts.SetSort(bson.D{{Key: "duration_minutes", Value: -1}})
	} else {
		opts.SetSort(bson.D{{Key: "start_time", Value: -1}})
	}
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := s.sessions.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var records []model.SessionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return records, nil
}

func (s *Store) Create(ctx context.Context, session model.SessionRecord) error {
	if _, err := s.sessions.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID string) (model.UserProfile, error) {
	var profile model.UserProfile
	err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.UserProfile{ID: userID, StreakStatus: model.StreakNone}, nil
	}
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	if profile.StreakStatus == "" {
		profile.StreakStatus = model.StreakNone
	}
	return profile, nil
}

func (s *Store) TopByTotalFocusTime(ctx context.Context, limit int64) ([]model.UserProfile, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "total_focus_time", Value: -1}}).
		SetLimit(limit)
	cursor, err := s.users.Find(ctx, bson.M{"total_focus_time": bson.M{"$gt": 0}}, opts)
	if err != nil {
		return nil, fmt.Errorf("top profiles: %w", err)
	}
	defer cursor.Close(ctx)

	var profiles []model.UserProfile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	return profiles, nil
}

func (s *Store) AddFocusTime(ctx context.Context, userID, username string, minutes int) error {
	update := bson.M{
		"$inc": bson.M{"total_focus_time": minutes},
		"$set": bson.M{"username": username},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.users.UpdateByID(ctx, userID, update, opts); err != nil {
		return fmt.Errorf("add focus time: %w", err)
	}
	return nil
}

func (s *Store) GetPrivacy(ctx context.Context, userID string) (model.PrivacySetting, error) {
	var setting model.PrivacySetting
	err := s.privacy.FindOne(ctx, bson.M{"_id": userID}).Decode(&setting)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.DefaultPrivacySetting(userID), nil
	}
	if err != nil {
		return model.PrivacySetting{}, fmt.Errorf("get privacy: %w", err)
	}
	if setting.DisplayMode == "" {
		setting.DisplayMode = model.DisplayModeNormal
	}
	return setting, nil
}

func (s *Store) PutPrivacy(ctx context.Context, setting model.PrivacySetting) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := s.privacy.ReplaceOne(ctx, bson.M{"_id": setting.UserID}, setting, opts); err != nil {
		return fmt.Errorf("put privacy: %w", err)
	}
	return nil
}

// privacyAdapter exposes the privacy collection under the PrivacyStore
// interface without colliding with the session Get/Put names.
type privacyAdapter struct{ store *Store }

func (p privacyAdapter) Get(ctx context.Context, userID string) (model.PrivacySetting, error) {
	return p.store.GetPrivacy(ctx, userID)
}

func (p privacyAdapter) Put(ctx context.Context, setting model.PrivacySetting) error {
	return p.store.PutPrivacy(ctx, setting)
}

func (s *Store) Privacy() PrivacyStore {
	return privacyAdapter{store: s}
}
