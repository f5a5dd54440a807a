package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/p-n-ai/academy/internal/progress"
)

const usersCollection = "users"

// MongoStore keeps one document per user with progress embedded as an
// array of records.
type MongoStore struct {
	coll *mongo.Collection
}

type userDoc struct {
	ID           string        `bson:"_id"`
	Username     string        `bson:"username"`
	UsernameKey  string        `bson:"username_key"`
	PasswordHash string        `bson:"password_hash"`
	CreatedAt    time.Time     `bson:"created_at"`
	Progress     []progressDoc `bson:"progress"`
}

type progressDoc struct {
	Kind        string    `bson:"kind"`
	CourseID    string    `bson:"course_id,omitempty"`
	LessonID    string    `bson:"lesson_id,omitempty"`
	SublessonID string    `bson:"sublesson_id,omitempty"`
	ExerciseID  string    `bson:"exercise_id,omitempty"`
	CompletedAt time.Time `bson:"completed_at"`
}

// ConnectMongo connects to uri and verifies the connection.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}
	return client, nil
}

// NewMongoStore uses the users collection of db and ensures the unique
// username index.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	coll := db.Collection(usersCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username_key", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_key_unique"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating username index: %w", err)
	}
	return &MongoStore{coll: coll}, nil
}

func (s *MongoStore) Create(ctx context.Context, u *User) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.coll.InsertOne(ctx, toUserDoc(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("create %q: %w", u.Username, ErrUsernameTaken)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.findOne(ctx, bson.M{"_id": id}, id)
}

func (s *MongoStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.findOne(ctx, bson.M{"username_key": NormalizeUsername(username)}, username)
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M, label string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var doc userDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user %q: %w", label, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toUser(), nil
}

// Save replaces the whole document of an existing user.
func (s *MongoStore) Save(ctx context.Context, u *User) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, toUserDoc(u))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("rename %q: %w", u.Username, ErrUsernameTaken)
		}
		return fmt.Errorf("replace user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context) ([]*User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	users := make([]*User, len(docs))
	for i := range docs {
		users[i] = docs[i].toUser()
	}
	return users, nil
}

func toUserDoc(u *User) userDoc {
	doc := userDoc{
		ID:           u.ID,
		Username:     u.Username,
		UsernameKey:  NormalizeUsername(u.Username),
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UTC(),
		Progress:     []progressDoc{},
	}
	for _, r := range u.Progress.Records() {
		doc.Progress = append(doc.Progress, progressDoc{
			Kind:        string(r.Kind),
			CourseID:    r.CourseID,
			LessonID:    r.LessonID,
			SublessonID: r.SublessonID,
			ExerciseID:  r.ExerciseID,
			CompletedAt: r.CompletedAt.UTC(),
		})
	}
	return doc
}

func (d userDoc) toUser() *User {
	records := make([]progress.Record, len(d.Progress))
	for i, p := range d.Progress {
		records[i] = progress.Record{
			Key: progress.Key{
				Kind:        progress.Kind(p.Kind),
				CourseID:    p.CourseID,
				LessonID:    p.LessonID,
				SublessonID: p.SublessonID,
				ExerciseID:  p.ExerciseID,
			},
			CompletedAt: p.CompletedAt,
		}
	}
	return &User{
		ID:           d.ID,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		Progress:     progress.FromRecords(records),
	}
}
