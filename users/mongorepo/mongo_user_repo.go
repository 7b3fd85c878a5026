package mongorepo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
	"github.com/jrsteele09/go-pm-server/users"
)

const collectionName = "users"

var _ users.UserRepo = (*Store)(nil)

// Store keeps users in a MongoDB collection. Email uniqueness is enforced by
// a unique index, so EnsureIndexes must run before the store takes writes.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(collectionName)}
}

// Connect dials MongoDB and pings the primary before returning.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "[mongorepo.Connect] connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "[mongorepo.Connect] ping")
	}
	return client, nil
}

// EnsureIndexes creates the unique email index and a sparse federated id lookup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_users_email"),
		},
		{
			Keys:    bson.D{{Key: "federated_id", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("idx_users_federated_id"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_created"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return errors.Wrap(err, "[Store.EnsureIndexes]")
}

func (s *Store) Create(ctx context.Context, user *users.User) error {
	user.Email = users.NormalizeEmail(user.Email)
	if err := user.Validate(); err != nil {
		return errors.Wrap(err, "[Store.Create]")
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	if _, err := s.c.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Wrapf(apperrors.ErrEmailAlreadyExists, "[Store.Create] %s", user.Email)
		}
		return errors.Wrap(err, "[Store.Create] InsertOne")
	}
	return nil
}

func (s *Store) Update(ctx context.Context, user *users.User) error {
	user.Email = users.NormalizeEmail(user.Email)
	if err := user.Validate(); err != nil {
		return errors.Wrap(err, "[Store.Update]")
	}
	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Wrapf(apperrors.ErrEmailAlreadyExists, "[Store.Update] %s", user.Email)
		}
		return errors.Wrap(err, "[Store.Update] ReplaceOne")
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(apperrors.ErrUserNotFound, "[Store.Update] %s", user.ID)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "[Store.Delete] DeleteOne")
	}
	if res.DeletedCount == 0 {
		return errors.Wrapf(apperrors.ErrUserNotFound, "[Store.Delete] %s", id)
	}
	return nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return s.findOne(ctx, bson.M{"email": users.NormalizeEmail(email)}, "GetByEmail")
}

func (s *Store) GetByID(ctx context.Context, id string) (*users.User, error) {
	return s.findOne(ctx, bson.M{"_id": id}, "GetByID")
}

func (s *Store) findOne(ctx context.Context, filter bson.M, op string) (*users.User, error) {
	var u users.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(apperrors.ErrUserNotFound, "[Store.%s]", op)
		}
		return nil, errors.Wrapf(err, "[Store.%s] FindOne", op)
	}
	return &u, nil
}

// List orders by creation time, then id. A limit of zero returns everything from offset.
func (s *Store) List(ctx context.Context, offset, limit int) (users.UsersListResponse, error) {
	if offset < 0 {
		offset = 0
	}
	total, err := s.c.CountDocuments(ctx, bson.M{})
	if err != nil {
		return users.UsersListResponse{}, errors.Wrap(err, "[Store.List] CountDocuments")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return users.UsersListResponse{}, errors.Wrap(err, "[Store.List] Find")
	}
	defer cur.Close(ctx)

	list := make([]*users.User, 0)
	if err := cur.All(ctx, &list); err != nil {
		return users.UsersListResponse{}, errors.Wrap(err, "[Store.List] decode")
	}
	return users.UsersListResponse{Users: list, Total: int(total), Offset: offset, Limit: limit}, nil
}
