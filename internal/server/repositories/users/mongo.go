package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophreview/internal/common"
	"github.com/dmitrijs2005/gophreview/internal/server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Index names double as the keys for mapping duplicate-key errors.
const (
	mongoIndexID       = "users_userid_key"
	mongoIndexEmail    = "users_email_key"
	mongoIndexUsername = "users_username_key"

	mongoDuplicateKey = 11000
)

// Collection is the subset of *mongo.Collection the repository uses.
type Collection interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
	InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

type MongoRepository struct {
	coll Collection
	now  func() time.Time
}

func NewMongoRepository(coll Collection) *MongoRepository {
	return &MongoRepository{coll: coll, now: time.Now}
}

// EnsureMongoIndexes creates the unique indexes on userid, email and username.
func EnsureMongoIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userid", Value: 1}}, Options: options.Index().SetUnique(true).SetName(mongoIndexID)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName(mongoIndexEmail)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName(mongoIndexUsername)},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"userid": id})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	user := &models.User{}
	err := r.coll.FindOne(ctx, filter).Decode(user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *MongoRepository) Create(ctx context.Context, user *models.User) error {
	user.CreatedAt = r.now().UTC()

	_, err := r.coll.InsertOne(ctx, user)
	if err == nil {
		return nil
	}

	var wex mongo.WriteException
	if errors.As(err, &wex) {
		for _, we := range wex.WriteErrors {
			if we.Code != mongoDuplicateKey {
				continue
			}
			switch {
			case strings.Contains(we.Message, mongoIndexEmail):
				return common.ErrDuplicateEmail
			case strings.Contains(we.Message, mongoIndexUsername):
				return common.ErrDuplicateUsername
			}
		}
	}
	return fmt.Errorf("db error: %w", err)
}
