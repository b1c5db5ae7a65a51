package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tewahedanswers/answers/backend/go-services/internal/models"
)

// UserRepository defines persistence operations for users.
// Lookups return (nil, nil) when no record matches.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Upsert creates the record or updates it in place, matching by id first
	// and falling back to email. An existing isAdmin=true is never cleared by
	// Upsert; demotions go through SetAdmin/DemoteAdminGuarded.
	Upsert(ctx context.Context, u *models.User) (*models.User, error)
	SetAdmin(ctx context.Context, id string, isAdmin bool) (*models.User, error)
	// DemoteAdminGuarded clears isAdmin on the target only if at least one
	// other admin record remains, evaluated atomically with the write.
	// Returns ErrLastAdmin when the target is the last remaining admin.
	DemoteAdminGuarded(ctx context.Context, id string) (*models.User, error)
	SetPhotoURL(ctx context.Context, id, photoURL string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
}

// MongoUserRepository implements UserRepository using MongoDB.
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a new repository for the given collection.
func NewMongoUserRepository(col *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{col: col}
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"emailLower": strings.ToLower(email)}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoUserRepository) Upsert(ctx context.Context, u *models.User) (*models.User, error) {
	now := time.Now().UTC()
	u.EmailLower = strings.ToLower(u.Email)

	existing, err := r.GetByID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil && u.Email != "" {
		existing, err = r.GetByEmail(ctx, u.Email)
		if err != nil {
			return nil, err
		}
	}

	if existing == nil {
		u.CreatedAt = now
		u.UpdatedAt = now
		if _, err := r.col.InsertOne(ctx, u); err != nil {
			return nil, fmt.Errorf("insert user: %w", err)
		}
		out := *u
		return &out, nil
	}

	set := bson.M{
		"email":      u.Email,
		"emailLower": u.EmailLower,
		"isAdmin":    u.IsAdmin || existing.IsAdmin,
		"updatedAt":  now,
	}
	if u.DisplayName != "" {
		set["displayName"] = u.DisplayName
	}
	if u.PhotoURL != "" {
		set["photoURL"] = u.PhotoURL
	}

	// _id is immutable; when the match came via email the stored id wins.
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.User
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": existing.ID}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &updated, nil
}

func (r *MongoUserRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"isAdmin": isAdmin, "updatedAt": time.Now().UTC()}}
	var updated models.User
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

// DemoteAdminGuarded runs the "at least one other admin remains" check and
// the demotion inside a single transaction so two concurrent demotions
// cannot both pass the check and empty the admin set.
func (r *MongoUserRepository) DemoteAdminGuarded(ctx context.Context, id string) (*models.User, error) {
	client := r.col.Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		n, err := r.col.CountDocuments(sc, bson.M{"isAdmin": true, "_id": bson.M{"$ne": id}})
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrLastAdmin
		}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		update := bson.M{"$set": bson.M{"isAdmin": false, "updatedAt": time.Now().UTC()}}
		var updated models.User
		if err := r.col.FindOneAndUpdate(sc, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return &updated, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*models.User), nil
}

func (r *MongoUserRepository) SetPhotoURL(ctx context.Context, id, photoURL string) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"photoURL": photoURL, "updatedAt": time.Now().UTC()}}
	var updated models.User
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (r *MongoUserRepository) List(ctx context.Context) ([]*models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*models.User
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, cur.Err()
}
