// Package mongostore persists sessions as documents in a single MongoDB
// collection, one document per session, upserted by an equality filter on
// the session id. Sweeping expired sessions is a single bulk delete.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/sessionstore/session"
)

// Collection is the slice of *mongo.Collection this store uses. Tests
// substitute a fake.
type Collection interface {
	ReplaceOne(ctx context.Context, filter any, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter any, opts ...options.Lister[options.DeleteManyOptions]) (*mongo.DeleteResult, error)
}

var _ Collection = (*mongo.Collection)(nil)

func init() {
	session.Register(session.KindMongo, func(handle any) (session.Store, error) {
		coll, ok := handle.(Collection)
		if !ok {
			return nil, fmt.Errorf("%w: mongodb storage expects a *mongo.Collection, got %T",
				session.ErrUnsupportedStorage, handle)
		}
		return New(coll), nil
	})
}

// document is the stored shape of one session.
type document struct {
	SessionID string `bson:"session_id"`
	Data      string `bson:"data"`
	Expires   int64  `bson:"expires"`
	UserAgent string `bson:"user_agent"`
}

// Store is the document storage backend.
type Store struct {
	coll Collection
}

// New creates a MongoDB session store over an already-open collection.
// An index on session_id is the caller's concern.
func New(coll Collection) *Store {
	return &Store{coll: coll}
}

// Save upserts the session's document by equality on session_id. Clean
// sessions are a no-op.
func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	if !sess.IsDirty() {
		return nil
	}

	payload, err := session.Encode(sess)
	if err != nil {
		return errors.Join(session.ErrSaveSession, err)
	}

	_, err = s.coll.ReplaceOne(ctx,
		bson.M{"session_id": sess.ID},
		document{
			SessionID: sess.ID,
			Data:      payload,
			Expires:   sess.ExpiresAt.Unix(),
			UserAgent: sess.UserAgent,
		},
		options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Join(session.ErrSaveSession, err)
	}

	sess.MarkSaved()
	return nil
}

// Load reconstructs the session stored under id. Missing documents,
// corrupted payloads, and query failures all surface as ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*session.Session, error) {
	var doc document
	if err := s.coll.FindOne(ctx, bson.M{"session_id": id}).Decode(&doc); err != nil {
		return nil, session.ErrNotFound
	}

	sess, err := session.Decode(doc.Data)
	if err != nil {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

// Delete removes the session's document. Absent ids are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"session_id": id}); err != nil {
		return errors.Join(session.ErrDeleteSession, err)
	}
	return nil
}

// DeleteExpired bulk-deletes every document whose stored expiry is strictly
// before now and returns the number removed.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"expires": bson.M{"$lt": now.Unix()}})
	if err != nil {
		return 0, errors.Join(session.ErrDeleteSession, err)
	}
	return res.DeletedCount, nil
}
