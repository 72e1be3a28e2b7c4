package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/raushankrgupta/fitchy/models"
)

type cropDoc struct {
	Index int    `bson:"index"`
	Data  []byte `bson:"data"`
}

// sessionDoc is the stored form; crops and their public URLs live beside the session fields.
type sessionDoc struct {
	models.DetectSession `bson:",inline"`
	Crops                []cropDoc         `bson:"crops"`
	CropURLs             map[string]string `bson:"crop_urls,omitempty"`
}

// MongoStore shares sessions between workers. A TTL index on created_at expires them.
type MongoStore struct {
	coll   *mongo.Collection
	maxAge time.Duration
}

func NewMongoStore(coll *mongo.Collection, maxAge time.Duration) *MongoStore {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &MongoStore{coll: coll, maxAge: maxAge}
}

// EnsureIndexes creates the TTL index that expires old sessions.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(s.maxAge.Seconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to create session ttl index: %w", err)
	}
	return nil
}

func (s *MongoStore) Save(ctx context.Context, sess *models.DetectSession) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	doc := sessionDoc{DetectSession: *sess}
	for i, data := range sess.CropData {
		doc.Crops = append(doc.Crops, cropDoc{Index: i, Data: data})
	}
	if len(sess.CropURLs) > 0 {
		doc.CropURLs = make(map[string]string, len(sess.CropURLs))
		for i, u := range sess.CropURLs {
			doc.CropURLs[strconv.Itoa(i)] = u
		}
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.DetectSession, error) {
	var doc sessionDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	// The TTL monitor runs once a minute, so expiry is checked here too.
	if time.Since(doc.CreatedAt) > s.maxAge {
		return nil, ErrNotFound
	}

	sess := doc.DetectSession
	sess.CropData = make(map[int][]byte, len(doc.Crops))
	for _, c := range doc.Crops {
		sess.CropData[c.Index] = c.Data
	}
	sess.CropURLs = make(map[int]string, len(doc.CropURLs))
	for k, u := range doc.CropURLs {
		if i, err := strconv.Atoi(k); err == nil {
			sess.CropURLs[i] = u
		}
	}
	return &sess, nil
}

func (s *MongoStore) SetFullExact(ctx context.Context, id string, cands []models.Candidate) error {
	return s.update(ctx, id, bson.M{"full_exact": cands, "full_exact_run": true})
}

func (s *MongoStore) SetCropURL(ctx context.Context, id string, index int, url string) error {
	return s.update(ctx, id, bson.M{"crop_urls." + strconv.Itoa(index): url})
}

func (s *MongoStore) update(ctx context.Context, id string, set bson.M) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
