package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		store := NewMongoStore(mt.Coll, 0)
		if err := store.Save(context.Background(), testSession("abc")); err != nil {
			mt.Fatalf("Save: %v", err)
		}
	})

	mt.Run("get", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "abc"},
			{Key: "country_code", Value: "tr"},
			{Key: "created_at", Value: time.Now()},
			{Key: "pieces", Value: bson.A{bson.D{{Key: "category", Value: "jacket"}}}},
			{Key: "crops", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "data", Value: []byte("jpeg")}}}},
			{Key: "crop_urls", Value: bson.D{{Key: "0", Value: "https://files.catbox.moe/a.jpg"}}},
		}))
		store := NewMongoStore(mt.Coll, 0)

		got, err := store.Get(context.Background(), "abc")
		if err != nil {
			mt.Fatalf("Get: %v", err)
		}
		if got.DetectID != "abc" || got.CountryCode != "tr" || len(got.Pieces) != 1 {
			mt.Errorf("unexpected session: %+v", got)
		}
		if !got.HasCrop(0) || got.CropURLs[0] != "https://files.catbox.moe/a.jpg" {
			mt.Errorf("crops not restored: %v %v", got.CropData, got.CropURLs)
		}
	})

	mt.Run("expired", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "old"},
			{Key: "created_at", Value: time.Now().Add(-time.Hour)},
		}))
		store := NewMongoStore(mt.Coll, 0)
		if _, err := store.Get(context.Background(), "old"); !errors.Is(err, ErrNotFound) {
			mt.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	mt.Run("missing", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		store := NewMongoStore(mt.Coll, 0)
		if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
			mt.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	mt.Run("update", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
		)
		store := NewMongoStore(mt.Coll, 0)
		if err := store.SetCropURL(context.Background(), "abc", 1, "https://x"); err != nil {
			mt.Errorf("SetCropURL: %v", err)
		}
		if err := store.SetFullExact(context.Background(), "gone", nil); !errors.Is(err, ErrNotFound) {
			mt.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}
