package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raushankrgupta/fitchy/models"
)

func testSession(id string) *models.DetectSession {
	return &models.DetectSession{
		DetectID:    id,
		CountryCode: "tr",
		Pieces: []models.Piece{
			{Category: "jacket", ShortTitle: "Siyah deri ceket"},
			{Category: "shoes", ShortTitle: "Beyaz sneaker"},
		},
		CropData: map[int][]byte{0: []byte("jpeg")},
	}
}

func TestMemorySaveGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	if err := m.Save(ctx, testSession("abc123def456")); err != nil {
		t.Fatal(err)
	}

	got, err := m.Get(ctx, "abc123def456")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Pieces) != 2 || !got.HasCrop(0) || got.HasCrop(1) {
		t.Errorf("unexpected session: %+v", got)
	}

	got.Pieces[0].Category = "mutated"
	again, _ := m.Get(ctx, "abc123def456")
	if again.Pieces[0].Category != "jacket" {
		t.Error("Get must return a copy")
	}

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory(10 * time.Minute)
	m.now = func() time.Time { return now }

	_ = m.Save(ctx, testSession("old"))
	now = now.Add(11 * time.Minute)

	if _, err := m.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired session returned, err = %v", err)
	}

	_ = m.Save(ctx, testSession("new"))
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1 after cleanup", m.Len())
	}
}

func TestMemoryMemoisedFields(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	_ = m.Save(ctx, testSession("s1"))

	if err := m.SetFullExact(ctx, "s1", []models.Candidate{{Title: "x", Link: "https://shop.example/p/1", Exact: true}}); err != nil {
		t.Fatal(err)
	}
	if err := m.SetCropURL(ctx, "s1", 0, "https://files.catbox.moe/a.jpg"); err != nil {
		t.Fatal(err)
	}

	got, _ := m.Get(ctx, "s1")
	if !got.FullExactRun || len(got.FullExact) != 1 || !got.FullExact[0].Exact {
		t.Errorf("full exact not memoised: %+v", got.FullExact)
	}
	if got.CropURLs[0] != "https://files.catbox.moe/a.jpg" {
		t.Errorf("crop url = %q", got.CropURLs[0])
	}

	if err := m.SetCropURL(ctx, "nope", 0, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
