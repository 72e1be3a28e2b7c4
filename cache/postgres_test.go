package cache

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/raushankrgupta/fitchy/models"
)

func TestPostgresGetHit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	p := NewPostgres(db, time.Hour)

	payload, _ := json.Marshal([]models.Candidate{{Title: "Ceket", Link: "https://www.trendyol.com/x-p-1", Source: "Trendyol"}})
	rows := sqlmock.NewRows([]string{"payload", "created_at"}).AddRow(payload, time.Now().Add(-10*time.Minute))
	mock.ExpectQuery("select payload, created_at from shopping_cache").WithArgs("shop:tr:ceket").WillReturnRows(rows)

	got, ok := p.Get(context.Background(), "shop:tr:ceket")
	if !ok || len(got) != 1 || got[0].Title != "Ceket" {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresGetExpiredAndMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	p := NewPostgres(db, time.Hour)

	rows := sqlmock.NewRows([]string{"payload", "created_at"}).AddRow([]byte(`[]`), time.Now().Add(-2*time.Hour))
	mock.ExpectQuery("from shopping_cache").WithArgs("old").WillReturnRows(rows)
	mock.ExpectQuery("from shopping_cache").WithArgs("none").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("from shopping_cache").WithArgs("broken").WillReturnError(errors.New("connection reset"))

	for _, key := range []string{"old", "none", "broken"} {
		if _, ok := p.Get(context.Background(), key); ok {
			t.Errorf("Get(%q) should miss", key)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresSetUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	p := NewPostgres(db, time.Hour)

	mock.ExpectExec("insert into shopping_cache").
		WithArgs("shop:us:white shirt", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p.Set(context.Background(), "shop:us:white shirt", []models.Candidate{{Title: "Shirt", Link: "https://shop.example/p/1"}})
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresSetLogsEncodeFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	p := NewPostgres(db, time.Hour)
	p.marshal = func(v interface{}) ([]byte, error) {
		return nil, errors.New("unsupported value")
	}

	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	p.Set(context.Background(), "shop:us:white shirt", []models.Candidate{{Title: "Shirt"}})
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database call: %v", err)
	}
	if !strings.Contains(logs.String(), `shopping cache encode "shop:us:white shirt"`) {
		t.Errorf("encode failure not logged: %q", logs.String())
	}
}

func TestPostgresMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("create table if not exists shopping_cache").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := NewPostgres(db, 0).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
